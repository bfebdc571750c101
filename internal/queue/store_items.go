package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const itemColumns = "id, project_id, source, instruction, status, error_message, notation_path, pdf_path, metadata_path, quality_score, refined, created_at, updated_at, started_at, completed_at"

// NewProject inserts a pending item for one conversion project. Project
// ids are unique; re-adding an existing id is an error.
func (s *Store) NewProject(ctx context.Context, projectID, source, instruction string) (*Item, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, errors.New("project id required")
	}
	if strings.TrimSpace(source) == "" {
		return nil, errors.New("source required")
	}
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO queue_items (
            project_id, source, instruction, status, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?)`,
		projectID,
		source,
		nullableString(instruction),
		StatusPending,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert project: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID fetches a queue item by identifier. A missing item returns nil.
func (s *Store) GetByID(ctx context.Context, id int64) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM queue_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// GetByProjectID fetches a queue item by its project id.
func (s *Store) GetByProjectID(ctx context.Context, projectID string) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM queue_items WHERE project_id = ?`, projectID)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item by project id: %w", err)
	}
	return item, nil
}

// Update persists changes to an existing queue item.
func (s *Store) Update(ctx context.Context, item *Item) error {
	if item == nil {
		return errors.New("item is nil")
	}
	item.UpdatedAt = time.Now().UTC()

	_, err := s.execWithRetry(
		ctx,
		`UPDATE queue_items SET
            source = ?, instruction = ?, status = ?, error_message = ?,
            notation_path = ?, pdf_path = ?, metadata_path = ?,
            quality_score = ?, refined = ?, updated_at = ?,
            started_at = ?, completed_at = ?
        WHERE id = ?`,
		item.Source,
		nullableString(item.Instruction),
		item.Status,
		nullableString(item.ErrorMessage),
		nullableString(item.NotationPath),
		nullableString(item.PDFPath),
		nullableString(item.MetadataPath),
		item.QualityScore,
		boolToInt(item.Refined),
		item.UpdatedAt.Format(time.RFC3339Nano),
		nullableTime(item.StartedAt),
		nullableTime(item.CompletedAt),
		item.ID,
	)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	return nil
}

// List returns items filtered by status, or all items when no statuses
// are given, ordered by insertion.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Item, error) {
	query := `SELECT ` + itemColumns + ` FROM queue_items`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return items, nil
}

// NextPending returns the oldest pending item, or nil when the queue has
// no pending work.
func (s *Store) NextPending(ctx context.Context) (*Item, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+itemColumns+` FROM queue_items WHERE status = ? ORDER BY id LIMIT 1`,
		StatusPending,
	)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next pending: %w", err)
	}
	return item, nil
}

// Remove deletes a single item. Returns true when a row was deleted.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM queue_items WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("remove item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// Clear deletes every item and returns the number removed.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM queue_items`)
	if err != nil {
		return 0, fmt.Errorf("clear queue: %w", err)
	}
	return res.RowsAffected()
}

// ClearCompleted deletes completed items and returns the number removed.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM queue_items WHERE status = ?`, StatusCompleted)
	if err != nil {
		return 0, fmt.Errorf("clear completed: %w", err)
	}
	return res.RowsAffected()
}

// ClearFailed deletes failed items and returns the number removed.
func (s *Store) ClearFailed(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM queue_items WHERE status = ?`, StatusFailed)
	if err != nil {
		return 0, fmt.Errorf("clear failed: %w", err)
	}
	return res.RowsAffected()
}

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		id           int64
		projectID    string
		source       sql.NullString
		instruction  sql.NullString
		statusStr    string
		errorMessage sql.NullString
		notationPath sql.NullString
		pdfPath      sql.NullString
		metadataPath sql.NullString
		qualityScore sql.NullFloat64
		refined      sql.NullInt64
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
		startedRaw   sql.NullString
		completedRaw sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&projectID,
		&source,
		&instruction,
		&statusStr,
		&errorMessage,
		&notationPath,
		&pdfPath,
		&metadataPath,
		&qualityScore,
		&refined,
		&createdRaw,
		&updatedRaw,
		&startedRaw,
		&completedRaw,
	); err != nil {
		return nil, err
	}

	item := &Item{
		ID:           id,
		ProjectID:    projectID,
		Source:       source.String,
		Instruction:  instruction.String,
		Status:       Status(statusStr),
		ErrorMessage: errorMessage.String,
		NotationPath: notationPath.String,
		PDFPath:      pdfPath.String,
		MetadataPath: metadataPath.String,
		QualityScore: qualityScore.Float64,
	}
	if refined.Valid {
		item.Refined = refined.Int64 != 0
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		item.UpdatedAt = updated
	}
	if startedRaw.Valid {
		if started, err := parseTimeString(startedRaw.String); err == nil {
			item.StartedAt = &started
		}
	}
	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			item.CompletedAt = &completed
		}
	}
	return item, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
