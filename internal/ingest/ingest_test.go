package ingest_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"clef/internal/ingest"
	"clef/internal/services"
	"clef/internal/services/ffmpeg"
	"clef/internal/stage"
	"clef/internal/testsupport"
)

type fakeDownloader struct {
	path  string
	err   error
	calls int
}

func (f *fakeDownloader) Download(ctx context.Context, url, outputDir string) (string, error) {
	f.calls++
	return f.path, f.err
}

type fakeDecoder struct {
	err    error
	calls  int
	source string
}

func (f *fakeDecoder) Decode(ctx context.Context, inputPath, outputPath string, sampleRate, channels int) (ffmpeg.Result, error) {
	f.calls++
	f.source = inputPath
	if f.err != nil {
		return ffmpeg.Result{}, f.err
	}
	if err := os.WriteFile(outputPath, []byte("RIFF fake wav"), 0o644); err != nil {
		return ffmpeg.Result{}, err
	}
	return ffmpeg.Result{
		Path:            outputPath,
		DurationSeconds: 2.5,
		SampleRate:      sampleRate,
		Channels:        channels,
	}, nil
}

func (f *fakeDecoder) Probe(ctx context.Context, path string) (float64, error) {
	return 2.5, nil
}

func TestExecuteDecodesLocalFile(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	workDir := t.TempDir()
	source := filepath.Join(workDir, "take.mp3")
	testsupport.WriteFile(t, source, 128)

	decoder := &fakeDecoder{}
	s := ingest.New(cfg, nil, decoder)

	res, err := s.Execute(context.Background(), stage.Request{
		ProjectID: "proj",
		InputPath: source,
		WorkDir:   workDir,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	want := filepath.Join(workDir, "proj_ingest.wav")
	if res.ArtifactPath != want {
		t.Fatalf("artifact = %s, want %s", res.ArtifactPath, want)
	}
	if decoder.source != source {
		t.Fatalf("decoder received %s, want %s", decoder.source, source)
	}
	if res.Metrics["duration_seconds"] != 2.5 {
		t.Fatalf("duration metric = %v", res.Metrics["duration_seconds"])
	}
	if len(res.TempPaths) != 0 {
		t.Fatalf("local ingest should not register temp paths, got %v", res.TempPaths)
	}
}

func TestExecuteDownloadsURL(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	workDir := t.TempDir()
	downloaded := filepath.Join(workDir, "fetched.webm")
	testsupport.WriteFile(t, downloaded, 64)

	downloader := &fakeDownloader{path: downloaded}
	decoder := &fakeDecoder{}
	s := ingest.New(cfg, downloader, decoder)

	res, err := s.Execute(context.Background(), stage.Request{
		ProjectID: "proj",
		InputPath: "https://example.com/watch?v=abc",
		WorkDir:   workDir,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if downloader.calls != 1 {
		t.Fatalf("downloader calls = %d", downloader.calls)
	}
	if decoder.source != downloaded {
		t.Fatalf("decoder received %s, want the downloaded file", decoder.source)
	}
	found := false
	for _, temp := range res.TempPaths {
		if temp == downloaded {
			found = true
		}
	}
	if !found {
		t.Fatalf("downloaded file missing from temp paths: %v", res.TempPaths)
	}
}

func TestExecuteReportsDownloadWhenDecodeFails(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	workDir := t.TempDir()
	downloaded := filepath.Join(workDir, "fetched.m4a")
	testsupport.WriteFile(t, downloaded, 64)

	downloader := &fakeDownloader{path: downloaded}
	decoder := &fakeDecoder{err: errors.New("unsupported codec")}
	s := ingest.New(cfg, downloader, decoder)

	res, err := s.Execute(context.Background(), stage.Request{
		ProjectID: "proj",
		InputPath: "https://example.com/watch?v=abc",
		WorkDir:   workDir,
	})
	if !errors.Is(err, services.ErrIngest) {
		t.Fatalf("expected ingest error, got %v", err)
	}
	// The download completed before the decode failed; the controller can
	// only delete it if the failed result still lists it.
	found := false
	for _, temp := range res.TempPaths {
		if temp == downloaded {
			found = true
		}
	}
	if !found {
		t.Fatalf("downloaded file missing from failed result's temp paths: %v", res.TempPaths)
	}
}

func TestExecuteRejectsMissingSource(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	s := ingest.New(cfg, nil, &fakeDecoder{})

	_, err := s.Execute(context.Background(), stage.Request{
		ProjectID: "proj",
		InputPath: filepath.Join(t.TempDir(), "nope.wav"),
		WorkDir:   t.TempDir(),
	})
	if !errors.Is(err, services.ErrIngest) {
		t.Fatalf("expected ingest error, got %v", err)
	}
	if services.Stage(err) != "ingest" {
		t.Fatalf("stage = %q", services.Stage(err))
	}
}

func TestExecuteRejectsEmptyInput(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	s := ingest.New(cfg, nil, &fakeDecoder{})

	_, err := s.Execute(context.Background(), stage.Request{ProjectID: "proj", WorkDir: t.TempDir()})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestExecuteURLWithoutDownloader(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	s := ingest.New(cfg, nil, &fakeDecoder{})

	_, err := s.Execute(context.Background(), stage.Request{
		ProjectID: "proj",
		InputPath: "https://example.com/a",
		WorkDir:   t.TempDir(),
	})
	if !errors.Is(err, services.ErrIngest) {
		t.Fatalf("expected ingest error, got %v", err)
	}
}

func TestExecuteClassifiesTimeouts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	workDir := t.TempDir()
	source := filepath.Join(workDir, "take.wav")
	testsupport.WriteFile(t, source, 64)

	decoder := &fakeDecoder{err: context.DeadlineExceeded}
	s := ingest.New(cfg, nil, decoder)

	_, err := s.Execute(context.Background(), stage.Request{
		ProjectID: "proj",
		InputPath: source,
		WorkDir:   workDir,
	})
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout error, got %v", err)
	}
}

func TestIsURL(t *testing.T) {
	cases := map[string]bool{
		"https://example.com/a.wav": true,
		"HTTP://example.com":        true,
		"/home/user/a.wav":          false,
		"ftp://example.com/a.wav":   false,
		"":                          false,
	}
	for input, want := range cases {
		if got := ingest.IsURL(input); got != want {
			t.Errorf("IsURL(%q) = %v, want %v", input, got, want)
		}
	}
}
