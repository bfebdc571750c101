package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"clef/internal/pipeline"
	"clef/internal/watch"
)

func newConvertCommand(ctx *commandContext) *cobra.Command {
	var projectID string
	var instruction string

	cmd := &cobra.Command{
		Use:   "convert <audio-file-or-url>",
		Short: "Convert one recording to sheet music without queueing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := strings.TrimSpace(args[0])
			if input == "" {
				return fmt.Errorf("input must not be empty")
			}

			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			controller, err := ctx.newController(logger)
			if err != nil {
				return err
			}

			id := strings.TrimSpace(projectID)
			if id == "" {
				id = watch.ProjectIDForFile(input)
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			result := controller.Run(runCtx, pipeline.Request{
				Input:       input,
				ProjectID:   id,
				Instruction: instruction,
			})
			printConvertResult(cmd, result)
			if !result.Success {
				return result.Err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&projectID, "project-id", "", "Project identifier (derived from the input when empty)")
	cmd.Flags().StringVar(&instruction, "instruction", "", "Free-text guidance for refinement")
	return cmd
}

func printConvertResult(cmd *cobra.Command, result pipeline.FinalResult) {
	out := cmd.OutOrStdout()
	if !result.Success {
		fmt.Fprintf(out, "Conversion failed at %s stage\n", result.FailedStage)
		return
	}
	fmt.Fprintf(out, "Project %s completed in %s\n", result.ProjectID, result.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(out, "  Notation: %s\n", result.NotationPath)
	if result.PDFPath != "" {
		fmt.Fprintf(out, "  PDF:      %s\n", result.PDFPath)
	}
	fmt.Fprintf(out, "  Metadata: %s\n", result.MetadataPath)
	fmt.Fprintf(out, "  Refined:  %s\n", yesNo(result.Refined))
	fmt.Fprintf(out, "  Quality:  %.2f\n", result.QualityScore())
	for _, warning := range result.Warnings {
		fmt.Fprintf(out, "  Warning:  %s\n", warning)
	}
}
