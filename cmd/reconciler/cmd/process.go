package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"act-reconciliation-service/cmd/reconciler/config"
	"act-reconciliation-service/internal/server"
	"act-reconciliation-service/pkg/errors"
)

var processFlags struct {
	actFile       string
	outputFile    string
	numberMode    string
	semantic      bool
	semanticBatch int
	llmExtract    bool
}

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Extract canonical records from a supplier act",
	Long: `Process parses a supplier act spreadsheet, infers its table
structure, filters out non-delivery lines and extracts document
numbers. The result is printed as JSON.

Examples:
  reconciler process --act act.xlsx --api-key $KEY --folder-id $FOLDER
  reconciler process --act act.xls --number-mode regex_only --semantic=false
  reconciler process --act act.xlsx --semantic=false`,
	RunE: func(cmd *cobra.Command, args []string) error {
		handler := NewCLIErrorHandler()
		if err := runProcess(cmd.Context()); err != nil {
			os.Exit(handler.HandleError(err))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().StringVar(&processFlags.actFile, "act", "", "supplier act file (required)")
	processCmd.Flags().StringVarP(&processFlags.outputFile, "output", "o", "", "output file (default stdout)")
	processCmd.Flags().StringVar(&processFlags.numberMode, "number-mode", "", "document number extraction: regex_first, regex_only, llm_only")
	processCmd.Flags().BoolVar(&processFlags.semantic, "semantic", true, "model-backed semantic filtering (--semantic=false disables all line filtering)")
	processCmd.Flags().IntVar(&processFlags.semanticBatch, "semantic-batch", 0, "semantic classification batch size")
	processCmd.Flags().BoolVar(&processFlags.llmExtract, "llm-extract", false, "use model-backed whole-grid extraction")

	processCmd.MarkFlagRequired("act")
}

func runProcess(ctx context.Context) error {
	log, err := config.SetupLogger()
	if err != nil {
		return err
	}
	pipeline, err := config.CreatePipeline(log)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(processFlags.actFile)
	if err != nil {
		return errors.InputError(errors.CodeUnreadableFile, processFlags.actFile, err)
	}

	records, err := pipeline.ProcessAct(ctx, processFlags.actFile, data, &server.ProcessOptions{
		NumberMode:    processFlags.numberMode,
		Semantic:      processFlags.semantic,
		SemanticBatch: processFlags.semanticBatch,
		LLMExtract:    processFlags.llmExtract,
	})
	if err != nil {
		return err
	}

	return writeJSONOutput(processFlags.outputFile, records)
}

func writeJSONOutput(path string, v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.InternalError("encode output", err)
	}
	if path == "" {
		fmt.Println(string(out))
		return nil
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return errors.InternalError("write output file", err)
	}
	return nil
}
