package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"github.com/xuri/excelize/v2"

	"act-reconciliation-service/cmd/reconciler/config"
	"act-reconciliation-service/internal/reconciler"
	"act-reconciliation-service/internal/server"
	"act-reconciliation-service/internal/spreadsheet"
	"act-reconciliation-service/pkg/errors"
	"act-reconciliation-service/pkg/logger"
)

var reconcileFlags struct {
	actFile       string
	systemFiles   []string
	mappingFile   string
	supplier      string
	outputFile    string
	reportFile    string
	reportSheet   string
	numberMode    string
	semantic      bool
	semanticBatch int
	llmExtract    bool
}

// summarySystems orders the turnover block of the written report.
var summarySystems = []string{"IIKO", "SAP", "FB"}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile a supplier act against system exports",
	Long: `Reconcile processes the act, indexes the system export files by
supplier and document number, and matches every act line against
every system. The result is printed as JSON; with --report it is
also written into an xlsx report, preserving manager comments from
a previous run.

Examples:
  reconciler reconcile --act act.xlsx --systems iiko.xlsx,sap.xlsx --supplier "ООО Ромашка"
  reconciler reconcile --act act.xlsx --systems all.xlsx --supplier "ООО Ромашка" --report report.xlsx
  reconciler reconcile --act act.xlsx --systems all.xlsx --supplier "ООО Ромашка" --mapping points.xlsx`,
	RunE: func(cmd *cobra.Command, args []string) error {
		handler := NewCLIErrorHandler()
		if err := runReconcile(cmd.Context()); err != nil {
			os.Exit(handler.HandleError(err))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	reconcileCmd.Flags().StringVar(&reconcileFlags.actFile, "act", "", "supplier act file (required)")
	reconcileCmd.Flags().StringSliceVar(&reconcileFlags.systemFiles, "systems", nil, "system export files, comma-separated (required)")
	reconcileCmd.Flags().StringVar(&reconcileFlags.mappingFile, "mapping", "", "point-to-unit mapping workbook")
	reconcileCmd.Flags().StringVar(&reconcileFlags.supplier, "supplier", "", "supplier name (required)")
	reconcileCmd.Flags().StringVarP(&reconcileFlags.outputFile, "output", "o", "", "JSON output file (default stdout)")
	reconcileCmd.Flags().StringVar(&reconcileFlags.reportFile, "report", "", "xlsx report file to update")
	reconcileCmd.Flags().StringVar(&reconcileFlags.reportSheet, "report-sheet", "Сверка", "report sheet name")
	reconcileCmd.Flags().StringVar(&reconcileFlags.numberMode, "number-mode", "", "document number extraction: regex_first, regex_only, llm_only")
	reconcileCmd.Flags().BoolVar(&reconcileFlags.semantic, "semantic", true, "model-backed semantic filtering (--semantic=false disables all line filtering)")
	reconcileCmd.Flags().IntVar(&reconcileFlags.semanticBatch, "semantic-batch", 0, "semantic classification batch size")
	reconcileCmd.Flags().BoolVar(&reconcileFlags.llmExtract, "llm-extract", false, "use model-backed whole-grid extraction")

	reconcileCmd.MarkFlagRequired("act")
	reconcileCmd.MarkFlagRequired("systems")
	reconcileCmd.MarkFlagRequired("supplier")
}

func runReconcile(ctx context.Context) error {
	log, err := config.SetupLogger()
	if err != nil {
		return err
	}
	pipeline, err := config.CreatePipeline(log)
	if err != nil {
		return err
	}

	actData, err := os.ReadFile(reconcileFlags.actFile)
	if err != nil {
		return errors.InputError(errors.CodeUnreadableFile, reconcileFlags.actFile, err)
	}
	var systems []server.SystemFile
	for _, path := range reconcileFlags.systemFiles {
		data, err := os.ReadFile(path)
		if err != nil {
			return errors.InputError(errors.CodeUnreadableFile, path, err)
		}
		systems = append(systems, server.SystemFile{FileName: path, Data: data})
	}
	var mapping []byte
	if reconcileFlags.mappingFile != "" {
		mapping, err = os.ReadFile(reconcileFlags.mappingFile)
		if err != nil {
			return errors.InputError(errors.CodeUnreadableFile, reconcileFlags.mappingFile, err)
		}
	}

	result, err := pipeline.Reconcile(ctx, reconcileFlags.actFile, actData, systems, mapping, reconcileFlags.supplier, &server.ProcessOptions{
		NumberMode:    reconcileFlags.numberMode,
		Semantic:      reconcileFlags.semantic,
		SemanticBatch: reconcileFlags.semanticBatch,
		LLMExtract:    reconcileFlags.llmExtract,
	})
	if err != nil {
		return err
	}

	if reconcileFlags.reportFile != "" {
		if err := writeReport(result, log); err != nil {
			return err
		}
	}
	return writeJSONOutput(reconcileFlags.outputFile, result)
}

// writeReport updates the xlsx report in place when the file exists,
// so template headers and manager comments survive, and creates it
// otherwise.
func writeReport(result *reconciler.Result, log logger.Logger) error {
	var f *excelize.File
	if _, err := os.Stat(reconcileFlags.reportFile); err == nil {
		f, err = excelize.OpenFile(reconcileFlags.reportFile)
		if err != nil {
			return errors.InputError(errors.CodeUnreadableFile, reconcileFlags.reportFile, err)
		}
	} else {
		f = excelize.NewFile()
	}
	defer f.Close()

	if err := spreadsheet.UpdateReport(f, reconcileFlags.reportSheet, result.Rows, result.Summary, summarySystems, "IIKO"); err != nil {
		return err
	}
	if err := f.SaveAs(reconcileFlags.reportFile); err != nil {
		return errors.InternalError("save report file", err)
	}
	log.WithField("file", reconcileFlags.reportFile).Info("report written")
	return nil
}
