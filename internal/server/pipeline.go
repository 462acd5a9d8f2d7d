package server

import (
	"context"

	"act-reconciliation-service/internal/completion"
	"act-reconciliation-service/internal/extract"
	"act-reconciliation-service/internal/models"
	"act-reconciliation-service/internal/reconciler"
	"act-reconciliation-service/internal/semantic"
	"act-reconciliation-service/internal/spreadsheet"
	"act-reconciliation-service/internal/sysindex"
	"act-reconciliation-service/internal/tabledetect"
	"act-reconciliation-service/pkg/logger"
)

// ProcessOptions controls one act processing request.
type ProcessOptions struct {
	NumberMode string
	// Semantic runs the keyword pre-filter and the model-backed
	// classification pass. Both boundaries default it to true; with
	// false the act passes through unfiltered.
	Semantic      bool
	SemanticBatch int

	// LLMExtract switches structure inference to whole-grid model
	// extraction for layouts the detectors cannot read.
	LLMExtract    bool
	LLMMaxChars   int
	LLMMaxRows    int
	LLMHeaderRows int
	LLMCellMax    int
}

// Pipeline runs the act processing steps: parse, structure, filter,
// number extraction.
type Pipeline struct {
	client    completion.Client
	ccfg      *completion.Config
	registry  *sysindex.Registry
	extractor *extract.Extractor
	filter    *semantic.Filter
	log       logger.Logger
}

// NewPipeline assembles a Pipeline. client may be nil; model-backed
// steps then fail with a configuration error when requested.
func NewPipeline(client completion.Client, ccfg *completion.Config, registry *sysindex.Registry, log logger.Logger) *Pipeline {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Pipeline{
		client:    client,
		ccfg:      ccfg,
		registry:  registry,
		extractor: extract.NewExtractor(client, ccfg),
		filter:    semantic.NewFilter(client, ccfg),
		log:       log.WithComponent("pipeline"),
	}
}

// ProcessAct parses an act file and returns its canonical records.
// With Semantic set, survivors of the keyword pre-filter go through
// the model-backed classification pass; otherwise no line filtering
// happens at all.
func (p *Pipeline) ProcessAct(ctx context.Context, fileName string, data []byte, opts *ProcessOptions) ([]*models.CanonicalRecord, error) {
	sheets, err := spreadsheet.ReadFile(fileName, data)
	if err != nil {
		return nil, err
	}

	mode, err := extract.ParseNumberMode(opts.NumberMode)
	if err != nil {
		return nil, err
	}

	var records []*models.CanonicalRecord
	for _, sheet := range sheets {
		recs, err := p.extractSheet(ctx, sheet.Grid, opts)
		if err != nil {
			return nil, err
		}
		records = append(records, recs...)
	}
	p.log.WithFields(logger.Fields{
		"file":    fileName,
		"sheets":  len(sheets),
		"records": len(records),
	}).Info("extracted act records")

	if opts.Semantic {
		semOpts := semantic.DefaultOptions()
		if opts.SemanticBatch > 0 {
			semOpts.BatchSize = opts.SemanticBatch
		}
		records, err = p.filter.Apply(ctx, records, semOpts)
		if err != nil {
			return nil, err
		}
	}

	extractOpts := extract.DefaultOptions()
	extractOpts.NumberMode = mode
	if err := p.extractor.ApplyNumberExtraction(ctx, records, extractOpts); err != nil {
		return nil, err
	}
	return records, nil
}

// extractSheet infers one grid's structure. Block detection wins;
// column role scoring is the fallback, and model extraction replaces
// both when requested.
func (p *Pipeline) extractSheet(ctx context.Context, grid models.Grid, opts *ProcessOptions) ([]*models.CanonicalRecord, error) {
	if opts.LLMExtract {
		rowOpts := extract.DefaultRowExtractOptions()
		if opts.LLMMaxChars > 0 {
			rowOpts.MaxChars = opts.LLMMaxChars
		}
		if opts.LLMMaxRows > 0 {
			rowOpts.MaxRows = opts.LLMMaxRows
		}
		if opts.LLMHeaderRows > 0 {
			rowOpts.HeaderRows = opts.LLMHeaderRows
		}
		if opts.LLMCellMax > 0 {
			rowOpts.CellMax = opts.LLMCellMax
		}
		return p.extractor.ExtractRecordsLLM(ctx, grid, rowOpts)
	}

	cfg := tabledetect.DefaultConfig()
	if blocks := tabledetect.DetectBlocks(grid, cfg); len(blocks) > 0 {
		return extract.FromBlocks(grid, blocks), nil
	}
	return extract.FromColumns(grid, tabledetect.DetectColumns(grid, cfg)), nil
}

// SystemFile is one external system export submitted for
// reconciliation.
type SystemFile struct {
	FileName string
	Data     []byte
}

// Reconcile processes the act, parses the system exports and the
// optional point mapping workbook, and runs the match.
func (p *Pipeline) Reconcile(ctx context.Context, actName string, actData []byte, systems []SystemFile, mapping []byte, supplier string, opts *ProcessOptions) (*reconciler.Result, error) {
	act, err := p.ProcessAct(ctx, actName, actData, opts)
	if err != nil {
		return nil, err
	}

	var sheets []models.Sheet
	for _, sf := range systems {
		parsed, err := spreadsheet.ReadFile(sf.FileName, sf.Data)
		if err != nil {
			return nil, err
		}
		sheets = append(sheets, parsed...)
	}

	var directory *reconciler.Directory
	if len(mapping) > 0 {
		mappingSheets, err := spreadsheet.ReadFile("mapping.xlsx", mapping)
		if err != nil {
			return nil, err
		}
		rawMaterials, regular := spreadsheet.LoadUnitMaps(mappingSheets)
		directory = reconciler.NewDirectory(rawMaterials, regular)
	}

	return reconciler.New(p.registry, directory, p.log).Reconcile(act, sheets, supplier)
}
