// Package app orchestrates the reconciliation pipeline: load normalized
// transactions (CSV export, repository, or an exchange API with its page
// cache), replay them through the cost-basis engine and render the reports.
package app

import (
	"context"
	"fmt"

	"cryptoPnlCalc/internal/domain"
	"cryptoPnlCalc/internal/engine"
	"cryptoPnlCalc/internal/ports"
	"cryptoPnlCalc/internal/report"
)

// ReconcileService runs the cost-basis engine over a transaction set and
// writes the resulting reports.
type ReconcileService struct {
	logger     ports.Logger
	calculator *engine.Calculator
	results    ports.ResultsCache
}

// ReconcileConfig holds configuration for the ReconcileService.
type ReconcileConfig struct {
	Logger     ports.Logger
	Calculator *engine.Calculator
	// Results, when set, receives a snapshot of every finished run.
	Results ports.ResultsCache
}

// RunOptions controls what a reconciliation run writes.
type RunOptions struct {
	AnnotatedPath string // annotated stream CSV, skipped when empty
	SummaryPath   string // summary CSV, skipped when empty
	RenderPDF     bool   // also render the written CSVs as PDFs
	PDFTitle      string
	PDFNotes      string
	IncludeFlat   bool // keep summary rows with neither profit nor loss
}

// RunReport is the outcome of one reconciliation run.
type RunReport struct {
	Annotated []*domain.AnnotatedTransaction
	Summary   []domain.PositionSummary

	TotalProfit        float64
	TotalLoss          float64
	TotalProfitAndLoss float64
}

// NewReconcileService creates a ReconcileService.
func NewReconcileService(cfg ReconcileConfig) (*ReconcileService, error) {
	if cfg.Logger == nil || cfg.Calculator == nil {
		return nil, fmt.Errorf("missing required dependencies for ReconcileService")
	}
	return &ReconcileService{logger: cfg.Logger, calculator: cfg.Calculator, results: cfg.Results}, nil
}

// Run replays txs through the engine, aggregates the summary and writes the
// configured reports. Positions that realized neither profit nor loss are
// dropped from the summary unless IncludeFlat is set; the annotated stream is
// always complete.
func (s *ReconcileService) Run(ctx context.Context, txs []domain.Transaction, opts RunOptions) (*RunReport, error) {
	annotated, err := s.calculator.Calculate(ctx, txs)
	if err != nil {
		return nil, err
	}
	summary, err := s.calculator.Summary(ctx, txs, annotated)
	if err != nil {
		return nil, err
	}

	if !opts.IncludeFlat {
		kept := summary[:0]
		for _, row := range summary {
			if row.Profit != 0 || row.Loss != 0 {
				kept = append(kept, row)
			}
		}
		summary = kept
	}

	result := &RunReport{Annotated: annotated, Summary: summary}
	for _, row := range summary {
		result.TotalProfit += row.Profit
		result.TotalLoss += row.Loss
		result.TotalProfitAndLoss += row.ProfitAndLoss
	}
	result.TotalProfit = round2(result.TotalProfit)
	result.TotalLoss = round2(result.TotalLoss)
	result.TotalProfitAndLoss = round2(result.TotalProfitAndLoss)

	if opts.AnnotatedPath != "" {
		if err := report.WriteAnnotatedCSV(annotated, opts.AnnotatedPath); err != nil {
			return nil, err
		}
		if opts.RenderPDF && len(annotated) > 0 {
			if err := report.RenderPDF(opts.AnnotatedPath, opts.PDFTitle, opts.PDFNotes); err != nil {
				return nil, err
			}
		}
	}
	if opts.SummaryPath != "" {
		if err := report.WriteSummaryCSV(summary, opts.SummaryPath); err != nil {
			return nil, err
		}
		if opts.RenderPDF && len(summary) > 0 {
			if err := report.RenderPDF(opts.SummaryPath, opts.PDFTitle, opts.PDFNotes); err != nil {
				return nil, err
			}
		}
	}

	if s.results != nil {
		if err := s.results.Save("reconciliation", result); err != nil {
			s.logger.Warn(ctx, "Failed to snapshot the run", map[string]interface{}{"error": err.Error()})
		}
	}

	s.logger.Info(ctx, "Reconciliation finished", map[string]interface{}{
		"transactions": len(annotated),
		"positions":    len(summary),
		"totalProfit":  result.TotalProfit,
		"totalLoss":    result.TotalLoss,
		"totalPnl":     result.TotalProfitAndLoss,
	})
	return result, nil
}
