package main

import (
	"context"
	"encoding/csv"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/health-atlas/atlas-cli/internal/model"
	"github.com/health-atlas/atlas-cli/internal/store"
)

var (
	batchFile  string
	batchLimit int
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Validate a roster of providers from CSV or XLSX",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		providers, err := loadRoster(batchFile)
		if err != nil {
			return err
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		validate := func(ctx context.Context, p model.NormalizedProvider) model.ValidationOutcome {
			return env.Pipeline.Validate(ctx, p)
		}
		return processBatch(ctx, providers, batchLimit, cfg.Batch.MaxConcurrentRecords, env.Store, validate)
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchFile, "file", "", "roster file, .csv or .xlsx (required)")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "max number of records to process (0 = all)")
	_ = batchCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(batchCmd)
}

// loadRoster reads a provider roster. The first row is a header whose column
// names are matched through the same alias table as every other input path.
func loadRoster(path string) ([]model.NormalizedProvider, error) {
	var rows [][]string
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		rows, err = readCSVRows(path)
	case ".xlsx":
		rows, err = readXLSXRows(path)
	default:
		return nil, eris.Errorf("batch: unsupported roster format %q (.csv or .xlsx)", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, eris.New("batch: roster has no data rows")
	}

	header := rows[0]
	providers := make([]model.NormalizedProvider, 0, len(rows)-1)
	for _, row := range rows[1:] {
		raw := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(row) {
				raw[col] = row[i]
			}
		}
		p := model.NormalizeProvider(raw)
		if p.FullName == "" && p.NPI == "" {
			continue // blank or unusable row
		}
		providers = append(providers, p)
	}
	return providers, nil
}

func readCSVRows(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "batch: open roster")
	}
	defer f.Close() //nolint:errcheck

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "batch: parse csv")
	}
	return rows, nil
}

func readXLSXRows(path string) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "batch: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("batch: xlsx roster has no sheets")
	}

	sheet := f.Sheets[0]
	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

// validateFunc is the callback signature for validating one provider.
type validateFunc func(ctx context.Context, p model.NormalizedProvider) model.ValidationOutcome

// processBatch validates providers concurrently, persisting every outcome and
// enqueueing review entries. A record-level failure never aborts the batch;
// the pipeline reports it through the ERROR path instead.
func processBatch(ctx context.Context, providers []model.NormalizedProvider, limit, concurrency int, st store.Store, validate validateFunc) error {
	if len(providers) == 0 {
		zap.L().Info("no providers in roster")
		return nil
	}
	if limit > 0 && len(providers) > limit {
		providers = providers[:limit]
	}

	zap.L().Info("processing batch",
		zap.Int("providers", len(providers)),
		zap.Int("concurrency", concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var validated, flagged, saveErrors atomic.Int64

	for _, provider := range providers {
		g.Go(func() error {
			log := zap.L().With(
				zap.String("provider", provider.FullName),
				zap.String("npi", provider.NPI),
			)

			outcome := validate(gctx, provider)
			validated.Add(1)
			if outcome.RequiresHumanReview {
				flagged.Add(1)
			}

			record, err := st.SaveValidation(gctx, outcome)
			if err != nil {
				saveErrors.Add(1)
				log.Error("save validation failed", zap.Error(err))
				return nil // don't abort the batch on individual failure
			}
			if outcome.RequiresHumanReview {
				if _, err := st.EnqueueReview(gctx, record.ID, outcome.ReviewReason); err != nil {
					log.Warn("enqueue review failed", zap.Error(err))
				}
			}

			log.Info("validation complete",
				zap.Float64("score", outcome.Confidence.Score),
				zap.String("tier", string(outcome.Confidence.Tier)),
				zap.String("path", string(outcome.Confidence.Path)),
				zap.Bool("requires_review", outcome.RequiresHumanReview),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return eris.Wrap(err, "batch processing")
	}

	zap.L().Info("batch complete",
		zap.Int64("validated", validated.Load()),
		zap.Int64("flagged_for_review", flagged.Load()),
		zap.Int64("save_errors", saveErrors.Load()),
	)
	return nil
}
