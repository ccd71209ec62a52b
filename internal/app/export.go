package app

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"balance-sentinel/internal/storage"
)

// Export writes the latest snapshot as CSV and/or a PNG bar chart of USD
// values per chain.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	snapshot, err := store.LoadStatus(ctx)
	if err != nil {
		return err
	}
	if snapshot == nil {
		return errors.New("no status snapshot published yet")
	}

	a.Logger.Info().Int("chains", len(snapshot.Chains)).Time("snapshot", snapshot.Timestamp).Msg("exporting snapshot")

	if opts.CSVPath != "" {
		if err := writeSnapshotCSV(opts.CSVPath, snapshot); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeSnapshotPNG(opts.PNGPath, snapshot); err != nil {
			return err
		}
	}

	return nil
}

func writeSnapshotCSV(path string, snapshot *storage.StatusSnapshot) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"timestamp", "chain", "symbol", "balance", "value_usd", "below_threshold", "error"}
	if err := writer.Write(header); err != nil {
		return err
	}

	ts := snapshot.Timestamp.UTC().Format(time.RFC3339)
	for _, chain := range snapshot.Chains {
		balance := ""
		if chain.Balance != nil {
			balance = chain.Balance.String()
		}
		value := ""
		if chain.ValueUSD != nil {
			value = chain.ValueUSD.String()
		}
		below := "false"
		if chain.BelowThreshold {
			below = "true"
		}
		record := []string{ts, chain.Chain, chain.Symbol, balance, value, below, chain.Error}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeSnapshotPNG(path string, snapshot *storage.StatusSnapshot) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	bars := make([]chart.Value, 0, len(snapshot.Chains))
	for _, c := range snapshot.Chains {
		value := 0.0
		if c.ValueUSD != nil {
			value = c.ValueUSD.InexactFloat64()
		}
		bars = append(bars, chart.Value{Label: c.Chain, Value: value})
	}
	if len(bars) == 0 {
		return errors.New("snapshot contains no chains")
	}

	graph := chart.BarChart{
		Title:    "Wallet value (USD) at " + snapshot.Timestamp.UTC().Format(time.RFC3339),
		Width:    1280,
		Height:   720,
		BarWidth: 60,
		Bars:     bars,
		YAxis: chart.YAxis{
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "$%.2f")
			},
		},
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
