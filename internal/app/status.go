package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"balance-sentinel/internal/alerting"
)

// Status prints the latest published snapshot.
func (a *App) Status(ctx context.Context) error {
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
		fmt.Fprintln(os.Stdout, "no status snapshot published yet")
		return nil
	}

	fmt.Fprintf(os.Stdout, "Last check: %s\n\n", snapshot.Timestamp.UTC().Format(time.RFC3339))

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Chain\tSymbol\tBalance\tValue (USD)\tBelow\tError")

	for _, chain := range snapshot.Chains {
		below := ""
		if chain.BelowThreshold {
			below = "yes"
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\n",
			chain.Chain,
			chain.Symbol,
			alerting.FormatBalance(chain.Balance),
			alerting.FormatUSD(chain.ValueUSD),
			below,
			sanitizeInline(chain.Error),
		)
	}

	writer.Flush()
	return nil
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
