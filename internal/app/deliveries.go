package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"
)

// Deliveries prints recent alert deliveries.
func (a *App) Deliveries(ctx context.Context, opts DeliveriesOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot list deliveries")
	}
	defer closeStore()

	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}

	deliveries, err := store.ListRecentDeliveries(ctx, limit)
	if err != nil {
		return err
	}
	if len(deliveries) == 0 {
		fmt.Fprintln(os.Stdout, "no deliveries found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Sent (UTC)\tRule\tMaterial\tChannel\tStatus\tMessage")

	for _, delivery := range deliveries {
		material := "-"
		if delivery.MaterialID != nil {
			material = *delivery.MaterialID
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\n",
			delivery.SentAt.UTC().Format(time.RFC3339),
			delivery.RuleID,
			material,
			delivery.Channel,
			delivery.Status,
			truncateInline(delivery.Message, 60),
		)
	}

	return writer.Flush()
}

func truncateInline(v string, max int) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	if len(cleaned) > max {
		return cleaned[:max-3] + "..."
	}
	return cleaned
}
