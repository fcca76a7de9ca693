package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/rickgao/trademonitor/internal/model"
	"github.com/rickgao/trademonitor/internal/store"
)

// TradesCmd groups the trade lookup commands.
func TradesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trades",
		Short: "Query inferred trades",
		Long:  "Look up inferred trades in the configured store by id, user, copy, or item",
	}

	recent := &cobra.Command{
		Use:   "recent",
		Short: "Show the most recent trades",
		Args:  cobra.NoArgs,
		RunE: withStore(func(ctx context.Context, cmd *cobra.Command, st store.Store, _ []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			ids, err := st.FetchRecentTrades(ctx, limit)
			if err != nil {
				return fmt.Errorf("failed to fetch recent trades: %w", err)
			}
			return printTrades(ctx, cmd.OutOrStdout(), st, ids)
		}),
	}
	recent.Flags().Int("limit", 20, "maximum number of trades to show")

	show := &cobra.Command{
		Use:   "show [trade-id]",
		Short: "Show one trade",
		Args:  cobra.ExactArgs(1),
		RunE: withStore(func(ctx context.Context, cmd *cobra.Command, st store.Store, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid trade id %q: %w", args[0], err)
			}
			return printTrades(ctx, cmd.OutOrStdout(), st, []uuid.UUID{id})
		}),
	}

	cmd.AddCommand(recent, show,
		fieldCmd("user [user-id]", "Show trades involving a user", store.FieldUserOne, store.FieldUserTwo),
		fieldCmd("uaid [uaid]", "Show trades that moved a copy", store.FieldUAID),
		fieldCmd("item [item-id]", "Show trades involving an item", store.FieldItemID),
	)
	return cmd
}

// fieldCmd builds a lookup command matching any of fields.
func fieldCmd(use, short string, fields ...store.Field) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: withStore(func(ctx context.Context, cmd *cobra.Command, st store.Store, args []string) error {
			value, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid id %q: %w", args[0], err)
			}

			var ids []uuid.UUID
			seen := make(map[uuid.UUID]struct{})
			for _, f := range fields {
				found, err := st.FindTradesByField(ctx, f, value)
				if err != nil {
					return fmt.Errorf("failed to find trades: %w", err)
				}
				for _, id := range found {
					if _, dup := seen[id]; !dup {
						seen[id] = struct{}{}
						ids = append(ids, id)
					}
				}
			}
			return printTrades(ctx, cmd.OutOrStdout(), st, ids)
		}),
	}
}

type storeFunc func(ctx context.Context, cmd *cobra.Command, st store.Store, args []string) error

// withStore opens the configured store for the duration of one command.
func withStore(fn storeFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		// Keep stdout for results.
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		st, err := openStore(ctx, cfg, logger)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close()

		return fn(ctx, cmd, st, args)
	}
}

var (
	receivedColor = color.New(color.FgHiGreen)
	sentColor     = color.New(color.FgHiRed)
	idColor       = color.New(color.FgCyan)
	dimColor      = color.New(color.FgHiBlack)
)

func printTrades(ctx context.Context, out io.Writer, st store.Store, ids []uuid.UUID) error {
	if len(ids) == 0 {
		fmt.Fprintln(out, "No trades found.")
		return nil
	}

	for _, id := range ids {
		t, err := store.LoadTrade(ctx, st, id)
		if err != nil {
			return fmt.Errorf("failed to load trade %s: %w", id, err)
		}
		printTrade(out, t)
	}
	return nil
}

func printTrade(out io.Writer, t *model.Trade) {
	when := time.UnixMilli(t.TimestampMs).UTC().Format(time.RFC3339)
	fmt.Fprintf(out, "Trade %s  %s\n", idColor.Sprint(t.ID), dimColor.Sprint(when))
	fmt.Fprintf(out, "  %d <-> %d\n", t.UserA, t.UserB)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  DIRECTION\tUSER\tITEM\tUAID")
	for _, item := range t.Items {
		dir := sentColor.Sprint(item.Direction)
		if item.Received() {
			dir = receivedColor.Sprint(item.Direction)
		}
		fmt.Fprintf(w, "  %s\t%d\t%d\t%d\n", dir, item.UserID, item.ItemID, item.UAID)
	}
	w.Flush()
	fmt.Fprintln(out)
}
