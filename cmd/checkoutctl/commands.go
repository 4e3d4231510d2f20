package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/example/ec-checkout/internal/domain/order"
	"github.com/spf13/cobra"
)

var errJWTSecretRequired = errors.New("JWT_SECRET is required to issue tokens")

func newRootCmd(open runtimeOpener, tokens tokenOpener) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "checkoutctl",
		Short:         "Inspect and reconcile checkout orders",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(statusCmd(open))
	rootCmd.AddCommand(confirmCmd(open))
	rootCmd.AddCommand(pendingCmd(open))
	rootCmd.AddCommand(tokenCmd(tokens))
	return rootCmd
}

func statusCmd(open runtimeOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "status [sessionId]",
		Short: "Print the order recorded for a payment session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()

			o, err := rt.reconciler.GetBySession(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), o)
		},
	}
}

func confirmCmd(open runtimeOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "confirm [sessionId]",
		Short: "Ask the payment provider whether a session was paid and record the outcome",
		Long: `Runs the same confirmation as the storefront's return page.
Use it when a webhook was lost. An unpaid session is reported and left pending.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()

			o, err := rt.reconciler.ConfirmByPolling(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), o)
		},
	}
}

func pendingCmd(open runtimeOpener) *cobra.Command {
	var (
		olderThan time.Duration
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List orders still waiting for a payment outcome",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan < 0 {
				return fmt.Errorf("--older-than must not be negative")
			}
			rt, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()

			now := rt.now()
			orders, err := rt.ledger.ListPending(cmd.Context(), now.Add(-olderThan))
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), orders)
			}
			return writePendingTable(cmd.OutOrStdout(), orders, now)
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", time.Hour, "Only list orders created at least this long ago")
	cmd.Flags().BoolVarP(&asJSON, "json", "j", false, "Output as JSON")
	return cmd
}

func tokenCmd(open tokenOpener) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "token [userId]",
		Short: "Issue a bearer token for a user id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tokens, err := open()
			if err != nil {
				return err
			}
			token, expiresAt, err := tokens.Issue(args[0], email)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires at %s\n", expiresAt.Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email claim")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writePendingTable(w io.Writer, orders []*order.Order, now time.Time) error {
	if len(orders) == 0 {
		_, err := fmt.Fprintln(w, "no pending orders")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SESSION\tORDER\tEMAIL\tTOTAL\tAGE")
	for _, o := range orders {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			o.SessionID,
			o.ID,
			o.Email,
			o.TotalAmount.StringFixed(2),
			now.Sub(o.CreatedAt).Truncate(time.Second),
		)
	}
	return tw.Flush()
}
