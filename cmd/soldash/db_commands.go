package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/soldash/soldash/service/db"
	"github.com/urfave/cli/v2"
)

func listTransactionsCommand() *cli.Command {
	return &cli.Command{
		Name:      "list-transactions",
		Usage:     "List recorded transactions for a wallet",
		Aliases:   []string{"txs"},
		ArgsUsage: "<wallet-address>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "type",
				Aliases: []string{"t"},
				Usage:   "Filter by type (transfer, swap)",
			},
			&cli.StringFlag{
				Name:    "status",
				Aliases: []string{"s"},
				Usage:   "Filter by status (pending, confirmed, failed)",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: wallet address")
			}

			address := c.Args().First()
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			txns, err := store.ListTransactionsByWallet(context.Background(), address)
			if err != nil {
				return fmt.Errorf("failed to list transactions: %w", err)
			}

			// Filter in process; the table is small per wallet
			typeFilter := c.String("type")
			statusFilter := c.String("status")
			if typeFilter != "" || statusFilter != "" {
				filtered := make([]*db.Transaction, 0, len(txns))
				for _, txn := range txns {
					if typeFilter != "" && txn.Type != typeFilter {
						continue
					}
					if statusFilter != "" && txn.Status != statusFilter {
						continue
					}
					filtered = append(filtered, txn)
				}
				txns = filtered
			}

			if c.Bool("json") {
				return outputJSON(txns)
			}

			// Pretty table output
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SIGNATURE\tTYPE\tSTATUS\tTIMESTAMP\tVALUE")
			for _, txn := range txns {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					shortSignature(txn.Signature),
					txn.Type,
					txn.Status,
					time.Unix(txn.Timestamp, 0).UTC().Format(time.RFC3339),
					formatOptionalSol(txn.Value),
				)
			}
			w.Flush()

			fmt.Fprintf(os.Stderr, "\nTotal: %d transactions\n", len(txns))
			return nil
		},
	}
}

func getTransactionCommand() *cli.Command {
	return &cli.Command{
		Name:      "get-transaction",
		Usage:     "Get transaction record details",
		Aliases:   []string{"get"},
		ArgsUsage: "<signature>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: transaction signature")
			}

			signature := c.Args().First()
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			txn, err := store.GetTransaction(context.Background(), signature)
			if err != nil {
				return fmt.Errorf("failed to get transaction: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(txn)
			}

			// Pretty output
			fmt.Printf("Signature:    %s\n", txn.Signature)
			fmt.Printf("Wallet:       %s\n", txn.WalletAddress)
			fmt.Printf("Type:         %s\n", txn.Type)
			fmt.Printf("Status:       %s\n", txn.Status)
			fmt.Printf("Timestamp:    %s\n", time.Unix(txn.Timestamp, 0).UTC().Format(time.RFC3339))
			fmt.Printf("Explorer:     %s\n", txn.ExplorerURL)
			fmt.Printf("From:         %s\n", formatOptionalString(txn.FromAddress))
			fmt.Printf("To:           %s\n", formatOptionalString(txn.ToAddress))
			fmt.Printf("Value:        %s\n", formatOptionalSol(txn.Value))
			fmt.Printf("Fee:          %s\n", formatOptionalSol(txn.Fee))
			for _, tc := range txn.TokenChanges {
				fmt.Printf("Token Change: %+f %s\n", tc.Amount, tc.TokenSymbol)
			}
			fmt.Printf("Created At:   %s\n", txn.CreatedAt.Format(time.RFC3339))

			return nil
		},
	}
}

func listPendingCommand() *cli.Command {
	return &cli.Command{
		Name:  "list-pending",
		Usage: "List pending transactions awaiting reconciliation",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "min-age",
				Usage: "Only show records pending for at least this long",
				Value: 0,
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Limit number of records",
				Value:   100,
			},
		},
		Action: func(c *cli.Context) error {
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			before := time.Now().Add(-c.Duration("min-age"))
			txns, err := store.ListPendingTransactions(context.Background(), before, int32(c.Int("limit")))
			if err != nil {
				return fmt.Errorf("failed to list pending transactions: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(txns)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SIGNATURE\tWALLET\tTYPE\tCREATED")
			for _, txn := range txns {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					shortSignature(txn.Signature),
					txn.WalletAddress,
					txn.Type,
					txn.CreatedAt.Format(time.RFC3339),
				)
			}
			w.Flush()

			fmt.Fprintf(os.Stderr, "\nTotal: %d pending\n", len(txns))
			return nil
		},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply the embedded schema to the database",
		Action: func(c *cli.Context) error {
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			if err := store.EnsureSchema(context.Background()); err != nil {
				return fmt.Errorf("failed to apply schema: %w", err)
			}

			fmt.Println("✓ Schema applied")
			return nil
		},
	}
}

// Helper function to connect to database
func getStore(c *cli.Context) (*db.Store, func(), error) {
	dbURL := c.String("database-url")
	if dbURL == "" && c.App != nil {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		return nil, nil, fmt.Errorf("database-url is required (set DATABASE_URL env var or use --database-url)")
	}

	pool, err := pgxpool.New(context.Background(), dbURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := db.NewStore(pool)
	closer := func() { pool.Close() }

	return store, closer, nil
}

// Helper function to output JSON
func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatOptionalString(s *string) string {
	if s != nil && *s != "" {
		return *s
	}
	return "(unknown)"
}

func formatOptionalSol(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.9f SOL", *v)
}

// shortSignature truncates long signatures for table output.
func shortSignature(sig string) string {
	if len(sig) <= 20 {
		return sig
	}
	return sig[:8] + "..." + sig[len(sig)-8:]
}
