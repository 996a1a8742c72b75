package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/soldash/soldash/client"
	"github.com/urfave/cli/v2"
)

// clientCommands groups commands that exercise the HTTP API.
func clientCommands() *cli.Command {
	return &cli.Command{
		Name:  "client",
		Usage: "HTTP API commands",
		Subcommands: []*cli.Command{
			historyCommand(),
			updateStatusCommand(),
			balanceCommand(),
			swapQuoteCommand(),
		},
	}
}

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:      "history",
		Usage:     "List a wallet's transaction history via the HTTP API",
		ArgsUsage: "<wallet-address>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "filter",
				Aliases: []string{"f"},
				Usage:   "Filter by type (all, transfer, swap)",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: wallet address")
			}

			cl := getAPIClient(c)
			txns, err := cl.ListTransactions(context.Background(), c.Args().First(), c.String("filter"))
			if err != nil {
				return err
			}

			if c.Bool("json") {
				return outputJSON(txns)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SIGNATURE\tTYPE\tSTATUS\tTIMESTAMP")
			for _, txn := range txns {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					shortSignature(txn.Signature),
					txn.Type,
					txn.Status,
					time.Unix(txn.Timestamp, 0).UTC().Format(time.RFC3339),
				)
			}
			w.Flush()

			fmt.Fprintf(os.Stderr, "\nTotal: %d transactions\n", len(txns))
			return nil
		},
	}
}

func updateStatusCommand() *cli.Command {
	return &cli.Command{
		Name:      "update-status",
		Usage:     "Move a pending record to confirmed or failed",
		ArgsUsage: "<signature> <status>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return fmt.Errorf("requires exactly two arguments: signature status")
			}

			cl := getAPIClient(c)
			txn, err := cl.UpdateTransactionStatus(context.Background(), c.Args().Get(0), c.Args().Get(1))
			if err != nil {
				return err
			}

			if c.Bool("json") {
				return outputJSON(txn)
			}

			fmt.Printf("✓ Record status: %s\n", txn.Status)
			fmt.Printf("  Signature: %s\n", txn.Signature)
			return nil
		},
	}
}

func balanceCommand() *cli.Command {
	return &cli.Command{
		Name:      "balance",
		Usage:     "Show a wallet's SOL or token balance",
		ArgsUsage: "<wallet-address>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "token-mint",
				Usage: "SPL token mint address (omit for native SOL)",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: wallet address")
			}

			cl := getAPIClient(c)
			bal, err := cl.GetBalance(context.Background(), c.Args().First(), c.String("token-mint"))
			if err != nil {
				return err
			}

			if c.Bool("json") {
				return outputJSON(bal)
			}

			if bal.Mint != "" {
				fmt.Printf("Balance: %f (mint %s)\n", bal.Amount, bal.Mint)
			} else {
				fmt.Printf("Balance: %.9f SOL\n", bal.Amount)
			}
			return nil
		},
	}
}

func swapQuoteCommand() *cli.Command {
	return &cli.Command{
		Name:      "swap-quote",
		Usage:     "Request a swap quote from a provider",
		ArgsUsage: "<input-mint> <output-mint> <amount>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "provider",
				Aliases: []string{"p"},
				Usage:   "Swap provider (manual, jupiter, raydium)",
				Value:   "jupiter",
			},
			&cli.IntFlag{
				Name:  "slippage-bps",
				Usage: "Slippage tolerance in basis points (0 uses the server default)",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 3 {
				return fmt.Errorf("requires three arguments: input-mint output-mint amount")
			}

			var amount uint64
			if _, err := fmt.Sscanf(c.Args().Get(2), "%d", &amount); err != nil {
				return fmt.Errorf("invalid amount %q: must be an integer in base units", c.Args().Get(2))
			}

			cl := getAPIClient(c)
			quote, err := cl.GetSwapQuote(context.Background(), client.QuoteParams{
				Provider:    c.String("provider"),
				InputMint:   c.Args().Get(0),
				OutputMint:  c.Args().Get(1),
				Amount:      amount,
				SlippageBps: c.Int("slippage-bps"),
			})
			if err != nil {
				return err
			}

			if c.Bool("json") {
				return outputJSON(quote)
			}

			fmt.Printf("Provider:      %s\n", quote.Provider)
			fmt.Printf("In Amount:     %d\n", quote.InAmount)
			fmt.Printf("Out Amount:    %d\n", quote.OutAmount)
			fmt.Printf("Exchange Rate: %f\n", quote.ExchangeRate)
			priceImpact := quote.PriceImpactPct
			if priceImpact == "" {
				priceImpact = "0"
			}
			fmt.Printf("Price Impact:  %s%%\n", priceImpact)
			fmt.Printf("Slippage:      %d bps\n", quote.SlippageBps)
			return nil
		},
	}
}

// getAPIClient builds the HTTP client from the global server-url flag.
func getAPIClient(c *cli.Context) *client.Client {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
	return client.NewClient(c.String("server-url"), nil, logger)
}
