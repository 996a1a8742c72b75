package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/itchyny/gojq"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	natspkg "github.com/soldash/soldash/service/nats"
	"github.com/urfave/cli/v2"
)

// subscribeCommand subscribes to record events for a wallet.
func subscribeCommand() *cli.Command {
	return &cli.Command{
		Name:      "subscribe",
		Usage:     "Subscribe to record events for a wallet",
		ArgsUsage: "<wallet_address>",
		Description: `Subscribe to real-time record events published to NATS JetStream.

This command connects to NATS and streams record events for the specified wallet address.
Events are published to the subject: txrecords.{wallet_address}

Use --must-jq to filter events with jq expressions evaluated against the
event JSON. All filters must evaluate to a truthy value.

Examples:
  soldash nats subscribe DYw8jCTfwHNRJhhmFcbXvVDTqWMEVFBX6ZKUmG5CNSKK --json
  soldash nats subscribe DYw8jCTf... --must-jq '.kind == "status_changed"'
  soldash nats subscribe DYw8jCTf... --must-jq '.type == "swap"' --must-jq '.status == "confirmed"'`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "nats-url",
				Usage:   "NATS server URL",
				EnvVars: []string{"NATS_URL"},
				Value:   "nats://localhost:4222",
			},
			&cli.StringSliceFlag{
				Name:    "must-jq",
				Aliases: []string{"jq"},
				Usage:   "jq filter expression that must evaluate to true (can be specified multiple times, all must match)",
			},
			&cli.BoolFlag{
				Name:    "durable",
				Aliases: []string{"d"},
				Usage:   "Create a durable consumer (survives restarts)",
			},
			&cli.StringFlag{
				Name:  "consumer-name",
				Usage: "Consumer name (required for durable)",
				Value: "soldash-cli",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("wallet address is required")
			}

			address := c.Args().Get(0)

			filters, err := compileJQFilters(c.StringSlice("must-jq"))
			if err != nil {
				return err
			}

			return streamRecordEvents(streamOptions{
				address:      address,
				natsURL:      c.String("nats-url"),
				durable:      c.Bool("durable"),
				consumerName: c.String("consumer-name"),
				jsonOutput:   c.Bool("json"),
				filters:      filters,
			})
		},
	}
}

type streamOptions struct {
	address      string
	natsURL      string
	durable      bool
	consumerName string
	jsonOutput   bool
	filters      []*gojq.Code
}

// streamRecordEvents connects to NATS and streams record events.
func streamRecordEvents(opts streamOptions) error {
	nc, err := nats.Connect(opts.natsURL)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	subject := fmt.Sprintf("txrecords.%s", opts.address)

	if !opts.jsonOutput {
		fmt.Printf("📡 Subscribing to: %s\n", subject)
		fmt.Printf("   NATS: %s\n", opts.natsURL)
		if opts.durable {
			fmt.Printf("   Consumer: %s (durable)\n", opts.consumerName)
		}
		fmt.Printf("\nWaiting for record events... (Ctrl-C to exit)\n\n")
	}

	consumerConfig := jetstream.ConsumerConfig{
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
	}
	if opts.durable {
		consumerConfig.Durable = opts.consumerName
		consumerConfig.Name = opts.consumerName
	}

	cons, err := js.CreateOrUpdateConsumer(context.Background(), natspkg.StreamName, consumerConfig)
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	msgChan := make(chan jetstream.Msg, 10)
	go func() {
		_, _ = cons.Consume(func(msg jetstream.Msg) {
			msgChan <- msg
		})
	}()

	count := 0
	for {
		select {
		case msg := <-msgChan:
			var event natspkg.RecordEvent
			if err := json.Unmarshal(msg.Data(), &event); err != nil {
				if !opts.jsonOutput {
					fmt.Fprintf(os.Stderr, "Error parsing event: %v\n", err)
				}
				msg.Ack()
				continue
			}

			if !matchesJQFilters(msg.Data(), opts.filters) {
				msg.Ack()
				continue
			}

			count++

			if opts.jsonOutput {
				data, _ := json.Marshal(event)
				fmt.Println(string(data))
			} else {
				fmt.Printf("─────────────────────────────────────────────────────\n")
				fmt.Printf("Event #%d (%s)\n", count, event.Kind)
				fmt.Printf("─────────────────────────────────────────────────────\n")
				fmt.Printf("Signature:    %s\n", event.Signature)
				fmt.Printf("Wallet:       %s\n", event.WalletAddress)
				fmt.Printf("Type:         %s\n", event.Type)
				fmt.Printf("Status:       %s\n", event.Status)
				if event.Value != nil {
					fmt.Printf("Value:        %.9f SOL\n", *event.Value)
				}
				fmt.Printf("Explorer:     %s\n", event.ExplorerURL)
				fmt.Printf("Published:    %s\n", event.PublishedAt.Format(time.RFC3339))
				fmt.Printf("\n")
			}

			msg.Ack()

		case <-sigChan:
			if !opts.jsonOutput {
				fmt.Printf("\n\n✅ Received %d events\n", count)
				fmt.Println("Shutting down...")
			}
			return nil
		}
	}
}

// inspectStreamCommand shows information about the NATS JetStream stream.
func inspectStreamCommand() *cli.Command {
	return &cli.Command{
		Name:  "inspect-stream",
		Usage: "Inspect the TXRECORDS JetStream stream",
		Description: `Show information about the JetStream stream including message count,
consumers, storage usage, and configuration.

Example:
  soldash nats inspect-stream`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "nats-url",
				Usage:   "NATS server URL",
				EnvVars: []string{"NATS_URL"},
				Value:   "nats://localhost:4222",
			},
		},
		Action: func(c *cli.Context) error {
			nc, err := nats.Connect(c.String("nats-url"))
			if err != nil {
				return fmt.Errorf("failed to connect to NATS: %w", err)
			}
			defer nc.Close()

			js, err := jetstream.New(nc)
			if err != nil {
				return fmt.Errorf("failed to create JetStream context: %w", err)
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			stream, err := js.Stream(ctx, natspkg.StreamName)
			if err != nil {
				return fmt.Errorf("failed to get stream %s: %w", natspkg.StreamName, err)
			}

			info, err := stream.Info(ctx)
			if err != nil {
				return fmt.Errorf("failed to get stream info: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(info)
			}

			fmt.Printf("Stream:      %s\n", info.Config.Name)
			fmt.Printf("Subjects:    %v\n", info.Config.Subjects)
			fmt.Printf("Messages:    %d\n", info.State.Msgs)
			fmt.Printf("Bytes:       %d\n", info.State.Bytes)
			fmt.Printf("First Seq:   %d\n", info.State.FirstSeq)
			fmt.Printf("Last Seq:    %d\n", info.State.LastSeq)
			fmt.Printf("Consumers:   %d\n", info.State.Consumers)
			fmt.Printf("Max Age:     %v\n", info.Config.MaxAge)
			return nil
		},
	}
}

// compileJQFilters parses and compiles a slice of jq expressions.
func compileJQFilters(filters []string) ([]*gojq.Code, error) {
	compiled := make([]*gojq.Code, len(filters))
	for i, filter := range filters {
		query, err := gojq.Parse(filter)
		if err != nil {
			return nil, fmt.Errorf("failed to parse jq filter %q: %w", filter, err)
		}
		compiled[i], err = gojq.Compile(query)
		if err != nil {
			return nil, fmt.Errorf("failed to compile jq filter %q: %w", filter, err)
		}
	}
	return compiled, nil
}

// matchesJQFilters reports whether the event JSON satisfies every filter.
func matchesJQFilters(data []byte, filters []*gojq.Code) bool {
	if len(filters) == 0 {
		return true
	}

	var eventJSON interface{}
	if err := json.Unmarshal(data, &eventJSON); err != nil {
		return false
	}

	for _, code := range filters {
		iter := code.Run(eventJSON)
		v, ok := iter.Next()
		if !ok {
			return false
		}
		if _, isErr := v.(error); isErr {
			return false
		}
		if !isTruthy(v) {
			return false
		}
	}
	return true
}

// isTruthy checks if a jq result value is truthy.
// In jq, false and null are falsy, everything else is truthy.
func isTruthy(v interface{}) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	// Everything else (numbers, strings, objects, arrays) is truthy
	return true
}
