package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/momentics/rostersync/api"
	"github.com/momentics/rostersync/client"
	"github.com/momentics/rostersync/internal/logging"
	"github.com/momentics/rostersync/protocol"
)

type runOptions struct {
	cfg      *client.Config
	payload  string
	interval time.Duration
	count    int
	logLevel string
}

func runCmd() *cobra.Command {
	opts := runOptions{cfg: client.DefaultConfig()}
	cfg := opts.cfg

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Publish a payload and print the roster",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runClient(ctx, cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVarP(&cfg.Host, "host", "a", cfg.Host, "Server host")
	cmd.Flags().StringVarP(&cfg.Port, "port", "p", cfg.Port, "Server port")
	cmd.Flags().StringVar(&cfg.Network, "network", cfg.Network, "Transport: tcp or ws")
	cmd.Flags().StringVar(&cfg.WSPath, "ws-path", "", "WebSocket path when --network=ws")
	cmd.Flags().IntVarP(&cfg.RecordSize, "size", "s", cfg.RecordSize, "Record size in bytes, client id included")
	cmd.Flags().IntVarP(&cfg.MaxClients, "connections", "c", cfg.MaxClients, "Client id bound")
	cmd.Flags().DurationVar(&cfg.RetryDelay, "retry-delay", cfg.RetryDelay, "Pause between failed sends")
	cmd.Flags().DurationVar(&cfg.IOTimeout, "io-timeout", cfg.IOTimeout, "Per send/receive timeout (0 disables)")
	cmd.Flags().StringVar(&opts.payload, "payload", "hello", "Payload to publish, truncated or zero padded to fit")
	cmd.Flags().DurationVar(&opts.interval, "interval", time.Second, "Delay between cycles")
	cmd.Flags().IntVarP(&opts.count, "count", "n", 0, "Cycles to run (0 runs until interrupted)")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn, error")

	return cmd
}

func runClient(ctx context.Context, out io.Writer, opts runOptions) error {
	log, err := logging.New(os.Stderr, opts.logLevel)
	if err != nil {
		return err
	}
	if opts.cfg.RecordSize < protocol.IDSize {
		return fmt.Errorf("%w: record size %d", api.ErrInvalidConfig, opts.cfg.RecordSize)
	}

	local := &protocol.Record{Payload: make([]byte, opts.cfg.RecordSize-protocol.IDSize)}
	copy(local.Payload, opts.payload)

	s, err := client.NewSession(opts.cfg, local, client.WithLogger(log))
	if err != nil {
		return err
	}
	defer s.Close()
	s.Start()

	poll := time.NewTicker(time.Millisecond)
	defer poll.Stop()
	var next time.Time

	for cycles := 0; opts.count == 0 || cycles < opts.count; {
		select {
		case <-ctx.Done():
			return nil
		case now := <-poll.C:
			switch s.State() {
			case api.StateWrite:
				if now.Before(next) {
					continue
				}
				s.Publish()
				next = now.Add(opts.interval)
			case api.StateRead:
				printRoster(out, s.AssignedID(), s.Snapshot())
				cycles++
			}
		}
	}
	return nil
}

func printRoster(out io.Writer, self int32, roster []protocol.Record) {
	fmt.Fprintf(out, "self=%d peers=%d\n", self, len(roster))
	for _, r := range roster {
		fmt.Fprintf(out, "  id=%-4d %q\n", r.ID, trimZeros(r.Payload))
	}
}

func trimZeros(b []byte) []byte {
	for len(b) > 0 && b[len(b)-1] == 0 {
		b = b[:len(b)-1]
	}
	return b
}
