package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/CyberwizD/smart-agro-advisor/internal/config"
	"github.com/CyberwizD/smart-agro-advisor/pkg/logger"
	"github.com/CyberwizD/smart-agro-advisor/pkg/metrics"
)

var sendOpts struct {
	to string
}

var sendCmd = &cobra.Command{
	Use:   "send [text|-]",
	Short: "Deliver a message through the chunked WhatsApp driver",
	Long: `Deliver a message to one recipient using the same chunking, shrink and
rate-limit handling as advisory replies. Pass "-" to read the text from stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := args[0]
		if text == "-" {
			raw, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return err
			}
			text = strings.TrimRight(string(raw), "\n")
		}

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("config error: %w", err)
		}
		logr := logger.New(cfg.LogLevel, cfg.LogFormat)
		m := metrics.New()

		if err := newDriver(cfg, logr, m).Deliver(cmd.Context(), sendOpts.to, text); err != nil {
			return err
		}
		snap := m.Snapshot()
		fmt.Fprintf(cmd.OutOrStdout(), "delivered to %s: %d part(s) sent, %d shrink(s)\n",
			sendOpts.to, snap["parts_sent"], snap["chunk_shrinks"])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVar(&sendOpts.to, "to", "", "Recipient address, e.g. whatsapp:+237600000000")
	_ = sendCmd.MarkFlagRequired("to")
}
