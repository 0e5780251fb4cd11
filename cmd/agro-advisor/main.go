// Package main is the entry point for the agro-advisor service.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "agro-advisor",
	Short: "Smart Agro Advisor service",
	Long: `Smart Agro Advisor diagnoses crop leaf diseases from photos, combines the
result with local weather and replies to farmers over WhatsApp.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
