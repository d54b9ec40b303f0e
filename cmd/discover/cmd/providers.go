package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/FairHead/eventourismo-discover/internal/config"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List providers and their credential status",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		rows := []struct {
			name, auth, status string
		}{
			{"osm", "none", "ready"},
			{"ticketmaster", "TICKETMASTER_API_KEY", credStatus(cfg.TicketmasterAPIKey != "")},
			{"eventbrite", "EVENTBRITE_TOKEN", credStatus(cfg.EventbriteToken != "")},
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%-14s %-22s %s\n", "PROVIDER", "CREDENTIAL", "STATUS")
		for _, r := range rows {
			fmt.Fprintf(out, "%-14s %-22s %s\n", r.name, r.auth, r.status)
		}
		return nil
	},
}

func credStatus(configured bool) string {
	if configured {
		return "ready"
	}
	return "missing credential"
}

func init() {
	rootCmd.AddCommand(providersCmd)
}
