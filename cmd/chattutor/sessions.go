package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List saved sessions",
	RunE:  runSessions,
}

var idStyle = lipgloss.NewStyle().Bold(true)

func runSessions(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !verbose && cfg.Observer == "slog" {
		cfg.Observer = "warn"
	}

	k, err := newKernel(cfg)
	if err != nil {
		return err
	}
	defer k.Close()

	infos, err := k.Sessions(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(infos) == 0 {
		fmt.Fprintln(out, "No saved sessions found.")
		return nil
	}

	fmt.Fprintln(out, strings.Repeat("─", 60))
	for _, info := range infos {
		fmt.Fprintf(out, "%s  %s\n", idStyle.Render(info.ID), info.Topic)
		color.New(color.Faint).Fprintf(out, "    %s · %d messages\n",
			info.LastUpdated.Local().Format(time.DateTime), info.Messages)
	}
	fmt.Fprintln(out, strings.Repeat("─", 60))
	fmt.Fprintf(out, "Total: %d sessions\n", len(infos))
	fmt.Fprintln(out, "\nUse: chattutor chat --session <id>")
	return nil
}
