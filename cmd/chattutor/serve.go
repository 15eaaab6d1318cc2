package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tailored-agentic-units/chattutor/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve tutoring turns over connect",
	Long: `Serve the tutor service over HTTP using the connect protocol.

Procedures:
  ` + server.TurnProcedure + `
  ` + server.ListSessionsProcedure + `

A health check is served at /healthz.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", ":8080", "Listen address")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	k, err := newKernel(cfg)
	if err != nil {
		return err
	}
	defer k.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", serveAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", serveAddr, err)
	}

	color.New(color.FgCyan).Fprintf(cmd.OutOrStdout(), "listening on %s\n", ln.Addr())

	svc := server.New(k, server.WithObserver(k.Observer()))
	return server.Serve(ctx, ln, server.Mux(svc))
}
