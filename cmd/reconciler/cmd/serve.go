package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"act-reconciliation-service/cmd/reconciler/config"
	"act-reconciliation-service/internal/server"
)

var serveFlags struct {
	addr    string
	maxBody int64
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP processing service",
	Long: `Serve exposes act processing and reconciliation over HTTP.

Endpoints:
  POST /process    process one act file (base64 payload)
  POST /reconcile  reconcile an act against system exports
  GET  /healthz    liveness probe

Examples:
  reconciler serve --addr :8080
  reconciler serve --addr 127.0.0.1:9000 --max-body 33554432`,
	RunE: func(cmd *cobra.Command, args []string) error {
		handler := NewCLIErrorHandler()
		if err := runServe(); err != nil {
			os.Exit(handler.HandleError(err))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveFlags.addr, "addr", ":8080", "listen address")
	serveCmd.Flags().Int64Var(&serveFlags.maxBody, "max-body", 0, "request body limit in bytes (0 = default)")
}

func runServe() error {
	log, err := config.SetupLogger()
	if err != nil {
		return err
	}
	pipeline, err := config.CreatePipeline(log)
	if err != nil {
		return err
	}
	srv := server.New(pipeline, log, serveFlags.maxBody)
	return srv.ListenAndServe(serveFlags.addr)
}
