package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/stevemurr/docstore-api/handler"
	"github.com/stevemurr/docstore-api/server"
	"github.com/stevemurr/docstore-api/store"
)

var (
	serveHost    string
	servePort    int
	serveBackend string
	serveDataDir string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		if flags.Changed("host") {
			cfg.Host = serveHost
		}
		if flags.Changed("port") {
			cfg.Port = servePort
		}
		if flags.Changed("backend") {
			cfg.Backend = serveBackend
		}
		if flags.Changed("data-dir") {
			cfg.DataDir = serveDataDir
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		h := handler.New(s, handler.Options{
			StatusMessage:  cfg.StatusMessage,
			AllowedOrigins: cfg.AllowedOrigins,
			Logger:         log,
			Debug:          cfg.Debug,
		})
		srv := server.New(cfg.Addr(), h, log)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		log.Infow("docstore-api starting",
			"addr", cfg.Addr(),
			"backend", cfg.Backend,
			"data_dir", cfg.DataDir,
		)
		return srv.Run(ctx)
	},
}

// openStore builds the configured backend. Remote backends connect on first use.
func openStore() (store.Store, error) {
	opts, err := cfg.StoreOptions()
	if err != nil {
		return nil, err
	}
	opts.Logger = log
	return store.New(opts)
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Listen host (overrides API_HOST)")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Listen port (overrides API_PORT)")
	serveCmd.Flags().StringVar(&serveBackend, "backend", "", "Store backend: firestore, json, sqlite, postgres, memory")
	serveCmd.Flags().StringVar(&serveDataDir, "data-dir", "", "Directory of the local backends")
}
