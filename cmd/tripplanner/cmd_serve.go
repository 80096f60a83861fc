package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/engine"
	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/server"
)

var listenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if listenAddr != "" {
			settings.ServerListenAddr = listenAddr
		}
		eng, st, err := engine.Build(settings, logger)
		if err != nil {
			return err
		}
		defer st.Close()

		srv := server.New(eng, settings, logger)

		errCh := make(chan error, 1)
		go func() { errCh <- srv.Listen() }()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case err := <-errCh:
			return err
		case <-sigCh:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(ctx)
		}
	},
}

func init() {
	serveCmd.Flags().StringVarP(&listenAddr, "listen", "l", "", "listen address (default from config)")
	rootCmd.AddCommand(serveCmd)
}
