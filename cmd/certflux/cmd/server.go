package cmd

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/jmcleod/certflux/api"
	"github.com/jmcleod/certflux/batch"
	"github.com/jmcleod/certflux/internal/util"
)

var (
	serverPort  int
	serverToken string
	tlsCert     string
	tlsKey      string
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the certificate issuance API server",
	Long: `server unlocks the intermediate CA once at startup and serves the
issuance API over TLS until interrupted. Set --token to require bearer
authentication on every endpoint except /health.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		f := newFormatter()

		cfg, err := loadConfig()
		if err != nil {
			return fail(f, err)
		}

		authority, err := loadCA(cfg, f)
		if err != nil {
			return fail(f, err)
		}
		defer authority.Close()

		inventory, err := openInventory(cfg)
		if err != nil {
			return fail(f, err)
		}
		if inventory != nil {
			defer inventory.Close()
		}

		logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

		runnerOpts := []batch.RunnerOption{batch.WithLogger(logger)}
		if inventory != nil {
			runnerOpts = append(runnerOpts, batch.WithInventory(inventory))
		}
		runner := batch.NewRunner(cfg, authority, runnerOpts...)

		apiOpts := []api.Option{api.WithLogger(logger)}
		if serverToken != "" {
			apiOpts = append(apiOpts, api.WithToken(serverToken))
		} else {
			f.Warn("No API token configured; endpoints are unauthenticated")
		}
		a := api.New(runner, authority, inventory, apiOpts...)

		r := chi.NewRouter()
		r.Use(middleware.Logger)
		r.Use(middleware.Recoverer)
		r.Mount("/api/v1", a.Router())

		var tlsConfig *tls.Config
		if tlsCert != "" && tlsKey != "" {
			cert, err := tls.LoadX509KeyPair(tlsCert, tlsKey)
			if err != nil {
				return fail(f, fmt.Errorf("loading TLS key pair: %w", err))
			}
			tlsConfig = &tls.Config{
				Certificates: []tls.Certificate{cert},
				MinVersion:   tls.VersionTLS12,
			}
		} else {
			cert, err := util.GenerateSelfSignedCert()
			if err != nil {
				return fail(f, fmt.Errorf("generating self-signed certificate: %w", err))
			}
			tlsConfig = &tls.Config{
				Certificates: []tls.Certificate{cert},
				MinVersion:   tls.VersionTLS12,
			}
			f.Warn("Using self-signed runtime generated certificate for TLS")
		}

		server := &http.Server{
			Addr:              fmt.Sprintf(":%d", serverPort),
			Handler:           r,
			TLSConfig:         tlsConfig,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		// Graceful shutdown on SIGINT/SIGTERM.
		done := make(chan error, 1)
		go func() {
			if err := server.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
				done <- fmt.Errorf("server failed: %w", err)
				return
			}
			done <- nil
		}()

		printBanner()
		f.Info("Serving on port %d as %s", serverPort, authority.Subject())

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			f.Info("Received %s, shutting down...", sig)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				return fail(f, fmt.Errorf("server shutdown failed: %w", err))
			}
			return nil
		case err := <-done:
			if err != nil {
				return fail(f, err)
			}
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.Flags().IntVarP(&serverPort, "port", "p", 8443, "Port to listen on")
	serverCmd.Flags().StringVar(&serverToken, "token", "", "Bearer token required for API access")
	serverCmd.Flags().StringVar(&tlsCert, "tls-cert", "", "Path to TLS certificate file")
	serverCmd.Flags().StringVar(&tlsKey, "tls-key", "", "Path to TLS key file")
}
