package cmd

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/asistente-voz/vozterm/internal/stubserver"
)

var (
	servePort    int
	serveDataDir string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a local development backend",
	Long:  `Run a local backend implementing the assistant API: auth, queries with confirmation round-trips, history, feedback and the admin knowledge surface. Point a profile's backend URL at it for offline development.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func runServe() error {
	dataDir := serveDataDir
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolving home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".vozterm", "server")
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer logger.Sync()

	store, err := stubserver.Open(dataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("warning: closing storage: %v", err)
		}
	}()

	var answerer stubserver.Answerer
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		answerer = stubserver.NewOpenAIAnswerer(apiKey, os.Getenv("OPENAI_BASE_URL"), os.Getenv("OPENAI_MODEL"))
		logger.Info("answering via chat completions")
	} else {
		answerer = stubserver.NewCannedAnswerer()
		logger.Info("OPENAI_API_KEY not set, answering with canned responses")
	}

	server := stubserver.NewServer(store, answerer, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := fmt.Sprintf("127.0.0.1:%d", servePort)
	srv := &http.Server{
		Addr:    addr,
		Handler: server.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "vozterm server listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 8787, "port to listen on")
	serveCmd.Flags().StringVar(&serveDataDir, "data-dir", "", "storage directory (defaults to ~/.vozterm/server)")
	rootCmd.AddCommand(serveCmd)
}
