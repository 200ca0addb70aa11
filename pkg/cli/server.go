package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	urfave "github.com/urfave/cli/v2"

	"github.com/grodin-io/freq/pkg/logging"
	"github.com/grodin-io/freq/pkg/service"
)

const (
	serverShutdownWaitSeconds = 5
	serverTimeoutSeconds      = 30
	serverMaxHeaderBytes      = 20
)

var (
	portFlag = &urfave.IntFlag{
		Name:     "port",
		Usage:    "Port on which the server will listen",
		Required: false,
	}

	serverCmd = &urfave.Command{
		Name:    "server",
		Aliases: []string{"serve"},
		Usage:   "Start the local scoring HTTP API",
		Action:  cmdStartServer,
		Flags: []urfave.Flag{
			portFlag,
		},
	}
)

func cmdStartServer(c *urfave.Context) error {
	cfg := getConfig(c)

	level := cfg.Settings.LogLevel
	if c.Bool(debugFlag.Name) {
		level = "debug"
	}
	logging.SetDefaultServerLogger(level)

	// Refuse to listen until assembly succeeds: there is no degraded model
	// to serve.
	if err := cfg.Scorer.Ready(); err != nil {
		return err
	}

	port := c.Int(portFlag.Name)
	if port == 0 {
		port = cfg.Settings.Port
	}
	address := fmt.Sprintf("127.0.0.1:%d", port)

	mux := makeRouter(cfg.Scorer)
	s := &http.Server{
		Addr:           address,
		Handler:        mux,
		ReadTimeout:    serverTimeoutSeconds * time.Second,
		WriteTimeout:   serverTimeoutSeconds * time.Second,
		MaxHeaderBytes: 1 << serverMaxHeaderBytes,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("error starting server", "error", err)
		}
	}()

	slog.Info("server started", "address", address)

	<-done

	ctx, cancel := context.WithTimeout(context.Background(), serverShutdownWaitSeconds*time.Second)
	defer cancel()

	if err := s.Shutdown(ctx); err != nil && err != http.ErrServerClosed {
		slog.Error("error shutting down server", "error", err)
	}
	return nil
}

func makeRouter(scorer *service.Scorer) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", healthHandler(scorer))
	mux.HandleFunc("GET /schema", schemaHandler(scorer))
	mux.HandleFunc("POST /score", scoreAPIHandler(scorer))

	return mux
}
