// fake-renter serves an in-memory renter API for local renter-probe runs.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/fruitsalade/renterprobe/internal/fakerenter"
	"github.com/fruitsalade/renterprobe/internal/logging"
)

func main() {
	addr := flag.String("listen", "127.0.0.1:8002", "Listen address")
	alias := flag.String("alias", "renter", "Alias this renter reports")
	peers := flag.String("peers", "", "Comma-separated aliases files can be shared with")
	logLevel := flag.String("log-level", "info", "Log level")
	flag.Parse()

	if err := logging.Init(logging.Config{Level: *logLevel, Format: "console"}); err != nil {
		panic("logging init: " + err.Error())
	}
	defer logging.Sync()
	logger := logging.L()

	var peerList []string
	for _, p := range strings.Split(*peers, ",") {
		if p = strings.TrimSpace(p); p != "" {
			peerList = append(peerList, p)
		}
	}

	srv := fakerenter.NewServer(fakerenter.NewStore(*alias, peerList...), logger)
	httpServer := &http.Server{
		Addr:              *addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("fake renter listening",
		zap.String("addr", *addr),
		zap.String("alias", *alias),
		zap.Strings("peers", peerList),
	)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
}
