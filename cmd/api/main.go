package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nimasrn/receipt-gateway/internal/app"
	"github.com/nimasrn/receipt-gateway/internal/config"
	"github.com/nimasrn/receipt-gateway/internal/handlers"
	xhttp "github.com/nimasrn/receipt-gateway/pkg/http"
	"github.com/nimasrn/receipt-gateway/pkg/logger"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {

	err := config.Load(app.EnvPath(os.Args))
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}
	cfg := config.Get()
	logger.Info("starting receipt api", "version", version, "commit", commit, "date", date)

	// transport (tcp for now)
	// a receipt run may wait on the converter and the SMTP server in turn,
	// the request timeout bounds the whole pipeline
	opts := xhttp.DefaultServerOption.WithTimeouts(
		time.Duration(cfg.HttpServerReadTimeout)*time.Millisecond,
		time.Duration(cfg.HttpServerWriteTimeout)*time.Millisecond,
		cfg.HttpRequestTimeout,
	)
	s := xhttp.NewServer(opts)
	s.Server.ReadBufferSize = 1024 * 16
	s.Server.WriteBufferSize = 1024 * 16
	if cfg.HttpServerReadBufferSize > 0 {
		s.Server.ReadBufferSize = cfg.HttpServerReadBufferSize
	}
	if cfg.HttpServerWriteBufferSize > 0 {
		s.Server.WriteBufferSize = cfg.HttpServerWriteBufferSize
	}
	s.Use(xhttp.CompressMiddleware(6))
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(xhttp.RecoverMiddleware)
	s.Router = xhttp.CreateDefaultRouter()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	receipts, err := app.NewReceipts(ctx, cfg)
	cancel()
	if err != nil {
		logger.Error("failed wiring receipt service", "error", err)
		return
	}

	app.StartMetrics(cfg)

	// v1 handlers
	receiptHandler := handlers.NewReceiptHandler(receipts.Service)
	healthHandler := handlers.NewHealthHandler(receipts.DB)

	g := s.Router.Group(cfg.HttpBaseRequestUrl)
	handlers.RegisterReceiptRoutes(g, receiptHandler)
	handlers.RegisterHealthRoutes(g, healthHandler)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		var err = s.ListenAndServe(cfg.HttpListenAddr)
		if err != nil {
			logger.Error("error in running http-server", "error", err)
		}
	}()

	<-c
	s.Shutdown()
}
