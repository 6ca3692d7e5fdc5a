package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/passport-photo/internal/config"
	"github.com/example/passport-photo/internal/handlers"
	"github.com/example/passport-photo/internal/health"
	"github.com/example/passport-photo/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "passport",
	Short: "Passport photo maker backed by Cloudinary",
	Long: `Passport uploads a portrait to Cloudinary, derives a passport-sized
transformation (face crop, background removal, enhancement) and waits for it to render.

Examples:
  passport serve
  passport make portrait.jpg --out ./photos
  passport profiles`,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and gRPC health service",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd, makeCmd, profilesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(cfg.Debug)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck
	logger.Info("configuration loaded", zap.Stringer("config", cfg))

	startCtx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
	defer cancel()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	app, err := buildPipeline(startCtx, cfg, registry, logger)
	if err != nil {
		logger.Error("failed to build pipeline", zap.Error(err))
		return err
	}
	defer app.Close()

	grpcServer, err := health.Listen(cfg.GRPCAddr, logger)
	if err != nil {
		logger.Error("failed to start gRPC health service", zap.Error(err))
		return err
	}
	go func() {
		if err := grpcServer.Serve(); err != nil {
			logger.Error("gRPC health service stopped", zap.Error(err))
		}
	}()

	// Request contexts derive from baseCtx so shutdown stops in-flight poll loops.
	baseCtx, cancelRequests := context.WithCancel(context.Background())
	defer cancelRequests()

	r := newRouter(cfg, app, registry, logger)
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}

	grpcServer.SetServing(true)
	logger.Info("passport API listening", zap.String("addr", cfg.HTTPAddr), zap.String("profile", app.deriver.Profile().ID()))
	return serveHTTPServer(server, 15*time.Second, logger, func() {
		grpcServer.SetServing(false)
		grpcServer.Stop()
	}, cancelRequests)
}

func newRouter(cfg *config.Config, app *pipeline, registry *prometheus.Registry, logger *zap.Logger) *gin.Engine {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), logging.GinMiddleware(logger))

	corsConfig := cors.DefaultConfig()
	if origins := cfg.AllowedOrigins(); len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = origins
	}
	corsConfig.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	r.Use(cors.New(corsConfig))

	r.MaxMultipartMemory = cfg.MaxUploadBytes
	handlers.RegisterRoutes(r, app.usecase, handlers.Options{
		MaxUploadBytes: cfg.MaxUploadBytes,
		UploadLimiter:  handlers.RateLimit(cfg.UploadRatePerMinute, cfg.UploadRateBurst),
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})))
	return r
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func serveHTTPServer(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger, onShutdown ...func()) error {
	return serveHTTPServerWithOptions(server, shutdownTimeout, logger, nil, nil, onShutdown...)
}

func serveHTTPServerWithOptions(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger, listener net.Listener, signalCh <-chan os.Signal, onShutdown ...func()) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if listener != nil {
			err = server.Serve(listener)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	var (
		sigCh       <-chan os.Signal
		stopSignals func()
	)

	if signalCh != nil {
		sigCh = signalCh
		stopSignals = func() {}
	} else {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		sigCh = ch
		stopSignals = func() {
			signal.Stop(ch)
		}
	}
	defer stopSignals()

	select {
	case err := <-errCh:
		return err
	case sig, ok := <-sigCh:
		if !ok {
			return <-errCh
		}
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		for _, hook := range onShutdown {
			hook()
		}
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return <-errCh
	}
}
