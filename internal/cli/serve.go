package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/quickmarket/internal/api"
	"github.com/fjod/quickmarket/internal/config"
	"github.com/fjod/quickmarket/internal/events"
	storefrontgrpc "github.com/fjod/quickmarket/internal/grpc"
	storefronthttp "github.com/fjod/quickmarket/internal/http"
	"github.com/fjod/quickmarket/internal/logger"
	"github.com/fjod/quickmarket/internal/payment"
	"github.com/fjod/quickmarket/internal/session"
	"github.com/fjod/quickmarket/internal/storage"
	"github.com/spf13/cobra"
)

const healthCheckInterval = 15 * time.Second

type ServeOptions struct {
	HTTPPort string
	GRPCPort string
}

func NewServeCommand(_ *RootOptions) *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:          "serve",
		Short:        "Run the HTTP and gRPC servers",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if opts.HTTPPort != "" {
				cfg.HTTPPort = opts.HTTPPort
			}
			if opts.GRPCPort != "" {
				cfg.GRPCPort = opts.GRPCPort
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&opts.HTTPPort, "http-port", "", "HTTP port (overrides HTTP_PORT)")
	cmd.Flags().StringVar(&opts.GRPCPort, "grpc-port", "", "gRPC port (overrides GRPC_PORT)")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := logger.New(os.Stdout, cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.StorageDriver, err)
	}
	defer store.Close()
	log.Info("session store ready", "driver", cfg.StorageDriver)

	var publisher events.Publisher = events.NoopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.KafkaTopic, cfg.KafkaBrokers...)
		log.Info("publishing payment events", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)

		consumer := events.NewKafkaConsumer(cfg.KafkaTopic, cfg.KafkaGroupID,
			payment.NewReconciler(store).HandlePaymentCompleted, log, cfg.KafkaBrokers...)
		defer consumer.Close()
		go consumer.Run(ctx)
	}
	defer publisher.Close()

	client := api.NewClient(cfg.APIBaseURL, cfg.APITimeout)
	sessions := session.NewManager(cfg.SessionSecret, cfg.SessionTTL, log)
	server := storefronthttp.NewServer(store, client, sessions, publisher, log, storefronthttp.Options{
		RequestTimeout:      cfg.RequestTimeout,
		PaymentSettleDelay:  cfg.PaymentSettleDelay,
		PaymentDisplayDelay: cfg.PaymentDisplayDelay,
		TrackingInterval:    cfg.TrackingInterval,
		FallbackEmail:       cfg.FallbackEmail,
	})

	httpServer := newHTTPServer(ctx, ":"+cfg.HTTPPort, server.Handler())

	grpcServer, health := storefrontgrpc.NewServer(store, log)
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("failed to listen on gRPC port: %w", err)
	}

	go health.Run(ctx, healthCheckInterval)
	if purger, ok := store.(storage.Purger); ok {
		go storage.NewJanitor(purger, cfg.SessionTTL, log).Run(ctx)
	}

	errCh := make(chan error, 2)
	go func() {
		log.Info("HTTP server listening", "port", cfg.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		log.Info("gRPC server listening", "port", cfg.GRPCPort)
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case runErr = <-errCh:
		log.Error("server failed", "error", runErr)
	}

	health.Shutdown()
	grpcServer.GracefulStop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}

	log.Info("storefront stopped")
	return runErr
}

// newHTTPServer derives request contexts from ctx so that open tracking
// streams end when the process is asked to stop. There is no write timeout:
// streams stay open while the page is.
func newHTTPServer(ctx context.Context, addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:        addr,
		Handler:     h,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
}
