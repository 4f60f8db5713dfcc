package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/fekuna/omnipos-retail-loader/internal/inventory"
	invH "github.com/fekuna/omnipos-retail-loader/internal/inventory/handler"
	invListenerPkg "github.com/fekuna/omnipos-retail-loader/internal/inventory/listener"
	"github.com/fekuna/omnipos-retail-loader/pkg/broker"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

func NewListenCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "listen",
		Short: "Apply sale, return and delivery events from Kafka to inventory",
		Long: `Consumes SaleRecorded, ReturnRecorded and DeliveryRecorded events from
KAFKA_TOPIC_EVENTS and applies them through the inventory engine. Serves the
gRPC health service on GRPC_PORT, and prometheus metrics plus the inventory
query routes on HTTP_ADDR, until SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runListen(cmd.Context(), rootOpts)
		},
	}
}

func runListen(ctx context.Context, rootOpts *RootOptions) error {
	a, err := newApp(rootOpts)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start", err)
	}
	defer a.Close()
	cfg := a.cfg

	uc, err := a.inventoryUseCase()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start inventory engine", err)
	}

	kafkaConsumer := broker.NewConsumer(&broker.Config{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.Topic,
		GroupID: cfg.Kafka.GroupID,
	})
	defer kafkaConsumer.Close()
	a.logger.Info("Connected to Kafka Consumer", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))

	invListener := invListenerPkg.NewInventoryListener(kafkaConsumer, uc, a.logger.Named("listener"))

	port := cfg.Server.GRPCPort
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}
	lis, err := net.Listen("tcp", port)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen", err)
	}

	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)

	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           newRouter(a, uc),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		invListener.Start(gctx)
		return nil
	})
	g.Go(func() error {
		a.logger.Info("Starting gRPC server", zap.String("port", port))
		healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		a.logger.Info("Starting HTTP server", zap.String("addr", cfg.Server.HTTPAddr))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("Shutting down server...")
		healthServer.Shutdown()
		grpcServer.GracefulStop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	a.logger.Info("Server stopped")
	if err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitCommandError, "server failed", err)
	}
	return nil
}

func newRouter(a *app, uc inventory.UseCase) http.Handler {
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{Registry: a.registry})).Methods(http.MethodGet)
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := a.db.PingContext(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)
	invH.NewInventoryHandler(uc, a.logger.Named("http")).RegisterRoutes(router)
	return router
}
