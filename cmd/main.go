package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	// OpenTelemetry
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"

	// Drivers
	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"

	// Interne
	"github.com/jupiterclapton/cenackle/services/trust-service/config"
	"github.com/jupiterclapton/cenackle/services/trust-service/internal/adapters/primary/events"
	"github.com/jupiterclapton/cenackle/services/trust-service/internal/adapters/secondary/directory"
	"github.com/jupiterclapton/cenackle/services/trust-service/internal/adapters/secondary/eventbroker"
	"github.com/jupiterclapton/cenackle/services/trust-service/internal/adapters/secondary/repository"
	"github.com/jupiterclapton/cenackle/services/trust-service/internal/adapters/secondary/security"
	"github.com/jupiterclapton/cenackle/services/trust-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/trust-service/internal/core/ports"
	"github.com/jupiterclapton/cenackle/services/trust-service/internal/core/services"
)

func main() {
	// 1. Charger la Config
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 2. Initialiser le Logger (slog JSON pour la prod, Text pour le dev)
	initLogger(cfg)
	slog.Info("🚀 Starting Trust Service", "env", cfg.Env, "port", cfg.GRPCPort)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Initialiser le Tracing (OpenTelemetry)
	tp, err := initTracer(ctx, cfg)
	if err != nil {
		slog.Error("Failed to init tracer", "error", err)
	} else {
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				slog.Error("Error shutting down tracer", "error", err)
			}
		}()
	}

	// 4. Infrastructure : Postgres (signalements + annuaire users)
	dbConfig, err := pgxpool.ParseConfig(cfg.DBUrl)
	if err != nil {
		slog.Error("Unable to parse DB config", "error", err)
		os.Exit(1)
	}
	dbConfig.ConnConfig.Tracer = otelpgx.NewTracer()

	dbPool, err := pgxpool.NewWithConfig(ctx, dbConfig)
	if err != nil {
		slog.Error("Unable to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	// Vérification connectivité immédiate (Fail Fast)
	if err := dbPool.Ping(ctx); err != nil {
		slog.Error("Database ping failed", "error", err)
		os.Exit(1)
	}
	slog.Info("✅ Database connected")

	// 5. Infrastructure : Neo4j (graphe de follow)
	driver, err := neo4j.NewDriverWithContext(cfg.Neo4jURI, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPass, ""))
	if err != nil {
		slog.Error("Failed to create neo4j driver", "error", err)
		os.Exit(1)
	}
	defer driver.Close(context.Background())

	connectCtx, connectCancel := context.WithTimeout(ctx, 5*time.Second)
	defer connectCancel()
	if err := driver.VerifyConnectivity(connectCtx); err != nil {
		slog.Error("Failed to connect to Neo4j", "error", err)
		os.Exit(1)
	}
	slog.Info("✅ Connected to Neo4j")

	followRepo := repository.NewNeo4jFollowRepo(driver)
	if err := followRepo.EnsureSchema(context.Background()); err != nil {
		slog.Warn("Schema init failed (might be fine if already exists)", "error", err)
	}

	// 6. Infrastructure : Redis (cache de profils)
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisotel.InstrumentTracing(rdb); err != nil {
		slog.Error("Failed to instrument redis", "error", err)
		os.Exit(1)
	}
	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Error("Unable to connect to Redis", "error", err)
		os.Exit(1)
	}
	slog.Info("✅ Connected to Redis")

	// 7. Infrastructure : NATS (broker + commandes entrantes)
	nc, err := nats.Connect(cfg.NatsUrl)
	if err != nil {
		slog.Error("Unable to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer nc.Close()

	broker, err := eventbroker.NewNatsBroker(nc)
	if err != nil {
		slog.Error("Failed to init NATS JetStream", "error", err)
		os.Exit(1)
	}
	slog.Info("✅ NATS JetStream connected")

	// 8. Sécurité : decoder de claims (vérifié si clé publique fournie)
	decoder, err := buildDecoder(cfg)
	if err != nil {
		slog.Error("Failed to init claims decoder", "error", err)
		os.Exit(1)
	}

	// 9. Wiring (Injection de dépendances) - Adapters -> Services
	idDirectory := directory.NewCachedDirectory(directory.NewPostgresDirectory(dbPool), rdb, cfg.ProfileCacheTTL)
	reportRepo := repository.NewPostgresReportRepo(dbPool)

	validator := services.NewSessionValidator(decoder)
	gate := services.NewAuthGate(validator, decoder, idDirectory)
	followService := services.NewFollowService(followRepo, idDirectory)

	moderationService, err := services.NewModerationService(reportRepo, idDirectory, broker, domain.ModerationThresholds{
		Low:  cfg.ReportLowThreshold,
		High: cfg.ReportHighThreshold,
	})
	if err != nil {
		slog.Error("Failed to init moderation service", "error", err)
		os.Exit(1)
	}

	// 10. Adapter Primaire : commandes NATS (le gateway relaie token inclus)
	handler := events.NewEventHandler(gate, followService, moderationService)
	subscriptions := map[string]nats.MsgHandler{
		events.SubjectReportFiled:  handler.HandleReportFiled,
		events.SubjectFollowToggle: handler.HandleFollowToggle,
		events.SubjectFollowList:   handler.HandleFollowList,
	}
	for subject, h := range subscriptions {
		if _, err := nc.QueueSubscribe(subject, cfg.ServiceName, h); err != nil {
			slog.Error("Failed to subscribe to NATS", "subject", subject, "error", err)
			os.Exit(1)
		}
	}
	slog.Info("👂 Listening for commands (NATS)", "subjects", len(subscriptions))

	// 11. Serveur gRPC : health + reflection (la surface RPC métier vit
	// dans le gateway, ce shell expose le standard K8s)
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		slog.Error("Failed to listen", "port", cfg.GRPCPort, "error", err)
		os.Exit(1)
	}

	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
	)

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(cfg.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	if cfg.Env != "prod" {
		reflection.Register(grpcServer)
		slog.Info("🔍 gRPC Reflection enabled")
	}

	go func() {
		slog.Info("🚀 gRPC Server listening", "address", lis.Addr())
		if err := grpcServer.Serve(lis); err != nil {
			slog.Error("Failed to serve", "error", err)
			os.Exit(1)
		}
	}()

	// 12. Graceful Shutdown (attente des signaux OS)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	sig := <-quit
	slog.Info("⚠️  Signal received, shutting down...", "signal", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
		grpcServer.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("✅ gRPC Server stopped gracefully")
	case <-shutdownCtx.Done():
		slog.Warn("⏳ Timeout reached, forcing server stop")
		grpcServer.Stop()
	}

	slog.Info("👋 Service stopped")
}

// --- HELPERS ---

func buildDecoder(cfg *config.Config) (ports.ClaimsDecoder, error) {
	if cfg.RSAPublicKeyPath == "" {
		// Extraction structurelle seule : un payload forgé avec un exp futur
		// passerait. Acceptable en local uniquement.
		slog.Warn("⚠️  Token signature verification DISABLED (no RSA_PUBLIC_KEY_PATH)")
		return security.NewUnverifiedDecoder(), nil
	}

	pub, err := os.ReadFile(cfg.RSAPublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("reading public key: %w", err)
	}
	return security.NewVerifyingDecoder(pub)
}

func initLogger(cfg *config.Config) {
	var handler slog.Handler
	if cfg.Env == "local" {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	slog.SetDefault(slog.New(handler))
}

func initTracer(ctx context.Context, cfg *config.Config) (*sdktrace.TracerProvider, error) {
	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OtelEndpoint),
		otlptracegrpc.WithInsecure(), // En prod, gérez le TLS
	)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String("1.0.0"),
			semconv.DeploymentEnvironmentKey.String(cfg.Env),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	// Set global propagator (propagation du trace-id via les headers NATS)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	return tp, nil
}
