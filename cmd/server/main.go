package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/pesio-ai/be-procurement-assistant/internal/client"
	"github.com/pesio-ai/be-procurement-assistant/internal/handler"
	"github.com/pesio-ai/be-procurement-assistant/internal/pkg/config"
	"github.com/pesio-ai/be-procurement-assistant/internal/pkg/database"
	"github.com/pesio-ai/be-procurement-assistant/internal/pkg/logger"
	"github.com/pesio-ai/be-procurement-assistant/internal/pkg/middleware"
	"github.com/pesio-ai/be-procurement-assistant/internal/pkg/natsclient"
	"github.com/pesio-ai/be-procurement-assistant/internal/repository"
	"github.com/pesio-ai/be-procurement-assistant/internal/service"
)

func main() {
	path, err := configPath(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid arguments: %v\n", err)
		os.Exit(2)
	}

	// Load configuration
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Environment: cfg.Service.Environment,
		ServiceName: cfg.Service.Name,
		Version:     cfg.Service.Version,
	})

	log.Info().
		Str("service", cfg.Service.Name).
		Str("version", cfg.Service.Version).
		Str("environment", cfg.Service.Environment).
		Msg("Starting Procurement Assistant")

	// Create context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Audit log is optional
	var audit service.AuditAppender
	if cfg.Database.URL != "" {
		db, err := database.New(ctx, database.Config{
			URL:      cfg.Database.URL,
			MaxConns: cfg.Database.MaxConns,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer db.Close()

		auditRepo := repository.NewWorkflowAuditRepository(db)
		if err := auditRepo.EnsureSchema(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to prepare audit schema")
		}
		audit = auditRepo
		log.Info().Msg("Database connection established, audit log enabled")
	} else {
		log.Warn().Msg("DATABASE_URL not set, audit log disabled")
	}

	// Workflow events are optional
	var publisher client.Publisher
	if cfg.NATS.URL != "" {
		nc, err := natsclient.Connect(natsclient.Config{URL: cfg.NATS.URL, Name: cfg.Service.Name})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to NATS")
		}
		defer nc.Close()
		publisher = nc
		log.Info().Str("url", cfg.NATS.URL).Msg("NATS connection established")
	} else {
		log.Warn().Msg("NATS_URL not set, workflow events disabled")
	}
	events := client.NewEventPublisher(publisher, cfg.NATS.SubjectPrefix, log.Logger)

	// Company profile seed
	profile := repository.DefaultCompanyProfile()
	if cfg.Company.ProfileFile != "" {
		profile, err = repository.LoadCompanyProfile(cfg.Company.ProfileFile)
		if err != nil {
			log.Fatal().Err(err).Str("file", cfg.Company.ProfileFile).Msg("Failed to load company profile")
		}
	}

	// Initialize collaborators
	if cfg.OpenAI.APIKey == "" {
		log.Warn().Msg("OPENAI_API_KEY not set, text generation will fail")
	}
	generator := client.NewOpenAIClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Model)
	extractor := client.NewExtractionClient(cfg.Extraction.URL, cfg.Extraction.APIKey, cfg.Extraction.Timeout)
	webhook := client.NewWebhookClient(cfg.Webhook.Timeout)

	// Initialize services
	sessions := repository.NewSessionRepository(profile)
	workflowService := service.NewWorkflowService(sessions, generator, extractor, audit, events, log)
	reportService := service.NewReportService(cfg.Report.FontPath, log)
	exportService := service.NewExportService(workflowService, reportService, webhook, events, log)

	// Setup HTTP routes
	httpHandler := handler.NewHTTPHandler(workflowService, exportService, reportService, log)
	mux := http.NewServeMux()
	httpHandler.Register(mux)

	// Apply middleware
	var h http.Handler = mux
	h = middleware.RequestID(h)
	h = middleware.Logger(&log.Logger)(h)
	h = middleware.Recovery(&log.Logger)(h)
	h = middleware.CORS([]string{"*"})(h)
	h = middleware.Timeout(cfg.Server.RequestTimeout)(h)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      h,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	// Start gRPC server
	grpcHandler := handler.NewGRPCHandler(reportService, log.Logger)

	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(handler.UnaryServerInterceptor(log.Logger)))
	handler.RegisterReportServiceServer(grpcServer, grpcHandler)

	healthServer := health.NewServer()
	healthServer.SetServingStatus(handler.ReportServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer) // Enable reflection for debugging

	grpcListener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRPCPort))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create gRPC listener")
	}

	go func() {
		log.Info().Int("port", cfg.Server.GRPCPort).Msg("Starting gRPC server")
		if err := grpcServer.Serve(grpcListener); err != nil {
			log.Error().Err(err).Msg("gRPC server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	healthServer.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	// Stop gRPC server gracefully
	grpcServer.GracefulStop()

	log.Info().Msg("Server stopped")
}

// configPath resolves the config file from --config, falling back to
// PROCUREMENT_CONFIG.
func configPath(args []string) (string, error) {
	fs := pflag.NewFlagSet("server", pflag.ContinueOnError)
	fs.String("config", "", "path to a YAML config file")
	if err := fs.Parse(args); err != nil {
		return "", err
	}

	v := viper.New()
	if err := v.BindPFlag("config", fs.Lookup("config")); err != nil {
		return "", err
	}
	if err := v.BindEnv("config", config.ConfigFileEnv); err != nil {
		return "", err
	}
	return v.GetString("config"), nil
}
