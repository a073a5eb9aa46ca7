package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/clearskymed/voicedesk/cmd/mainconfig"
	"github.com/clearskymed/voicedesk/internal/agent"
	"github.com/clearskymed/voicedesk/internal/api/router"
	appconfig "github.com/clearskymed/voicedesk/internal/config"
	"github.com/clearskymed/voicedesk/internal/conversation"
	"github.com/clearskymed/voicedesk/internal/emr/oystehr"
	"github.com/clearskymed/voicedesk/internal/http/handlers"
	"github.com/clearskymed/voicedesk/internal/llm"
	"github.com/clearskymed/voicedesk/internal/messaging"
	"github.com/clearskymed/voicedesk/internal/notify"
	"github.com/clearskymed/voicedesk/internal/observability/metrics"
	"github.com/clearskymed/voicedesk/internal/records"
	"github.com/clearskymed/voicedesk/internal/telephony"
	"github.com/clearskymed/voicedesk/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting voicedesk API server", "env", cfg.Env, "port", cfg.Port)

	ctx := context.Background()
	callMetrics := metrics.NewCallMetrics(prometheus.DefaultRegisterer)

	// Redis: live call state.
	redisOpts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
	if cfg.RedisTLS {
		redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	redisClient := redis.NewClient(redisOpts)
	callStore := conversation.NewCallStore(redisClient, cfg.CallRecordTTL)

	// Postgres: durable call records, optional in development.
	var recStore *records.Store
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		recStore = records.NewStore(pool)
	} else {
		logger.Warn("DATABASE_URL not set, call records will not be persisted")
	}
	var callRecordsHandler *handlers.CallRecordsHandler
	if recStore != nil {
		callRecordsHandler = handlers.NewCallRecordsHandler(recStore, logger)
	}

	// Structured extraction: Bedrock primary, Gemini fallback.
	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}
	bedrockCaller, err := llm.NewBedrockFunctionCaller(bedrockruntime.NewFromConfig(awsCfg), cfg.BedrockModelID)
	if err != nil {
		logger.Error("failed to init Bedrock caller", "error", err)
		os.Exit(1)
	}
	var caller llm.FunctionCaller = bedrockCaller
	if cfg.GeminiAPIKey != "" {
		geminiCaller, err := llm.NewGeminiFunctionCaller(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			logger.Error("failed to init Gemini caller", "error", err)
			os.Exit(1)
		}
		caller = llm.NewFallbackFunctionCaller(bedrockCaller, geminiCaller, logger)
	}

	// EHR directory.
	directory, err := oystehr.New(oystehr.Config{
		BaseURL:   cfg.OystehrBaseURL,
		AuthToken: cfg.OystehrAuthToken,
		ProjectID: cfg.OystehrProjectID,
		Timeout:   15 * time.Second,
	})
	if err != nil {
		logger.Error("failed to init EHR directory", "error", err)
		os.Exit(1)
	}

	// Notifications: SMS confirmations plus staff alert email.
	smsSender := messaging.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber, logger)
	var emailSender notify.EmailSender
	if cfg.StaffAlertEmail != "" && cfg.SESFromEmail != "" {
		emailSender = notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SESFromName,
		}, logger)
	}
	notifier := notify.NewService(smsSender, emailSender, cfg.StaffAlertEmail, logger)

	// Telephony control for warm transfers.
	voiceClient, err := telephony.NewTwilioVoiceClient(telephony.TwilioVoiceClientConfig{
		AccountSID: cfg.TwilioAccountSID,
		AuthToken:  cfg.TwilioAuthToken,
		FromNumber: cfg.TwilioFromNumber,
		Logger:     logger,
	})
	if err != nil {
		logger.Error("failed to init telephony client", "error", err)
		os.Exit(1)
	}

	// Voice agent bridge.
	dialer, err := agent.NewElevenLabsDialer(cfg.ElevenLabsAPIKey, cfg.ElevenLabsAgentID, logger)
	if err != nil {
		logger.Error("failed to init agent dialer", "error", err)
		os.Exit(1)
	}

	classifier := conversation.NewClassifier(caller, callMetrics, logger)
	extractor := conversation.NewExtractor(caller, logger)
	workflows := conversation.NewWorkflows(extractor, directory, notifier, callMetrics, logger)
	handoff := conversation.NewHandoffCoordinator(voiceClient, notifier, cfg.StaffPhoneNumber, callMetrics, logger)

	newSession := func(callSID, callerPhone string) *conversation.Session {
		return conversation.NewSession(conversation.SessionConfig{
			CallSID:     callSID,
			CallerPhone: callerPhone,
			Classifier:  classifier,
			Workflows:   workflows,
			Handoff:     handoff,
			Metrics:     callMetrics,
			Logger:      logger,
		})
	}

	r := router.New(&router.Config{
		Logger:           logger,
		VoiceWebhook:     handlers.NewVoiceWebhookHandler(cfg.TwilioAuthToken, cfg.PublicBaseURL, callStore, callMetrics, logger),
		MediaStream:      handlers.NewMediaStreamHandler(dialer, newSession, callStore, recStore, logger),
		CallRecords:      callRecordsHandler,
		MetricsHandler:   promhttp.Handler(),
		WebhookRateLimit: cfg.WebhookRateLimit,
		WebhookBurst:     cfg.WebhookRateBurst,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
		// Generous read/write timeouts: the media-stream websocket lives for
		// the duration of a phone call.
		ReadTimeout:  0,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
