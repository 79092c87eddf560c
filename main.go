package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"messaging-core/internal/actions"
	"messaging-core/internal/config"
	"messaging-core/internal/directory"
	"messaging-core/internal/logger"
	"messaging-core/internal/notify"
	"messaging-core/internal/observability"
	"messaging-core/internal/participants"
	"messaging-core/internal/rabbitmq"
	"messaging-core/internal/recordapi"
	"messaging-core/internal/session"
	"messaging-core/internal/syncer"
	"messaging-core/internal/telemetry"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, "messaging-core", cfg.OTLPEndpoint, cfg.Environment)
	if err != nil {
		log.Fatal("tracing init failed", zap.Error(err))
	}
	defer shutdownTracing(context.Background())

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, log)
	defer publisher.Close()
	audit := telemetry.NewAuditEmitter(publisher, cfg.AuditRoutingKey, "messaging-core", cfg.Environment, log)

	client := recordapi.NewHTTPClient(cfg.RecordAPIBaseURL, cfg.RecordAPIToken, cfg.HTTPTimeout)
	notifier := notify.LogNotifier{Log: log}

	dir := directory.New(client, cfg.UserMatricule, notifier, log)
	sess := session.New(client, cfg.PageSize, log)
	manager := participants.NewManager(client, dir, audit, notifier, cfg.UserMatricule, log)
	sess.SetRosterHook(manager.SetRoster)

	scheduler := syncer.New(cfg.RefreshInterval, sess.SilentRefresh, log)
	dir.SetDeactivateHook(func(string) {
		scheduler.Stop()
		sess.Close()
	})

	executor := actions.NewExecutor(client, sess, dir, notifier, audit, cfg.UserMatricule, cfg.MaxAttachments, log)

	if err := dir.Refresh(ctx); err != nil {
		log.Warn("initial directory refresh failed", zap.Error(err))
	}

	if cfg.OpenConversation != "" {
		if err := sess.Open(ctx, cfg.OpenConversation); err != nil {
			log.Warn("could not open conversation", zap.String("conversation", cfg.OpenConversation), zap.Error(err))
		} else {
			dir.Select(cfg.OpenConversation)
			scheduler.Start(cfg.OpenConversation)
			log.Info("conversation open",
				zap.String("conversation", cfg.OpenConversation),
				zap.Int("messages", len(sess.Messages())),
			)
		}
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), observability.HTTPMetricsMiddleware())
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/readyz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"conversations": len(dir.List()),
			"open":          sess.Conversation(),
			"scheduler":     int(scheduler.CurrentState()),
			"compose":       int(executor.Compose().Status),
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	server := &http.Server{Addr: cfg.ListenAddr, Handler: router}
	go func() {
		log.Info("http listening", zap.String("addr", cfg.ListenAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	scheduler.Stop()
	sess.Close()
	_ = server.Shutdown(context.Background())
}
