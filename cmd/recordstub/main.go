package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"messaging-core/internal/config"
	"messaging-core/internal/logger"
	"messaging-core/internal/observability"
	"messaging-core/internal/recordstub"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	db, err := recordstub.Connect(cfg.DatabaseDSN, log)
	if err != nil {
		log.Fatal("failed to connect to db", zap.Error(err))
	}
	defer db.Close()

	conversationRepo := recordstub.NewConversationRepo(db)
	messageRepo := recordstub.NewMessageRepo(db)
	userRepo := recordstub.NewUserRepo(db)

	handler := recordstub.NewHandler(conversationRepo, messageRepo, userRepo, log)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), observability.HTTPMetricsMiddleware())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authed := router.Group("/", recordstub.AuthMiddleware(userRepo))
	handler.Register(authed)

	log.Info("record stub listening", zap.String("addr", cfg.ListenAddr))
	if err := router.Run(cfg.ListenAddr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
