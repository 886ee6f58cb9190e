package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"LiveGateway/global"
	"LiveGateway/logger"
	mid "LiveGateway/middleware"
	"LiveGateway/service/live"
	"LiveGateway/service/settings"

	"github.com/gin-gonic/gin"
)

func main() {
	global.ConfigAll()
	defer logger.Sync()

	cfg := global.App()

	// 1) 设置存储：配了 Mongo 用平台设置集合，否则退化为内存实现
	var store settings.Store
	if cfg.Mongo.URI != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		ms, err := settings.NewMongoStore(ctx, settings.Config{
			URI:        cfg.Mongo.URI,
			Database:   cfg.Mongo.Database,
			Collection: cfg.Mongo.Collection,
		})
		cancel()
		if err != nil {
			logger.Errorf("[main] mongo settings store unavailable: %v", err)
			// 审核流水线对取不到的设置 fail-closed，这里不致命
			store = settings.NewMemoryStore()
		} else {
			store = ms
		}
	} else {
		logger.Infof("[main] no mongo configured, using in-memory settings")
		store = settings.NewMemoryStore()
	}

	// 2) 网关实例
	s := live.NewServer(live.Conf{
		GatewayID:       cfg.Server.GatewayID,
		ChatHistorySize: cfg.Chat.HistorySize,
		SendQueueSize:   cfg.Chat.SendQueueSize,
		JWTSecret:       global.GetJwtSecret(),
	}, store)

	// 3) HTTP + WebSocket
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/live", s.HandleWS) // e.g. ws://localhost:8080/live
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "gateway": s.GatewayID()})
	})
	mid.GET(r, "/admin/stats", func(c *gin.Context) {
		conns, admins, viewers, chatLen := s.Stats()
		c.JSON(http.StatusOK, gin.H{
			"connectionCount": conns,
			"adminCount":      admins,
			"viewerCount":     viewers,
			"chatBufferSize":  chatLen,
		})
	}, mid.RouteOpt{IsAuth: true})

	srv := &http.Server{Addr: cfg.Server.Addr, Handler: r}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Infof("[HTTP] Listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("[HTTP] server failed: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Infof("[main] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("[main] shutdown: %v", err)
	}
}
