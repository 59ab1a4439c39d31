// Package main 是分块阶段工作者的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"vector-pipeline-go/internal/config"
	"vector-pipeline-go/internal/handler"
	"vector-pipeline-go/internal/middleware"
	"vector-pipeline-go/internal/pipeline"
	"vector-pipeline-go/internal/repository"
	"vector-pipeline-go/internal/service"
	"vector-pipeline-go/internal/worker"
	"vector-pipeline-go/pkg/database"
	"vector-pipeline-go/pkg/kafka"
	"vector-pipeline-go/pkg/log"
	"vector-pipeline-go/pkg/queue"
	"vector-pipeline-go/pkg/storage"
	"vector-pipeline-go/pkg/tasks"
	"vector-pipeline-go/pkg/tika"
)

func main() {
	// 1. 初始化配置和日志
	config.Init("./configs/config.yaml")
	cfg := config.Conf
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()
	log.Info("[Chunker] 日志记录器初始化成功")

	// 2. 初始化依赖句柄
	db, err := database.OpenMySQL(cfg.Database.MySQL.DSN)
	if err != nil {
		log.Fatalf("MySQL 初始化失败: %v", err)
	}
	rdb, err := database.OpenRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	if err != nil {
		log.Fatalf("Redis 初始化失败: %v", err)
	}
	minioClient, err := storage.NewClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("MinIO 初始化失败: %v", err)
	}

	// 3. 组装分块流水线
	docRepo := repository.NewDocumentRepository(db)
	chunkRepo := repository.NewChunkRepository(db)
	store := queue.NewRedisStore(rdb)
	producer := queue.NewProducer(store)
	tikaClient := tika.NewClient(cfg.Tika)
	chunker := pipeline.NewChunker(
		minioClient,
		tikaClient,
		docRepo,
		chunkRepo,
		producer,
		cfg.Chunking.ChunkSize,
		cfg.Chunking.ChunkOverlap,
	)
	deadLetter := kafka.NewDeadLetterProducer(cfg.Kafka)
	defer deadLetter.Close()

	// 4. 启动后台工作者
	w, err := worker.New(worker.Config{
		Name:           "chunker",
		Queue:          tasks.QueuePendingDocument,
		Store:          store,
		Handler:        chunker.Process,
		DeadLetter:     deadLetter,
		DequeueTimeout: time.Duration(cfg.Worker.DequeueTimeoutSeconds) * time.Second,
		StopTimeout:    time.Duration(cfg.Worker.StopTimeoutSeconds) * time.Second,
		ReadyPoll:      time.Duration(cfg.Worker.ReadyPollSeconds) * time.Second,
		RetryDelay:     time.Duration(cfg.Worker.RetryDelaySeconds) * time.Second,
	})
	if err != nil {
		log.Fatalf("创建分块工作者失败: %v", err)
	}
	w.Start()

	// 5. 健康检查端点
	probes := map[string]handler.ReadyProbe{
		"mysql": func(ctx context.Context) bool {
			sqlDB, err := db.DB()
			if err != nil {
				return false
			}
			return sqlDB.PingContext(ctx) == nil
		},
		"redis": func(ctx context.Context) bool {
			return rdb.Ping(ctx).Err() == nil
		},
	}
	statusService := service.NewStatusService(docRepo, chunkRepo, producer)

	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())
	healthHandler := handler.NewHealthHandler(statusService, probes)
	r.GET("/health", healthHandler.Health)
	r.GET("/health/live", healthHandler.Live)
	r.GET("/health/ready", healthHandler.Ready)
	r.GET("/status", healthHandler.Status)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}
	go func() {
		log.Infof("[Chunker] 健康检查服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 6. 等待停机信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("[Chunker] 接收到停机信号，正在关闭...")

	w.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}
	log.Info("[Chunker] 已优雅关闭")
}
