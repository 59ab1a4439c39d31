// Package main 是向量化阶段工作者的入口点。
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
	"vector-pipeline-go/pkg/embedding"
	"vector-pipeline-go/pkg/es"
	"vector-pipeline-go/pkg/kafka"
	"vector-pipeline-go/pkg/log"
	"vector-pipeline-go/pkg/queue"
	"vector-pipeline-go/pkg/tasks"
)

func main() {
	// 1. 初始化配置和日志
	config.Init("./configs/config.yaml")
	cfg := config.Conf
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()
	log.Info("[Embedder] 日志记录器初始化成功")

	// 2. 初始化依赖句柄
	db, err := database.OpenMySQL(cfg.Database.MySQL.DSN)
	if err != nil {
		log.Fatalf("MySQL 初始化失败: %v", err)
	}
	rdb, err := database.OpenRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	if err != nil {
		log.Fatalf("Redis 初始化失败: %v", err)
	}
	esClient, err := es.NewClient(cfg.Elasticsearch, cfg.Embedding.Dimensions)
	if err != nil {
		log.Fatalf("Elasticsearch 初始化失败: %v", err)
	}

	// 3. 组装向量化流水线
	docRepo := repository.NewDocumentRepository(db)
	chunkRepo := repository.NewChunkRepository(db)
	store := queue.NewRedisStore(rdb)
	producer := queue.NewProducer(store)
	embeddingClient := embedding.NewClient(cfg.Embedding)
	indexer := es.NewChunkIndexer(esClient, cfg.Elasticsearch.IndexName)
	embedder := pipeline.NewEmbedder(embeddingClient, chunkRepo, docRepo, indexer, cfg.Embedding.Model)
	deadLetter := kafka.NewDeadLetterProducer(cfg.Kafka)
	defer deadLetter.Close()

	// 4. 启动后台工作者，模型就绪前不开始消费
	w, err := worker.New(worker.Config{
		Name:       "embedder",
		Queue:      tasks.QueuePendingChunk,
		Store:      store,
		Handler:    embedder.Process,
		DeadLetter: deadLetter,
		WaitReady: func(ctx context.Context) bool {
			return embeddingClient.Ready(ctx)
		},
		DequeueTimeout: time.Duration(cfg.Worker.DequeueTimeoutSeconds) * time.Second,
		StopTimeout:    time.Duration(cfg.Worker.StopTimeoutSeconds) * time.Second,
		ReadyPoll:      time.Duration(cfg.Worker.ReadyPollSeconds) * time.Second,
		RetryDelay:     time.Duration(cfg.Worker.RetryDelaySeconds) * time.Second,
	})
	if err != nil {
		log.Fatalf("创建向量化工作者失败: %v", err)
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
		"embedding": func(ctx context.Context) bool {
			return embeddingClient.Ready(ctx)
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
		log.Infof("[Embedder] 健康检查服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 6. 等待停机信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("[Embedder] 接收到停机信号，正在关闭...")

	w.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}
	log.Info("[Embedder] 已优雅关闭")
}
