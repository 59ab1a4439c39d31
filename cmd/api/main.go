// Package main 是摄取/搜索 API 服务的入口点。
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
	"vector-pipeline-go/internal/model"
	"vector-pipeline-go/internal/repository"
	"vector-pipeline-go/internal/service"
	"vector-pipeline-go/pkg/database"
	"vector-pipeline-go/pkg/embedding"
	"vector-pipeline-go/pkg/es"
	"vector-pipeline-go/pkg/log"
	"vector-pipeline-go/pkg/queue"
	"vector-pipeline-go/pkg/storage"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库、Redis 和对象存储
	db, err := database.OpenMySQL(cfg.Database.MySQL.DSN)
	if err != nil {
		log.Fatalf("MySQL 初始化失败: %v", err)
	}
	if err := db.AutoMigrate(&model.Document{}, &model.DocumentChunk{}); err != nil {
		log.Fatalf("数据库迁移失败: %v", err)
	}
	rdb, err := database.OpenRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	if err != nil {
		log.Fatalf("Redis 初始化失败: %v", err)
	}
	minioClient, err := storage.NewClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("MinIO 初始化失败: %v", err)
	}
	esClient, err := es.NewClient(cfg.Elasticsearch, cfg.Embedding.Dimensions)
	if err != nil {
		log.Fatalf("Elasticsearch 初始化失败: %v", err)
	}

	// 4. 初始化 Repository 和队列
	docRepo := repository.NewDocumentRepository(db)
	chunkRepo := repository.NewChunkRepository(db)
	producer := queue.NewProducer(queue.NewRedisStore(rdb))

	// 5. 初始化 Service (依赖注入)
	embeddingClient := embedding.NewClient(cfg.Embedding)
	documentService := service.NewDocumentService(docRepo, minioClient, producer)
	searchService := service.NewSearchService(embeddingClient, esClient, docRepo, cfg.Elasticsearch.IndexName)
	statusService := service.NewStatusService(docRepo, chunkRepo, producer)

	// 6. 就绪探针：数据库和 Redis 可达才算就绪
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

	// 7. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 8. 注册路由
	healthHandler := handler.NewHealthHandler(statusService, probes)
	r.GET("/health", healthHandler.Health)
	r.GET("/health/live", healthHandler.Live)
	r.GET("/health/ready", healthHandler.Ready)
	r.GET("/status", healthHandler.Status)

	documentHandler := handler.NewDocumentHandler(documentService, cfg.Upload.MaxFileSize)
	apiV1 := r.Group("/api/v1")
	{
		documents := apiV1.Group("/documents")
		{
			documents.POST("/upload", documentHandler.Upload)
			documents.GET("/:id", documentHandler.GetDocument)
		}
		apiV1.POST("/search", handler.NewSearchHandler(searchService).Search)
	}

	// 9. 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("API 服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}

	log.Info("服务已优雅关闭")
}
