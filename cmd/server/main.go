package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	gosmtp "github.com/emersion/go-smtp"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	jwtpkg "communitymsg/backend/internal/auth/jwt"
	"communitymsg/backend/internal/config"
	"communitymsg/backend/internal/domain"
	"communitymsg/backend/internal/health"
	"communitymsg/backend/internal/logger"
	"communitymsg/backend/internal/monitoring"
	"communitymsg/backend/internal/pool"
	"communitymsg/backend/internal/service"
	"communitymsg/backend/internal/smtp"
	"communitymsg/backend/internal/storage"
	"communitymsg/backend/internal/storage/memory"
	"communitymsg/backend/internal/storage/postgres"
	redisstore "communitymsg/backend/internal/storage/redis"
	"communitymsg/backend/internal/template"
	httptransport "communitymsg/backend/internal/transport/http"
)

// main 启动同时包含 HTTP API 与 SMTP 联系网关的站内信服务。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 设置 Gin 模式（基于开发环境标志）
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// 初始化日志系统
	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		File:        cfg.Log.File,
		MaxSize:     100,
		MaxBackups:  3,
		MaxAge:      28,
		Compress:    true,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	log.Info("starting communitymsg server",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
	)

	// 初始化存储层
	var store storage.Store
	var pgClient *postgres.Client
	switch cfg.Database.Type {
	case "postgres":
		store, err = postgres.NewStore(&cfg.Database)
		if err != nil {
			panic(fmt.Sprintf("failed to initialize postgres storage: %v", err))
		}
		// 独立连接池用于就绪探针,避免探活占用业务连接
		pgClient, err = postgres.NewClient(&cfg.Database, log)
		if err != nil {
			panic(fmt.Sprintf("failed to initialize postgres health pool: %v", err))
		}
		log.Info("using postgres storage")
	case "mysql":
		store, err = postgres.NewMySQLStore(&cfg.Database)
		if err != nil {
			panic(fmt.Sprintf("failed to initialize mysql storage: %v", err))
		}
		log.Info("using mysql storage")
	default:
		store = memory.NewStore()
		log.Info("using memory storage (development mode)")
	}

	// 初始化监控与健康检查
	metrics := monitoring.NewMetrics()
	healthChecker := health.NewChecker(store, log)
	if pgClient != nil {
		healthChecker.AddPinger("postgres", pgClient)
	}

	// 加载消息模板
	templates := template.DefaultTemplates()
	if cfg.Messaging.TemplateFile != "" {
		templates, err = template.LoadFile(cfg.Messaging.TemplateFile)
		if err != nil {
			panic(fmt.Sprintf("failed to load templates: %v", err))
		}
		log.Info("loaded message templates", zap.String("file", cfg.Messaging.TemplateFile), zap.Int("count", len(templates)))
	}
	engine, err := template.NewEngine(templates, log)
	if err != nil {
		panic(fmt.Sprintf("failed to build template registry: %v", err))
	}

	// 初始化服务层
	resolver := service.NewDeliveryResolver(store, cfg.Messaging, log)
	messageService := service.NewMessageService(store, resolver, engine, cfg.Messaging, log)

	// 通知分发协程池
	workers := pool.NewWorkerPool(4, 256, log)
	messageService.SetWorkerPool(workers)
	messageService.SetMetrics(metrics)

	// Redis: 未读缓存与消息事件发布（可选）
	var redisClient *redisstore.Client
	if cfg.Redis.Enabled {
		redisClient, err = redisstore.New(&cfg.Redis, log)
		if err != nil {
			panic(fmt.Sprintf("failed to connect redis: %v", err))
		}
		messageService.SetUnreadCache(redisClient)
		messageService.SetNotifier(redisClient)
		healthChecker.AddPinger("redis", redisClient)
		log.Info("redis enabled", zap.String("address", cfg.Redis.Address))
	}

	jwtManager := jwtpkg.NewManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Expiry)
	log.Info("JWT configuration",
		zap.String("issuer", cfg.JWT.Issuer),
		zap.Duration("expiry", cfg.JWT.Expiry),
	)

	// 创建默认管理员用户（仅用于开发测试）
	if cfg.Log.Development {
		createDefaultAdmin(store, log)
	}

	// 创建 HTTP 服务器
	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:         cfg,
		MessageService: messageService,
		TemplateEngine: engine,
		JWTManager:     jwtManager,
		Metrics:        metrics,
		HealthChecker:  healthChecker,
		Logger:         log,
	})

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// 创建 SMTP 联系网关（可选,绑定地址留空则不启动）
	var smtpServer *gosmtp.Server
	if cfg.Contact.SMTPBindAddr != "" {
		smtpBackend := smtp.NewBackend(messageService, cfg.Contact, metrics, log)
		smtpServer = gosmtp.NewServer(smtpBackend)
		smtpServer.Addr = cfg.Contact.SMTPBindAddr
		smtpServer.Domain = cfg.Contact.SMTPDomain
		smtpServer.ReadTimeout = 10 * time.Second
		smtpServer.WriteTimeout = 10 * time.Second
		smtpServer.MaxMessageBytes = 1 * 1024 * 1024 // 1MB
		smtpServer.MaxRecipients = 3
	}

	// 信号处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	workers.Start(ctx)

	group, groupCtx := errgroup.WithContext(ctx)

	// HTTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// SMTP 服务器 goroutine
	if smtpServer != nil {
		group.Go(func() error {
			log.Info("starting SMTP contact gateway",
				zap.String("address", cfg.Contact.SMTPBindAddr),
				zap.String("domain", cfg.Contact.SMTPDomain),
			)
			if err := smtpServer.ListenAndServe(); err != nil {
				log.Error("SMTP server error", zap.Error(err))
				return err
			}
			return nil
		})
	}

	// 周期性存储健康巡检 goroutine
	group.Go(func() error {
		healthChecker.Watch(30*time.Second, groupCtx.Done())
		return nil
	})

	// 优雅关闭 goroutine
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}

		if smtpServer != nil {
			if err := smtpServer.Close(); err != nil {
				log.Warn("SMTP server close warning", zap.Error(err))
			}
		}

		// 排空通知队列
		workers.Stop()

		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				log.Warn("redis close warning", zap.Error(err))
			}
		}
		if pgClient != nil {
			pgClient.Close()
		}
		if err := store.Close(); err != nil {
			log.Warn("storage close warning", zap.Error(err))
		}

		log.Info("servers stopped")
		return nil
	})

	// 等待所有 goroutine 完成
	if err := group.Wait(); err != nil && err != context.Canceled {
		log.Fatal("server error", zap.Error(err))
	}

	log.Info("server exited cleanly")
}

// createDefaultAdmin 写入一个开发用管理员账户,方便本地调试。
func createDefaultAdmin(store storage.Store, log *zap.Logger) {
	admin := &domain.User{
		ID:        "dev-admin",
		Email:     "admin@example.com",
		Username:  "admin",
		FirstName: "Dev",
		LastName:  "Admin",
		Role:      domain.RoleAdmin,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}
	if err := store.SaveUser(admin); err != nil {
		log.Warn("failed to create default admin", zap.Error(err))
		return
	}
	log.Info("default admin created (development only)", zap.String("id", admin.ID))
}
