package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ashwinyue/persona-chat/internal/config"
	"github.com/ashwinyue/persona-chat/internal/database"
	"github.com/ashwinyue/persona-chat/internal/handler"
	"github.com/ashwinyue/persona-chat/internal/logger"
	"github.com/ashwinyue/persona-chat/internal/repository"
	"github.com/ashwinyue/persona-chat/internal/router"
	"github.com/ashwinyue/persona-chat/internal/service"
)

const usage = `usage:
  persona-chat                               start the HTTP server
  persona-chat create-admin <user> <password> create an admin account`

func main() {
	// .env 可选
	_ = godotenv.Load()

	// 加载配置
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./configs/config.yaml"
	}
	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		configPath = ""
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zl, err := logger.Init(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	// 初始化数据库
	db, err := database.New(cfg)
	if err != nil {
		zl.Fatal("failed to init database", zap.Error(err))
	}
	defer db.Close()
	repos := repository.NewRepositories(db.DB)

	args := os.Args[1:]
	if len(args) > 0 {
		if err := runCommand(cfg, repos, zl, args); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	// 初始化 Redis，未配置 host 时不缓存会话历史
	var redisClient *redis.Client
	if cfg.Redis.Host != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.GetAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			zl.Warn("redis unavailable, history cache falls back to database", zap.Error(err))
		}
		cancel()
	}

	// 初始化各层
	services, err := service.NewServices(repos, cfg, redisClient, zl, service.Options{})
	if err != nil {
		zl.Fatal("failed to init services", zap.Error(err))
	}
	handlers := handler.NewHandlers(services, db)

	// 设置 Gin 模式
	gin.SetMode(cfg.Server.Mode)
	r := router.SetupRouter(handlers, services, zl)

	// 创建 HTTP 服务器
	srv := &http.Server{
		Addr:         cfg.Server.GetAddr(),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// 启动服务器
	go func() {
		zl.Info("server starting", zap.String("addr", srv.Addr), zap.String("database", cfg.Database.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("server error", zap.Error(err))
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zl.Info("shutting down server")

	// 优雅关闭
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zl.Error("server forced to shutdown", zap.Error(err))
		return
	}

	zl.Info("server exited")
}

// runCommand 执行命令行子命令
func runCommand(cfg *config.Config, repos *repository.Repositories, zl *zap.Logger, args []string) error {
	switch args[0] {
	case "create-admin":
		if len(args) != 3 {
			return errors.New(usage)
		}
		services, err := service.NewServices(repos, cfg, nil, zl, service.Options{})
		if err != nil {
			return err
		}
		admin, err := services.Auth.CreateAdmin(context.Background(), args[1], args[2])
		if err != nil {
			return fmt.Errorf("failed to create admin: %w", err)
		}
		zl.Info("admin created", zap.String("user_id", admin.ID), zap.String("username", admin.Username))
		return nil
	case "help", "-h", "--help":
		fmt.Println(usage)
		return nil
	}
	return fmt.Errorf("unknown command %q\n%s", args[0], usage)
}
