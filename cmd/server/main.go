package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"contracthub/api"
	"contracthub/internal/config"
	"contracthub/internal/infra"
	"contracthub/internal/logger"
	"contracthub/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	// 0. 统一加载 .env，便于集中管理 APP_* 环境变量
	loadEnvFile()

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}

	// 1. 加载配置
	cfg, err := config.Load(env, os.Getenv("APP_CONFIG_PATH"))
	if err != nil {
		fmt.Printf("加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath); err != nil {
		fmt.Printf("初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.Get()

	log.Info("应用启动中...",
		zap.String("env", env),
		zap.String("mode", cfg.Server.Mode),
	)

	// 3. 初始化数据库
	db, err := infra.InitDatabase(&cfg.Database, log)
	if err != nil {
		log.Fatal("初始化数据库失败", zap.Error(err))
	}

	// 4. 执行数据库迁移（根据配置）
	if cfg.Database.AutoMigrate {
		if err := infra.AutoMigrate(db, log, api.Models()...); err != nil {
			log.Fatal("数据库迁移失败", zap.Error(err))
		}
	} else {
		log.Info("跳过自动迁移（配置已禁用）")
	}

	// 5. 初始化依赖与预置模板
	container, err := api.InitContainer(db, cfg, log)
	if err != nil {
		log.Fatal("初始化应用容器失败", zap.Error(err))
	}
	seedCtx, cancelSeed := context.WithTimeout(context.Background(), 30*time.Second)
	container.SeedTemplates(seedCtx)
	cancelSeed()

	// 连接池与待审批数量指标
	collectorCtx, stopCollector := context.WithCancel(context.Background())
	if sqlDB, err := db.DB(); err == nil {
		go metrics.NewSystemCollector(sqlDB, container.Engine.CountPending, log).Run(collectorCtx)
	}

	// 6. 设置 Gin 模式并创建路由
	gin.SetMode(cfg.Server.Mode)
	router := api.SetupRouter(container)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// 7. 启动服务器
	go func() {
		log.Info("HTTP 服务器启动", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP 服务器启动失败", zap.Error(err))
		}
	}()

	// 启用事件队列时在同一进程内启动投递 Worker
	if container.Worker != nil {
		if err := container.Worker.Start(); err != nil {
			log.Fatal("Worker 服务器启动失败", zap.Error(err))
		}
	}

	// 8. 优雅关闭
	gracefulShutdown(server, container, db, log, stopCollector)
}

// loadEnvFile 依次尝试加载当前目录及上级目录的 .env 文件
func loadEnvFile() {
	if path := resolveEnvPath(); path != "" {
		if err := godotenv.Load(path); err != nil {
			fmt.Printf("加载环境变量文件 %s 失败: %v\n", path, err)
		} else {
			fmt.Printf("已加载环境变量文件: %s\n", path)
		}
	} else {
		fmt.Println("未找到 .env 文件，将仅使用系统环境变量和 config/* 配置")
	}
}

// resolveEnvPath 尝试从当前工作目录、可执行文件目录向上查找根目录 .env
func resolveEnvPath() string {
	candidates := collectEnvCandidates()
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func collectEnvCandidates() []string {
	seen := make(map[string]struct{})
	var candidates []string
	add := func(path string) {
		if path == "" {
			return
		}
		if _, ok := seen[path]; ok {
			return
		}
		seen[path] = struct{}{}
		candidates = append(candidates, path)
	}

	traverse := func(start string) {
		dir := filepath.Clean(start)
		for i := 0; i < 8; i++ {
			if dir == "" || dir == string(filepath.Separator) || dir == "." {
				break
			}
			add(filepath.Join(dir, ".env"))
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	if wd, err := os.Getwd(); err == nil {
		traverse(wd)
	}
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		traverse(exeDir)
	}

	return candidates
}

// gracefulShutdown 优雅关闭
func gracefulShutdown(server *http.Server, container *api.AppContainer, db *gorm.DB, log *zap.Logger, stopCollector context.CancelFunc) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("正在关闭服务器...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("服务器关闭异常", zap.Error(err))
	}

	stopCollector()
	// 关闭 Worker、队列与 Redis
	container.Close()

	if err := infra.CloseDatabase(db); err != nil {
		log.Error("数据库关闭异常", zap.Error(err))
	}

	log.Info("服务器已安全关闭")
}
