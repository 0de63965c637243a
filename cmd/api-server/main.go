// Package main API Server 入口
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"catalog-admin/internal/apiserver/auth"
	"catalog-admin/internal/apiserver/server"
	"catalog-admin/internal/config"
	"catalog-admin/internal/shared/engine"
	"catalog-admin/internal/shared/eventbus"
	redisbus "catalog-admin/internal/shared/eventbus/redis"
	"catalog-admin/internal/shared/objstore"
	"catalog-admin/internal/shared/registry"
	"catalog-admin/internal/shared/storage/mongostore"
)

func main() {
	// 加载配置（自动加载 .env，根据 APP_ENV 切换数据库和 Redis）
	cfg := config.Load()

	log.Printf("Starting API Server... [env=%s]", cfg.Env)
	log.Printf("Config: %s", cfg.String())

	// 资源注册表（配置错误直接终止启动）
	reg, err := registry.Catalog()
	if err != nil {
		log.Fatalf("Failed to build resource registry: %v", err)
	}

	// 初始化 MongoDB（持久化业务数据）
	store, err := mongostore.NewStore(cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer store.Close()
	log.Println("Connected to MongoDB")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 初始化 Redis 事件总线 + MinIO 清理消费者
	// 二者都是尽力而为的协作方，不可用时降级为无事件模式
	var bus eventbus.Publisher
	if rb, err := redisbus.NewBus(cfg.RedisURL); err != nil {
		log.Printf("[Main] Redis unavailable, file cleanup disabled: %v", err)
	} else {
		defer rb.Close()
		bus = rb
		log.Println("Connected to Redis")

		if oc, err := objstore.NewClient(cfg.MinIO); err != nil {
			log.Printf("[Main] MinIO unavailable, file cleanup disabled: %v", err)
		} else if err := oc.EnsureBucket(ctx); err != nil {
			log.Printf("[Main] MinIO bucket check failed, file cleanup disabled: %v", err)
		} else {
			cleaner := objstore.NewCleaner(rb, oc)
			go func() {
				if err := cleaner.Run(ctx); err != nil && ctx.Err() == nil {
					log.Printf("[Main] Cleaner stopped: %v", err)
				}
			}()
			log.Println("Orphaned file cleaner started")
		}
	}

	eng := engine.New(reg, store, bus)

	authCfg := auth.DefaultConfig()
	authCfg.JWTSecret = cfg.Auth.JWTSecret
	if ttl, err := time.ParseDuration(cfg.Auth.AccessTokenTTL); err == nil && ttl > 0 {
		authCfg.AccessTokenTTL = ttl
	}
	if !authCfg.Enabled() {
		log.Println("[Main] JWT_SECRET not set, write operations are unauthenticated")
	}

	srv := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      server.New(eng, authCfg).Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// 优雅关闭
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	log.Printf("API Server listening on :%s", cfg.APIPort)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}

	fmt.Println("Server stopped")
}
