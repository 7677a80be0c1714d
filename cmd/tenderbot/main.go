// cmd/tenderbot/main.go
package main

import (
	"flag"
	"log"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"

	"tenderbot/internal/audit"
	"tenderbot/internal/config"
	"tenderbot/internal/damia"
	"tenderbot/internal/download"
	"tenderbot/internal/metrics"
	"tenderbot/internal/storage"
	"tenderbot/internal/telegram"
	"tenderbot/internal/tenderguru"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	auditLog, err := audit.New(cfg.Logs.Dir)
	if err != nil {
		log.Fatalf("Failed to init audit logger: %v", err)
	}
	defer auditLog.Close()

	if cfg.Metrics.Addr != "" {
		metrics.Serve(cfg.Metrics.Addr)
		logrus.Infof(color.GreenString("Metrics listener started on %s"), cfg.Metrics.Addr)
	}

	var history *storage.MongoStorage
	if cfg.Mongo.URI != "" {
		history, err = storage.NewMongoStorage(cfg.Mongo.URI, cfg.Mongo.TTL)
		if err != nil {
			log.Fatalf("Failed to connect to MongoDB: %v", err)
		}
		defer history.Close()
		logrus.Info(color.GreenString("Query history enabled"))
	} else {
		logrus.Info("Query history disabled: no mongo URI configured")
	}

	var cache *storage.RedisCache
	if cfg.Redis.Addr != "" {
		cache, err = storage.NewRedisCache(cfg.Redis.Addr, cfg.Redis.TTL)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer cache.Close()
		logrus.Info(color.GreenString("Platform cache enabled"))
	} else {
		logrus.Info("Platform cache disabled: no redis address configured")
	}

	guru := tenderguru.NewClient(cfg.TenderGuru, auditLog)
	damiaClient := damia.NewClient(cfg.Damia, auditLog)
	downloader := download.NewDownloader(cfg.Download)

	bot, err := telegram.NewBot(cfg, guru, damiaClient, downloader, history, cache)
	if err != nil {
		log.Fatalf("Failed to start bot: %v", err)
	}
	bot.Run()
}
