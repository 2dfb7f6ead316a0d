package main

import (
	"context"
	"log"
	"os"
	"time"

	"aimessage/internal/api"
	"aimessage/internal/channel"
	"aimessage/internal/config"
	"aimessage/internal/models"
	"aimessage/internal/redis"
	"aimessage/internal/service/ai"
	"aimessage/internal/service/messaging"
	"aimessage/internal/storage"
	"aimessage/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {
	cfgPath := os.Getenv("AIMESSAGE_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	dbType := os.Getenv("AIMESSAGE_DB")
	if dbType == "" {
		dbType = "sqlite3"
	}
	log.Printf("dbType: %s\n", dbType)
	db, err := storage.Open(dbType, cfg)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	// Create necessary tables: users, messages, reports
	if err := storage.Migrate(db, dbType); err != nil {
		log.Fatalf("migrate database: %v", err)
	}

	rdb, err := redis.NewRedisClient(cfg)
	if err != nil {
		// dedupe and delivery audit degrade to no-ops without redis
		log.Printf("redis unavailable, running without dedupe: %v", err)
		rdb = nil
	} else {
		defer rdb.Close()
	}

	msgService, err := messaging.NewService(db)
	if err != nil {
		log.Fatalf("init messaging service: %v", err)
	}

	botUserID := cfg.Orchestrator.AIBotUserID
	convStore := ai.NewConversationStore(cfg.Orchestrator.MaxHistory)
	registry := ai.NewRegistry()
	executor := ai.NewExecutor()

	reportAgent := ai.NewReportAgent(msgService)
	if err := registry.Register(reportAgent); err != nil {
		log.Fatalf("register report agent: %v", err)
	}
	executor.RegisterAgentTools(reportAgent)

	var generalTools []*ai.ToolSpec
	if searchTool := ai.NewWebSearchTool(); searchTool != nil {
		executor.RegisterTool(searchTool)
		generalTools = append(generalTools, searchTool)
	}

	provider := os.Getenv("AIMESSAGE_PROVIDER")
	if provider == "" {
		provider = "openai"
	}
	chatModel, err := ai.NewChatModel(context.Background(), cfg, provider)
	if err != nil {
		log.Fatalf("init %s chat model: %v", provider, err)
	}

	orchestrator := ai.NewOrchestrator(convStore, registry, executor, chatModel, ai.Options{
		GeneralTools: generalTools,
		MaxToolHops:  cfg.Orchestrator.MaxToolHops,
		ModelTimeout: time.Duration(cfg.Orchestrator.ModelTimeoutSeconds) * time.Second,
	})

	resolver := channel.NewResolver()
	resolver.Register(models.ChannelWebhook, channel.NewTwilioAdapter(cfg.Twilio))
	resolver.Register(models.ChannelWeb, channel.NewWebAdapter())

	guard := worker.NewGuard(rdb)
	manager := worker.NewManager(orchestrator, msgService, resolver, guard, botUserID)
	dispatcher := worker.NewDispatcher(
		cfg.BasicConfig.MinWorkers,
		cfg.BasicConfig.MaxWorkers,
		cfg.BasicConfig.QueueSize,
		manager,
		time.Duration(cfg.BasicConfig.WorkerIdleTimeout)*time.Minute,
	)

	handlers := api.NewHandler(msgService, dispatcher, convStore, guard, botUserID)

	router := gin.Default()
	handlers.RegisterRoutes(router)

	addr := cfg.BasicConfig.ServerAddress
	if addr == "" {
		addr = ":8090"
	}

	if err := router.Run(addr); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
