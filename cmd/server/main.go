package main

import (
	"errors"
	"flag"
	"log"

	"k8s.io/klog/v2"

	"github.com/medcrew/backend/config"
	"github.com/medcrew/backend/internal/eventbus"
	"github.com/medcrew/backend/internal/handler"
	"github.com/medcrew/backend/internal/pkg/adkagents"
	"github.com/medcrew/backend/internal/pkg/adkagents/tools"
	"github.com/medcrew/backend/internal/pkg/pipeline"
	"github.com/medcrew/backend/internal/pkg/stages"
	"github.com/medcrew/backend/internal/router"
	"github.com/medcrew/backend/internal/service"
	"github.com/medcrew/backend/internal/subscriber"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")

	// 初始化 klog
	klog.InitFlags(nil)
	flag.Parse()
	defer klog.Flush()

	klog.V(6).Info("服务启动中...")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 缺少凭据时在提供服务之前退出
	if err := cfg.Validate(); err != nil {
		var cfgErr *config.ConfigurationError
		if errors.As(err, &cfgErr) {
			log.Fatalf("Missing credential: %v", cfgErr)
		}
		log.Fatalf("Invalid config: %v", err)
	}

	adkagents.RegisterGlobalCallbacks(adkagents.NewEinoCallbacks(cfg.Log.EinoCallbacks))

	chatModel, err := adkagents.NewLLMChatModel(cfg)
	if err != nil {
		log.Fatalf("Failed to create chat model: %v", err)
	}

	// 初始化工具
	client := tools.NewClient(cfg.Scrape.Timeout)
	binder := adkagents.NewToolBinder().
		Register(pipeline.CapabilityWebSearch, tools.NewWebSearchTool(client, cfg.Search.APIURL, cfg.Search.APIKey, cfg.Search.MaxResults)).
		Register(pipeline.CapabilityFetchPage, tools.NewFetchPageTool(client, cfg.Scrape.MaxBytes, cfg.Scrape.MaxChars))

	executor := adkagents.NewExecutor(adkagents.NewRateLimitedChatModel(chatModel), binder, cfg.Pipeline.MaxIterations)

	// 初始化事件总线
	pipelineBus := eventbus.NewPipelineEventBus()
	pipelineSubscriber := subscriber.NewPipelineEventSubscriber()
	pipelineSubscriber.Register(pipelineBus)

	stageSpecs, err := stages.Load(cfg.Pipeline.StageDir)
	if err != nil {
		log.Fatalf("Failed to load stages: %v", err)
	}

	// 初始化 Service
	consultationService := service.NewConsultationService(cfg, pipeline.NewRunner(executor, pipelineBus), stageSpecs)

	// 初始化 Handler
	consultationHandler := handler.NewConsultationHandler(consultationService, pipelineSubscriber)

	// 设置路由
	r := router.Setup(cfg, consultationHandler)

	log.Printf("Server starting on port %s (model=%s, stages=%d)...", cfg.Server.Port, cfg.LLM.Model, len(stageSpecs))
	if err := r.Run(":" + cfg.Server.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
