package bootstrap

import (
	"context"
	"log"

	"collabsearch-be/internal/config"
	"collabsearch-be/internal/controller"
	"collabsearch-be/internal/handler"
	"collabsearch-be/internal/pkg/logger"
	"collabsearch-be/internal/repository/memory"
	"collabsearch-be/internal/repository/unitofwork"
	"collabsearch-be/internal/service"
	"collabsearch-be/internal/websocket"
	"collabsearch-be/pkg/collab/conflict"
	"collabsearch-be/pkg/fanout"

	pktNats "collabsearch-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	SessionController    controller.ISessionController
	StateController      controller.IStateController
	AnnotationController controller.IAnnotationController
	EventController      controller.IEventController

	// Background services (exposed for main.go to run)
	BroadcastConsumer service.IBroadcastConsumerService
	Sequencer         service.IEventSequencerService

	// WebSocket surface
	SearchWsHandler *handler.SearchWsHandler
	WebSocketHub    *websocket.Hub
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Event bus (in-process broadcast pipeline)
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 2.5 Infrastructure
	// NATS for outbound lifecycle and mention events
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}

	// Redis backs cross-replica fan-out; without it the in-memory bus
	// serves single-replica deployments.
	var bus fanout.Bus
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis, falling back to in-memory fan-out: %v", err)
		bus = fanout.NewMemoryBus()
	} else {
		bus = fanout.NewRedisBus(rdb, cfg.Collab.FanoutChannel)
	}

	// WebSocket hub with its own isolated log
	collabLogger := logger.NewIsolatedLogger(cfg.App.CollabLogFilePath)
	wsHub := websocket.NewHub(bus, collabLogger)
	go wsHub.Run(context.Background())

	// 3. Services
	publisherService := service.NewPublisherService(pubSub, cfg.Collab.BroadcastTopic, sysLogger)
	sequencerService := service.NewEventSequencerService(
		uowFactory,
		publisherService,
		cfg.Collab.DebounceWindow,
		cfg.Collab.HistoryRetention,
		cfg.Collab.RecentHistorySize,
		sysLogger,
	)
	broadcastConsumer := service.NewBroadcastConsumerService(pubSub, cfg.Collab.BroadcastTopic, wsHub, collabLogger)

	var busPublisher service.EventBusPublisher
	if natsPub != nil {
		busPublisher = natsPub
	}

	registryService := service.NewSessionRegistryService(
		uowFactory,
		sequencerService,
		busPublisher,
		cfg.Collab.DefaultMaxParticipants,
		sysLogger,
	)
	stateService := service.NewSessionStateService(
		uowFactory,
		registryService,
		conflict.NewResolver(),
		sequencerService,
		busPublisher,
		sysLogger,
	)
	annotationService := service.NewAnnotationService(
		uowFactory,
		registryService,
		sequencerService,
		busPublisher,
		sysLogger,
	)

	// 4. Gateway
	ackCache := memory.NewAckCache(cfg.Collab.DedupTTL)
	gateway := websocket.NewGateway(
		registryService,
		stateService,
		annotationService,
		sequencerService,
		ackCache,
		cfg.Collab.HistoryRetention,
		collabLogger,
	)

	return &Container{
		SessionController:    controller.NewSessionController(registryService),
		StateController:      controller.NewStateController(stateService),
		AnnotationController: controller.NewAnnotationController(annotationService),
		EventController:      controller.NewEventController(registryService, sequencerService),

		BroadcastConsumer: broadcastConsumer,
		Sequencer:         sequencerService,

		SearchWsHandler: handler.NewSearchWsHandler(wsHub, gateway, collabLogger),
		WebSocketHub:    wsHub,
	}
}
