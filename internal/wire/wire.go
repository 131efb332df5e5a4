package wire

import (
	"Atrium/internal/api"
	"Atrium/internal/api/config"
	"Atrium/internal/api/handler"
	"Atrium/internal/job"
	"Atrium/internal/pkg/cron"
	"Atrium/internal/pkg/kafka"
	pkgmongo "Atrium/internal/pkg/mongo"
	"Atrium/internal/realtime"
	"Atrium/internal/repository"
	"Atrium/internal/service"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

// ApplicationContainer 封装了应用运行所需的所有顶级组件
type ApplicationContainer struct {
	Router   *gin.Engine
	DB       *gorm.DB
	Producer *kafka.EventProducer
	CronMgr  *cron.Manager
	Typing   *realtime.TypingBus
}

func BuildApplication(db *gorm.DB, mongoDB *mongo.Database, cfg *config.Config) (*ApplicationContainer, error) {
	groupRepo := repository.NewGroupRepo(db)
	counterRepo := repository.NewCounterRepo()
	presenceRepo := repository.NewPresenceRepo()
	msgRepo := pkgmongo.NewMessageRepo(mongoDB)

	producer, err := kafka.NewEventProducer(cfg.Kafka)
	if err != nil {
		return nil, err
	}

	hub := realtime.NewHub()
	presence := realtime.NewRegistry(presenceRepo)
	typing := realtime.NewTypingBus(hub, time.Duration(cfg.IM.TypingLeaseSeconds)*time.Second)
	calls := realtime.NewCallManager(hub, presence, producer, time.Duration(cfg.IM.RingTimeoutSeconds)*time.Second)

	chatService := service.NewChatService(msgRepo, groupRepo, counterRepo, hub, presence, producer)
	groupService := service.NewGroupService(groupRepo, hub)

	handlers := &api.HandlersGroup{
		WsHandler:       handler.NewWsHandler(chatService, hub, presence, typing, calls),
		ChatHandler:     handler.NewChatHandler(chatService),
		GroupHandler:    handler.NewGroupHandler(groupService),
		MediaHandler:    handler.NewMediaHandler(),
		PresenceHandler: handler.NewPresenceHandler(presence, calls),
	}

	router := api.SetupRouter(handlers)

	cronMgr := cron.NewCronManager(job.NewSessionSweepJob(calls, presence))

	return &ApplicationContainer{
		Router:   router,
		DB:       db,
		Producer: producer,
		CronMgr:  cronMgr,
		Typing:   typing,
	}, nil
}
