// Package startup 组装 e2e 测试使用的完整链路
package startup

import (
	"context"
	"time"

	broadcastevt "gitee.com/flycash/broadcast-platform/internal/event/broadcast"
	deliveryevt "gitee.com/flycash/broadcast-platform/internal/event/delivery"
	prodioc "gitee.com/flycash/broadcast-platform/internal/ioc"
	"gitee.com/flycash/broadcast-platform/internal/pkg/crypto"
	id "gitee.com/flycash/broadcast-platform/internal/pkg/id_generator"
	"gitee.com/flycash/broadcast-platform/internal/pkg/mqx"
	"gitee.com/flycash/broadcast-platform/internal/pkg/retry"
	"gitee.com/flycash/broadcast-platform/internal/repository"
	"gitee.com/flycash/broadcast-platform/internal/repository/cache/local"
	"gitee.com/flycash/broadcast-platform/internal/repository/dao"
	"gitee.com/flycash/broadcast-platform/internal/service/audience"
	"gitee.com/flycash/broadcast-platform/internal/service/broadcast"
	"gitee.com/flycash/broadcast-platform/internal/service/coordinator"
	"gitee.com/flycash/broadcast-platform/internal/service/delivery"
	"gitee.com/flycash/broadcast-platform/internal/service/inbox"
	"gitee.com/flycash/broadcast-platform/internal/service/provider"
	"gitee.com/flycash/broadcast-platform/internal/service/recipient"
	"gitee.com/flycash/broadcast-platform/internal/service/router"
	"gitee.com/flycash/broadcast-platform/internal/service/scheduler"
	broadcastweb "gitee.com/flycash/broadcast-platform/internal/web/broadcast"
	inboxweb "gitee.com/flycash/broadcast-platform/internal/web/inbox"
	"gitee.com/flycash/broadcast-platform/internal/web/middleware"
	"github.com/ecodeclub/mq-api"
	"github.com/gotomicro/ego/core/econf"
	"github.com/gotomicro/ego/server/egin"
	dlockRedis "github.com/meoying/dlock-go/redis"
	ca "github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	JwtKey     = "broadcast-platform-e2e"
	CryptoKey  = "0123456789abcdef0123456789abcdef"
	CryptoSalt = "e2e"
)

// App 完整的一条链路，供应商由调用方替换成 mock
type App struct {
	Server *egin.Component
	Tasks  []prodioc.Task

	BroadcastSvc broadcast.Service
	InboxSvc     inbox.Service
	Worker       *delivery.Worker

	OrgRepo          repository.OrganizationRepository
	BroadcastRepo    repository.BroadcastRepository
	NotificationRepo repository.NotificationRepository
	DeliveryRepo     repository.DeliveryRepository
	RecipientRepo    repository.RecipientRepository
	PreferenceRepo   repository.PreferenceRepository
	ProviderRepo     repository.ProviderRepository
}

func InitApp(db *gorm.DB, rdb *redis.Client, q mq.MQ, gateway provider.Provider, retryCfg *retry.ConfigHolder) *App {
	c, err := crypto.New(CryptoKey, CryptoSalt)
	if err != nil {
		panic(err)
	}
	gen, err := id.NewGenerator(1)
	if err != nil {
		panic(err)
	}
	fanIn := dao.NewFanInDAO(db)
	app := &App{
		OrgRepo:          repository.NewOrganizationRepository(dao.NewOrganizationDAO(db), c),
		BroadcastRepo:    repository.NewBroadcastRepository(dao.NewBroadcastDAO(db), fanIn),
		NotificationRepo: repository.NewNotificationRepository(dao.NewNotificationDAO(db), fanIn),
		DeliveryRepo:     repository.NewDeliveryRepository(dao.NewDeliveryDAO(db), fanIn),
		RecipientRepo:    repository.NewRecipientRepository(dao.NewRecipientDAO(db), c),
		PreferenceRepo:   repository.NewPreferenceRepository(dao.NewPreferenceDAO(db)),
		ProviderRepo: repository.NewProviderRepository(dao.NewProviderDAO(db),
			local.NewProviderCache(rdb, ca.New(time.Minute, time.Minute)), c),
	}
	audienceRepo := repository.NewAudienceRepository(dao.NewAudienceDAO(db))
	jobRepo := repository.NewScheduledJobRepository(dao.NewScheduledJobDAO(db))

	producer := mqx.NewMQProducer(q)
	broadcastProducer := broadcastevt.NewProducer(producer)
	sch := scheduler.NewScheduler(app.BroadcastRepo, jobRepo, broadcastProducer, dlockRedis.NewClient(rdb),
		scheduler.Config{BatchSize: 10, Interval: 100 * time.Millisecond})

	audienceSvc := audience.NewService(audienceRepo, app.RecipientRepo, audience.NewCompiler(c))
	coord := coordinator.NewCoordinator(app.BroadcastRepo, app.NotificationRepo, app.RecipientRepo, app.DeliveryRepo,
		recipient.NewResolver(audienceSvc, app.RecipientRepo, app.PreferenceRepo),
		router.NewRouter(app.PreferenceRepo), deliveryevt.NewProducer(producer), gen)
	app.Worker = delivery.NewWorker(app.BroadcastRepo, app.NotificationRepo, app.RecipientRepo, app.ProviderRepo,
		app.DeliveryRepo, gateway, coord, retryCfg)

	app.BroadcastSvc = broadcast.NewService(app.BroadcastRepo, app.NotificationRepo, app.DeliveryRepo,
		audienceRepo, app.ProviderRepo, sch, broadcastProducer, gen)
	app.InboxSvc = inbox.NewService(app.RecipientRepo, app.NotificationRepo)

	broadcastConsumer, err := mqx.NewPoolConsumer(q, broadcastevt.Topic, "e2e_coordinator", producer,
		broadcastevt.NewHandler(coord), 2, 3)
	if err != nil {
		panic(err)
	}
	deliveryConsumer, err := mqx.NewPoolConsumer(q, deliveryevt.Topic, "e2e_worker", producer,
		deliveryevt.NewHandler(app.Worker), 8, 3)
	if err != nil {
		panic(err)
	}
	app.Tasks = []prodioc.Task{broadcastConsumer, deliveryConsumer, sch}

	econf.Set("server.e2e", map[string]any{"contextTimeout": "3s"})
	app.Server = egin.Load("server.e2e").Build()
	app.Server.Use(middleware.NewMetricsBuilder(prometheus.NewRegistry()).Build())
	tenant := middleware.NewJwtAuth(JwtKey).Tenant()
	broadcastweb.NewHandler(app.BroadcastSvc).PrivateRoutes(app.Server.Engine, tenant)
	inboxweb.NewHandler(app.InboxSvc).PrivateRoutes(app.Server.Engine, tenant,
		middleware.NewExternalIDBuilder(app.OrgRepo).Build())
	return app
}

func (a *App) StartTasks(ctx context.Context) {
	for _, t := range a.Tasks {
		t.Start(ctx)
	}
}
