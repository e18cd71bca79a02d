//go:build wireinject

package ioc

import (
	"gitee.com/flycash/broadcast-platform/internal/ioc"
	"gitee.com/flycash/broadcast-platform/internal/pkg/crypto"
	"gitee.com/flycash/broadcast-platform/internal/repository"
	"gitee.com/flycash/broadcast-platform/internal/repository/dao"
	"gitee.com/flycash/broadcast-platform/internal/service/audience"
	"gitee.com/flycash/broadcast-platform/internal/service/broadcast"
	"gitee.com/flycash/broadcast-platform/internal/service/coordinator"
	"gitee.com/flycash/broadcast-platform/internal/service/inbox"
	"gitee.com/flycash/broadcast-platform/internal/service/recipient"
	"gitee.com/flycash/broadcast-platform/internal/service/router"
	broadcastweb "gitee.com/flycash/broadcast-platform/internal/web/broadcast"
	inboxweb "gitee.com/flycash/broadcast-platform/internal/web/inbox"
	"gitee.com/flycash/broadcast-platform/internal/web/middleware"
	"github.com/google/wire"
)

var (
	BaseSet = wire.NewSet(
		ioc.InitDB,
		ioc.InitRedisClient,
		ioc.InitRedisCmd,
		ioc.InitDistributedLock,
		ioc.InitEtcdClient,
		ioc.InitIDGenerator,
		ioc.InitCrypto,
		ioc.InitGoCache,
	)
	repositorySet = wire.NewSet(
		dao.NewFanInDAO,
		dao.NewOrganizationDAO,
		dao.NewBroadcastDAO,
		dao.NewNotificationDAO,
		dao.NewDeliveryDAO,
		dao.NewRecipientDAO,
		dao.NewPreferenceDAO,
		dao.NewAudienceDAO,
		dao.NewProviderDAO,
		dao.NewScheduledJobDAO,

		repository.NewOrganizationRepository,
		repository.NewBroadcastRepository,
		repository.NewNotificationRepository,
		repository.NewDeliveryRepository,
		repository.NewRecipientRepository,
		repository.NewPreferenceRepository,
		repository.NewAudienceRepository,
		repository.NewScheduledJobRepository,
		repository.NewProviderRepository,

		// 供应商配置缓存
		ioc.InitProviderCache,
		ioc.InitProviderCacheIface,
		ioc.InitProviderCacheWatcher,
	)
	queueSet = wire.NewSet(
		ioc.InitQueue,
		ioc.InitMQProducer,
		ioc.InitBroadcastProducer,
		ioc.InitDeliveryProducer,
		ioc.InitConsumers,
	)
	pipelineSet = wire.NewSet(
		wire.Bind(new(audience.Hasher), new(*crypto.Crypto)),
		audience.NewCompiler,
		audience.NewService,
		recipient.NewResolver,
		router.NewRouter,
		coordinator.NewCoordinator,

		ioc.InitProvider,
		ioc.InitRetryConfig,
		ioc.InitRetryConfigWatcher,
		ioc.InitWorker,
		ioc.InitScheduler,
		ioc.InitRecoverer,
	)
	webSet = wire.NewSet(
		broadcast.NewService,
		inbox.NewService,
		broadcastweb.NewHandler,
		inboxweb.NewHandler,
		middleware.NewExternalIDBuilder,
		ioc.InitJwtAuth,
		ioc.InitGinServer,
	)
)

func InitApp() *ioc.App {
	wire.Build(
		// 基础设施
		BaseSet,
		repositorySet,

		// 任务队列
		queueSet,

		// 扇出和投递
		pipelineSet,

		// HTTP 服务
		webSet,

		ioc.InitTasks,
		wire.Struct(new(ioc.App), "*"),
	)
	return new(ioc.App)
}
