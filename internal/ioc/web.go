package ioc

import (
	"gitee.com/flycash/broadcast-platform/internal/service/coordinator"
	"gitee.com/flycash/broadcast-platform/internal/service/scheduler"
	broadcastweb "gitee.com/flycash/broadcast-platform/internal/web/broadcast"
	inboxweb "gitee.com/flycash/broadcast-platform/internal/web/inbox"
	"gitee.com/flycash/broadcast-platform/internal/web/middleware"
	"github.com/gotomicro/ego/core/econf"
	"github.com/gotomicro/ego/server/egin"
	"github.com/prometheus/client_golang/prometheus"
)

func InitJwtAuth() *middleware.JwtAuth {
	key := econf.GetString("jwt.key")
	if key == "" {
		panic("jwt.key 没有配置")
	}
	return middleware.NewJwtAuth(key)
}

func InitGinServer(
	broadcastHdl *broadcastweb.Handler,
	inboxHdl *inboxweb.Handler,
	jwtAuth *middleware.JwtAuth,
	externalID *middleware.ExternalIDBuilder,
) *egin.Component {
	server := egin.Load("server.http").Build()
	server.Use(middleware.NewMetricsBuilder(prometheus.DefaultRegisterer).Build())
	tenant := jwtAuth.Tenant()
	broadcastHdl.PrivateRoutes(server.Engine, tenant)
	inboxHdl.PrivateRoutes(server.Engine, tenant, externalID.Build())
	return server
}

func InitTasks(
	consumers Consumers,
	sch *scheduler.Scheduler,
	recoverer *coordinator.Recoverer,
	cacheWatcher ProviderCacheWatcher,
	retryWatcher RetryConfigWatcher,
) []Task {
	tasks := make([]Task, 0, len(consumers)+4)
	tasks = append(tasks, consumers...)
	return append(tasks, sch, recoverer, cacheWatcher, retryWatcher)
}
