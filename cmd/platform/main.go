package main

import (
	"context"

	platformioc "gitee.com/flycash/broadcast-platform/cmd/platform/ioc"
	"gitee.com/flycash/broadcast-platform/internal/ioc"
	"github.com/gotomicro/ego"
	"github.com/gotomicro/ego/core/elog"
	"github.com/gotomicro/ego/server/egovernor"
)

func main() {
	// ego.New 之后配置才加载完毕
	egoApp := ego.New()

	tp := ioc.InitZipkinTracer()
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			elog.Error("Shutdown zipkinTracer", elog.FieldErr(err))
		}
	}()

	app := platformioc.InitApp()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	app.StartTasks(ctx)

	if err := egoApp.Serve(
		egovernor.Load("server.governor").Build(),
		app.Server,
	).Run(); err != nil {
		elog.Panic("startup", elog.FieldErr(err))
	}
}
