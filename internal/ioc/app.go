package ioc

import (
	"context"

	"github.com/gotomicro/ego/server/egin"
)

// Task 后台任务，Start 不阻塞
type Task interface {
	Start(ctx context.Context)
}

type App struct {
	Server *egin.Component
	Tasks  []Task
}

func (a *App) StartTasks(ctx context.Context) {
	for _, t := range a.Tasks {
		t.Start(ctx)
	}
}

// TaskFunc 把阻塞的函数包装成 Task
type TaskFunc func(ctx context.Context)

func (f TaskFunc) Start(ctx context.Context) {
	go f(ctx)
}
