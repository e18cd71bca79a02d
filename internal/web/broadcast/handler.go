package broadcast

import (
	"fmt"

	"gitee.com/flycash/broadcast-platform/internal/domain"
	"gitee.com/flycash/broadcast-platform/internal/errs"
	"gitee.com/flycash/broadcast-platform/internal/service/broadcast"
	"gitee.com/flycash/broadcast-platform/internal/web"
	"gitee.com/flycash/broadcast-platform/internal/web/middleware"
	"github.com/ecodeclub/ekit/slice"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc broadcast.Service
}

func NewHandler(svc broadcast.Service) *Handler {
	return &Handler{svc: svc}
}

// PrivateRoutes 需要租户令牌，mdls 里应当包含租户中间件
func (h *Handler) PrivateRoutes(server *gin.Engine, mdls ...gin.HandlerFunc) {
	g := server.Group("", mdls...)
	g.POST("/broadcasts", h.Submit)
	g.GET("/broadcasts", h.List)
	g.GET("/broadcasts/:id", h.Get)
	g.PATCH("/broadcasts/:id", h.Edit)
	g.DELETE("/broadcasts/:id", h.Cancel)
	g.GET("/broadcasts/:id/notifications", h.ListNotifications)
	g.GET("/notifications/:id/deliveries", h.ListDeliveries)
}

func (h *Handler) Submit(ctx *gin.Context) {
	var req SubmitReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		web.Error(ctx, fmt.Errorf("%w: %w", errs.ErrInvalidParameter, err))
		return
	}
	b, err := h.svc.Submit(ctx, req.toDomain(middleware.OrgID(ctx)))
	if err != nil {
		web.Error(ctx, err)
		return
	}
	web.OK(ctx, newBroadcast(b))
}

func (h *Handler) Get(ctx *gin.Context) {
	id, err := web.PathID(ctx)
	if err != nil {
		web.Error(ctx, err)
		return
	}
	b, err := h.svc.Get(ctx, middleware.OrgID(ctx), id)
	if err != nil {
		web.Error(ctx, err)
		return
	}
	web.OK(ctx, newBroadcast(b))
}

func (h *Handler) List(ctx *gin.Context) {
	offset, limit, err := web.Page(ctx)
	if err != nil {
		web.Error(ctx, err)
		return
	}
	status := domain.BroadcastStatus(ctx.Query("status"))
	bs, err := h.svc.List(ctx, middleware.OrgID(ctx), status, offset, limit)
	if err != nil {
		web.Error(ctx, err)
		return
	}
	web.OK(ctx, slice.Map(bs, func(_ int, src domain.Broadcast) Broadcast {
		return newBroadcast(src)
	}))
}

func (h *Handler) Edit(ctx *gin.Context) {
	id, err := web.PathID(ctx)
	if err != nil {
		web.Error(ctx, err)
		return
	}
	var req EditReq
	if err = ctx.ShouldBindJSON(&req); err != nil {
		web.Error(ctx, fmt.Errorf("%w: %w", errs.ErrInvalidParameter, err))
		return
	}
	orgID := middleware.OrgID(ctx)
	if err = h.svc.Edit(ctx, orgID, id, req.toDomain()); err != nil {
		web.Error(ctx, err)
		return
	}
	b, err := h.svc.Get(ctx, orgID, id)
	if err != nil {
		web.Error(ctx, err)
		return
	}
	web.OK(ctx, newBroadcast(b))
}

func (h *Handler) Cancel(ctx *gin.Context) {
	id, err := web.PathID(ctx)
	if err != nil {
		web.Error(ctx, err)
		return
	}
	if err = h.svc.Cancel(ctx, middleware.OrgID(ctx), id); err != nil {
		web.Error(ctx, err)
		return
	}
	web.OK(ctx, nil)
}

func (h *Handler) ListNotifications(ctx *gin.Context) {
	id, err := web.PathID(ctx)
	if err != nil {
		web.Error(ctx, err)
		return
	}
	offset, limit, err := web.Page(ctx)
	if err != nil {
		web.Error(ctx, err)
		return
	}
	ns, err := h.svc.ListNotifications(ctx, middleware.OrgID(ctx), id, offset, limit)
	if err != nil {
		web.Error(ctx, err)
		return
	}
	web.OK(ctx, slice.Map(ns, func(_ int, src domain.Notification) Notification {
		return newNotification(src)
	}))
}

func (h *Handler) ListDeliveries(ctx *gin.Context) {
	id, err := web.PathID(ctx)
	if err != nil {
		web.Error(ctx, err)
		return
	}
	ds, err := h.svc.ListDeliveries(ctx, middleware.OrgID(ctx), id)
	if err != nil {
		web.Error(ctx, err)
		return
	}
	web.OK(ctx, slice.Map(ds, func(_ int, src domain.Delivery) Delivery {
		return newDelivery(src)
	}))
}
