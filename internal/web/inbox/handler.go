package inbox

import (
	"strconv"
	"time"

	"gitee.com/flycash/broadcast-platform/internal/domain"
	"gitee.com/flycash/broadcast-platform/internal/service/inbox"
	"gitee.com/flycash/broadcast-platform/internal/web"
	"gitee.com/flycash/broadcast-platform/internal/web/middleware"
	"github.com/ecodeclub/ekit/slice"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc inbox.Service
}

func NewHandler(svc inbox.Service) *Handler {
	return &Handler{svc: svc}
}

// PrivateRoutes mdls 依次是租户中间件和 external id 校验中间件
func (h *Handler) PrivateRoutes(server *gin.Engine, mdls ...gin.HandlerFunc) {
	g := server.Group("/inbox", mdls...)
	g.GET("/notifications", h.List)
	g.POST("/notifications/:id/:action", h.Mark)
}

func (h *Handler) List(ctx *gin.Context) {
	offset, limit, err := web.Page(ctx)
	if err != nil {
		web.Error(ctx, err)
		return
	}
	archived, _ := strconv.ParseBool(ctx.Query("archived"))
	ns, err := h.svc.List(ctx, middleware.OrgID(ctx), middleware.ExternalID(ctx), archived, offset, limit)
	if err != nil {
		web.Error(ctx, err)
		return
	}
	web.OK(ctx, slice.Map(ns, func(_ int, src domain.Notification) Notification {
		return newNotification(src)
	}))
}

func (h *Handler) Mark(ctx *gin.Context) {
	id, err := web.PathID(ctx)
	if err != nil {
		web.Error(ctx, err)
		return
	}
	action := domain.InboxAction(ctx.Param("action"))
	err = h.svc.Mark(ctx, middleware.OrgID(ctx), middleware.ExternalID(ctx), id, action)
	if err != nil {
		web.Error(ctx, err)
		return
	}
	web.OK(ctx, nil)
}

type Notification struct {
	ID             int64          `json:"id,string"`
	Category       string         `json:"category,omitempty"`
	Topic          string         `json:"topic,omitempty"`
	Title          string         `json:"title"`
	Content        string         `json:"content"`
	ActionLink     string         `json:"actionLink,omitempty"`
	AdditionalInfo map[string]any `json:"additionalInfo,omitempty"`
	SeenAt         *time.Time     `json:"seenAt,omitempty"`
	ReadAt         *time.Time     `json:"readAt,omitempty"`
	ClickedAt      *time.Time     `json:"clickedAt,omitempty"`
	ArchivedAt     *time.Time     `json:"archivedAt,omitempty"`
	Ctime          time.Time      `json:"ctime"`
}

func newNotification(n domain.Notification) Notification {
	return Notification{
		ID:             n.ID,
		Category:       n.Category,
		Topic:          n.Topic,
		Title:          n.Title,
		Content:        n.Content,
		ActionLink:     n.ActionLink,
		AdditionalInfo: n.AdditionalInfo,
		SeenAt:         timePtr(n.SeenAt),
		ReadAt:         timePtr(n.ReadAt),
		ClickedAt:      timePtr(n.ClickedAt),
		ArchivedAt:     timePtr(n.ArchivedAt),
		Ctime:          n.Ctime,
	}
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
