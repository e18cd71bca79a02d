package coordinator

import (
	"context"
	"errors"
	"fmt"

	"gitee.com/flycash/broadcast-platform/internal/domain"
	"gitee.com/flycash/broadcast-platform/internal/errs"
	deliveryevt "gitee.com/flycash/broadcast-platform/internal/event/delivery"
	id "gitee.com/flycash/broadcast-platform/internal/pkg/id_generator"
	"gitee.com/flycash/broadcast-platform/internal/repository"
	"gitee.com/flycash/broadcast-platform/internal/service/recipient"
	"gitee.com/flycash/broadcast-platform/internal/service/router"
	"github.com/gotomicro/ego/core/elog"
)

// Coordinator 负责广播的扇出和汇总。
// 广播的 pending 初始为 1，代表扇出本身，扇出结束时释放；
// 每个派发了任务的通知再占用 1，通知的全部投递计入之后释放
type Coordinator struct {
	broadcastRepo    repository.BroadcastRepository
	notificationRepo repository.NotificationRepository
	recipientRepo    repository.RecipientRepository
	deliveryRepo     repository.DeliveryRepository
	resolver         *recipient.Resolver
	router           *router.Router
	producer         deliveryevt.Producer
	idGen            id.Generator
	logger           *elog.Component
}

func NewCoordinator(
	broadcastRepo repository.BroadcastRepository,
	notificationRepo repository.NotificationRepository,
	recipientRepo repository.RecipientRepository,
	deliveryRepo repository.DeliveryRepository,
	resolver *recipient.Resolver,
	r *router.Router,
	producer deliveryevt.Producer,
	idGen id.Generator,
) *Coordinator {
	return &Coordinator{
		broadcastRepo:    broadcastRepo,
		notificationRepo: notificationRepo,
		recipientRepo:    recipientRepo,
		deliveryRepo:     deliveryRepo,
		resolver:         resolver,
		router:           r,
		producer:         producer,
		idGen:            idGen,
		logger:           elog.DefaultLogger,
	}
}

// Run 可以重复执行，处理中且没有扇出完毕的广播会继续执行
func (c *Coordinator) Run(ctx context.Context, orgID, broadcastID int64) error {
	b, err := c.broadcastRepo.FindByID(ctx, orgID, broadcastID)
	if errors.Is(err, errs.ErrBroadcastNotFound) {
		c.logger.Warn("广播不存在", elog.Any("orgId", orgID), elog.Any("broadcastId", broadcastID))
		return nil
	}
	if err != nil {
		return err
	}
	if b.Status == domain.BroadcastStatusQueued {
		if _, err = c.broadcastRepo.StartProcessing(ctx, b.ID); err != nil {
			return err
		}
		// 以数据库中的状态为准，可能被别的实例抢先
		if b, err = c.broadcastRepo.FindByID(ctx, orgID, broadcastID); err != nil {
			return err
		}
	}
	if b.Status != domain.BroadcastStatusProcessing || b.Resolved {
		c.logger.Info("广播不需要扇出",
			elog.Any("broadcastId", b.ID),
			elog.String("status", string(b.Status)),
			elog.Any("resolved", b.Resolved))
		return nil
	}

	res, err := c.resolver.Resolve(ctx, b)
	if err != nil {
		return fmt.Errorf("解析接收者失败 %w", err)
	}
	b.Metadata.Errors.Recipients = res.Errors
	if err = c.broadcastRepo.UpdateMetadata(ctx, b.ID, b.Metadata); err != nil {
		return err
	}

	for _, id := range res.RecipientIDs {
		if err = c.dispatch(ctx, b, id); err != nil {
			return fmt.Errorf("派发接收者 %d 失败 %w", id, err)
		}
	}

	done, err := c.broadcastRepo.ReleaseSentinel(ctx, b.ID)
	if err != nil {
		return err
	}
	c.logger.Info("广播扇出完毕",
		elog.Any("broadcastId", b.ID),
		elog.Int("recipients", len(res.RecipientIDs)),
		elog.Any("finished", done))
	return nil
}

func (c *Coordinator) dispatch(ctx context.Context, b domain.Broadcast, recipientID int64) error {
	// 已经存在时这个ID不会被使用
	nid, err := c.idGen.NextID()
	if err != nil {
		return err
	}
	n, _, err := c.notificationRepo.GetOrCreate(ctx, domain.Notification{
		ID:             nid,
		OrgID:          b.OrgID,
		BroadcastID:    b.ID,
		RecipientID:    recipientID,
		Category:       b.Category,
		Topic:          b.Topic,
		Title:          b.Title,
		Content:        b.Content,
		ActionLink:     b.ActionLink,
		AdditionalInfo: b.AdditionalInfo,
		Status:         domain.NotificationStatusQueued,
	})
	if err != nil {
		return err
	}
	if n.Status == domain.NotificationStatusProcessed {
		return nil
	}

	r, err := c.recipientRepo.FindByID(ctx, b.OrgID, recipientID)
	if errors.Is(err, errs.ErrRecipientNotFound) {
		// 解析之后被删除
		_, err = c.notificationRepo.MarkProcessed(ctx, n.ID)
		return err
	}
	if err != nil {
		return err
	}

	plan, err := c.router.Route(ctx, b, n, r)
	if err != nil {
		return err
	}
	for _, d := range plan.NotSent {
		d.Title, d.Content, d.ActionLink = n.Title, b.ChannelText(d.Channel), n.ActionLink
		if _, err = c.deliveryRepo.Save(ctx, d); err != nil {
			return err
		}
	}
	if len(plan.Tasks) == 0 {
		_, err = c.notificationRepo.MarkProcessed(ctx, n.ID)
		return err
	}
	// 重复执行时不会重复计数，但是任务需要重新入队，投递本身是幂等的
	if _, err = c.notificationRepo.Dispatch(ctx, n, len(plan.Tasks)); err != nil {
		return err
	}
	if err = c.producer.Produce(ctx, plan.Tasks...); err != nil {
		return fmt.Errorf("%w: %w", errs.ErrEnqueueFailed, err)
	}
	return nil
}

// Complete 投递结束，计入通知和广播的汇总。重复调用没有副作用
func (c *Coordinator) Complete(ctx context.Context, deliveryID int64) error {
	res, err := c.deliveryRepo.Complete(ctx, deliveryID)
	if err != nil {
		return err
	}
	if res.BroadcastDone {
		c.logger.Info("广播处理完毕", elog.Any("broadcastId", res.BroadcastID))
	}
	return nil
}
