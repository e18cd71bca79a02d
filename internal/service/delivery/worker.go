package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gitee.com/flycash/broadcast-platform/internal/domain"
	"gitee.com/flycash/broadcast-platform/internal/errs"
	"gitee.com/flycash/broadcast-platform/internal/pkg/ratelimit"
	"gitee.com/flycash/broadcast-platform/internal/pkg/retry"
	"gitee.com/flycash/broadcast-platform/internal/repository"
	"gitee.com/flycash/broadcast-platform/internal/service/provider"
	"github.com/gotomicro/ego/core/elog"
)

// Completer 投递结束之后汇总到通知和广播
type Completer interface {
	Complete(ctx context.Context, deliveryID int64) error
}

// Worker 处理一个投递任务。返回错误表示任务需要重新投递，
// 供应商错误不会返回，而是记录在账本中
type Worker struct {
	broadcastRepo    repository.BroadcastRepository
	notificationRepo repository.NotificationRepository
	recipientRepo    repository.RecipientRepository
	providerRepo     repository.ProviderRepository
	deliveryRepo     repository.DeliveryRepository
	gateway          provider.Provider
	completer        Completer
	retryCfg         *retry.ConfigHolder

	// 可以为 nil，表示不限流
	limiter       ratelimit.Limiter
	limitInterval time.Duration

	sleep  func(ctx context.Context, d time.Duration) error
	now    func() time.Time
	logger *elog.Component
}

func NewWorker(
	broadcastRepo repository.BroadcastRepository,
	notificationRepo repository.NotificationRepository,
	recipientRepo repository.RecipientRepository,
	providerRepo repository.ProviderRepository,
	deliveryRepo repository.DeliveryRepository,
	gateway provider.Provider,
	completer Completer,
	retryCfg *retry.ConfigHolder,
) *Worker {
	return &Worker{
		broadcastRepo:    broadcastRepo,
		notificationRepo: notificationRepo,
		recipientRepo:    recipientRepo,
		providerRepo:     providerRepo,
		deliveryRepo:     deliveryRepo,
		gateway:          gateway,
		completer:        completer,
		retryCfg:         retryCfg,
		sleep:            sleep,
		now:              time.Now,
		logger:           elog.DefaultLogger,
	}
}

// WithLimiter 按 (组织, 供应商) 限流，被限流时等待 interval 之后再检查
func (w *Worker) WithLimiter(limiter ratelimit.Limiter, interval time.Duration) *Worker {
	w.limiter = limiter
	w.limitInterval = interval
	return w
}

func (w *Worker) Handle(ctx context.Context, task domain.DeliveryTask) error {
	existing, found, err := w.deliveryRepo.Find(ctx, task)
	if err != nil {
		return err
	}
	if found && existing.Status.IsFinal() {
		// 重复的任务，不再调用供应商，但是汇总需要保证执行过
		return w.completer.Complete(ctx, existing.ID)
	}

	d, msg, ok, err := w.prepare(ctx, task)
	if err != nil {
		return err
	}
	if ok {
		// attempted 和 undelivered 的记录重放时会重新走一轮，最多再调用 MaxAttempts 次，
		// 次数在原来的基础上累加
		if found {
			d.Attempts = existing.Attempts
		}
		d, err = w.deliver(ctx, d, msg)
		if err != nil {
			return err
		}
	}
	return w.completer.Complete(ctx, d.ID)
}

// prepare 准备投递记录和消息，ok = false 时投递记录已经以 not_sent 写入
func (w *Worker) prepare(ctx context.Context, task domain.DeliveryTask) (domain.Delivery, domain.Message, bool, error) {
	n, err := w.notificationRepo.GetByID(ctx, task.NotificationID)
	if err != nil {
		return domain.Delivery{}, domain.Message{}, false, err
	}
	b, err := w.broadcastRepo.FindByID(ctx, task.OrgID, task.BroadcastID)
	if err != nil {
		return domain.Delivery{}, domain.Message{}, false, err
	}
	r, err := w.recipientRepo.FindByID(ctx, task.OrgID, task.RecipientID)
	if errors.Is(err, errs.ErrRecipientNotFound) {
		d, err := w.notSent(ctx, task, domain.ReasonRecipientNotFound)
		return d, domain.Message{}, false, err
	}
	if err != nil {
		return domain.Delivery{}, domain.Message{}, false, err
	}

	msg := buildMessage(b, n, r, task)
	if task.Channel != domain.ChannelWeb {
		cfg, found, err := w.findProvider(ctx, task)
		if err != nil {
			return domain.Delivery{}, domain.Message{}, false, err
		}
		if !found {
			d, err := w.notSent(ctx, task, domain.ReasonProviderNotConfigured)
			return d, domain.Message{}, false, err
		}
		msg.Provider = cfg
	}
	if task.Channel == domain.ChannelPush {
		device, ok := r.FindDevice(task.DeviceID)
		if !ok {
			d, err := w.notSent(ctx, task, domain.ReasonDeviceNotFound)
			return d, domain.Message{}, false, err
		}
		msg = withDevice(msg, device)
	}

	d := domain.Delivery{
		OrgID:          task.OrgID,
		NotificationID: task.NotificationID,
		Channel:        task.Channel,
		Target:         task.Target(),
		Platform:       task.Platform,
		Title:          msg.Title,
		Content:        msg.Body,
		ActionLink:     msg.ActionLink,
	}
	return d, msg, true, nil
}

// findProvider 没有启用的供应商时不发送
func (w *Worker) findProvider(ctx context.Context, task domain.DeliveryTask) (domain.ProviderConfig, bool, error) {
	if task.Channel == domain.ChannelPush {
		cfg, err := w.providerRepo.FindByVendor(ctx, task.OrgID, domain.VendorForPlatform(task.Platform))
		if errors.Is(err, errs.ErrProviderNotConfigured) {
			return domain.ProviderConfig{}, false, nil
		}
		if err != nil {
			return domain.ProviderConfig{}, false, err
		}
		return cfg, cfg.Enabled, nil
	}
	typ, _ := task.Channel.ProviderType()
	cfgs, err := w.providerRepo.FindEnabled(ctx, task.OrgID, typ)
	if err != nil || len(cfgs) == 0 {
		return domain.ProviderConfig{}, false, err
	}
	return cfgs[0], true, nil
}

func (w *Worker) notSent(ctx context.Context, task domain.DeliveryTask, reason string) (domain.Delivery, error) {
	return w.deliveryRepo.Save(ctx, task.NotSent(reason))
}

// deliver 最多调用供应商 MaxAttempts 次
func (w *Worker) deliver(ctx context.Context, d domain.Delivery, msg domain.Message) (domain.Delivery, error) {
	cfg := w.retryCfg.Load()
	strategy, err := retry.NewRetry(cfg)
	if err != nil {
		return domain.Delivery{}, err
	}
	previous := d.Attempts
	for attempt := 1; ; attempt++ {
		if err = w.waitForQuota(ctx, msg); err != nil {
			return domain.Delivery{}, err
		}
		res, sendErr := w.gateway.Send(ctx, msg)
		if ctx.Err() != nil {
			return domain.Delivery{}, ctx.Err()
		}
		d.Attempts = previous + attempt
		switch {
		case sendErr == nil:
			d.Status = res.DeliveryStatus()
			d.ErrorReason = res.Reason
			d.Metadata = res.Metadata
			d.SentAt = w.now()
			return w.deliveryRepo.Save(ctx, d)
		case errors.Is(sendErr, errs.ErrProviderPermanent):
			d.Status = domain.DeliveryStatusNotSent
			d.ErrorReason = sendErr.Error()
			return w.deliveryRepo.Save(ctx, d)
		case attempt >= cfg.MaxAttempts:
			d.Status = domain.DeliveryStatusUndelivered
			d.ErrorReason = sendErr.Error()
			return w.deliveryRepo.Save(ctx, d)
		}

		d.Status = domain.DeliveryStatusAttempted
		d.ErrorReason = sendErr.Error()
		if _, err = w.deliveryRepo.Save(ctx, d); err != nil {
			return domain.Delivery{}, err
		}
		interval, ok := strategy.Next()
		if !ok {
			d.Status = domain.DeliveryStatusUndelivered
			return w.deliveryRepo.Save(ctx, d)
		}
		if cfg.Jitter {
			interval = retry.FullJitter(interval)
		}
		w.logger.Warn("投递失败，准备重试",
			elog.Any("notificationId", d.NotificationID),
			elog.String("channel", string(d.Channel)),
			elog.Int("attempt", attempt),
			elog.FieldErr(sendErr))
		if err = w.sleep(ctx, interval); err != nil {
			return domain.Delivery{}, err
		}
	}
}

// waitForQuota 被限流不消耗重试次数
func (w *Worker) waitForQuota(ctx context.Context, msg domain.Message) error {
	if w.limiter == nil || msg.Channel == domain.ChannelWeb {
		return nil
	}
	key := ratelimit.Key{OrgID: msg.OrgID, Vendor: string(msg.Provider.Vendor)}
	for {
		limited, err := w.limiter.Limit(ctx, key)
		if err != nil {
			// 限流器不可用时放行
			w.logger.Error("限流检查失败", elog.String("key", key.String()), elog.FieldErr(err))
			return nil
		}
		if !limited {
			return nil
		}
		if err = w.sleep(ctx, w.limitInterval); err != nil {
			return fmt.Errorf("等待限流窗口 %w", err)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
