package broadcast

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gitee.com/flycash/broadcast-platform/internal/domain"
	"gitee.com/flycash/broadcast-platform/internal/errs"
	broadcastevt "gitee.com/flycash/broadcast-platform/internal/event/broadcast"
	id "gitee.com/flycash/broadcast-platform/internal/pkg/id_generator"
	"gitee.com/flycash/broadcast-platform/internal/repository"
	"gitee.com/flycash/broadcast-platform/internal/service/scheduler"
	"github.com/gofrs/uuid"
	"github.com/gotomicro/ego/core/elog"
)

//go:generate mockgen -source=./service.go -destination=./mocks/service.mock.go -package=broadcastmocks -typed Service
type Service interface {
	// Submit 同一个幂等键重复提交时原样返回已有的广播
	Submit(ctx context.Context, b domain.Broadcast) (domain.Broadcast, error)
	Get(ctx context.Context, orgID, id int64) (domain.Broadcast, error)
	List(ctx context.Context, orgID int64, status domain.BroadcastStatus, offset, limit int) ([]domain.Broadcast, error)
	ListNotifications(ctx context.Context, orgID, broadcastID int64, offset, limit int) ([]domain.Notification, error)
	ListDeliveries(ctx context.Context, orgID, notificationID int64) ([]domain.Delivery, error)
	// Cancel 和 Edit 只对还没有触发的定时广播有效
	Cancel(ctx context.Context, orgID, id int64) error
	Edit(ctx context.Context, orgID, id int64, edit domain.BroadcastEdit) error
}

type service struct {
	repo             repository.BroadcastRepository
	notificationRepo repository.NotificationRepository
	deliveryRepo     repository.DeliveryRepository
	audienceRepo     repository.AudienceRepository
	providerRepo     repository.ProviderRepository
	scheduler        *scheduler.Scheduler
	producer         broadcastevt.Producer
	idGen            id.Generator

	now    func() time.Time
	logger *elog.Component
}

func NewService(
	repo repository.BroadcastRepository,
	notificationRepo repository.NotificationRepository,
	deliveryRepo repository.DeliveryRepository,
	audienceRepo repository.AudienceRepository,
	providerRepo repository.ProviderRepository,
	sch *scheduler.Scheduler,
	producer broadcastevt.Producer,
	idGen id.Generator,
) Service {
	return &service{
		repo:             repo,
		notificationRepo: notificationRepo,
		deliveryRepo:     deliveryRepo,
		audienceRepo:     audienceRepo,
		providerRepo:     providerRepo,
		scheduler:        sch,
		producer:         producer,
		idGen:            idGen,
		now:              time.Now,
		logger:           elog.DefaultLogger,
	}
}

func (s *service) Submit(ctx context.Context, b domain.Broadcast) (domain.Broadcast, error) {
	if b.IdempotencyKey == "" {
		key, err := uuid.NewV4()
		if err != nil {
			return domain.Broadcast{}, err
		}
		b.IdempotencyKey = key.String()
	}
	existing, err := s.repo.FindByIdempotencyKey(ctx, b.OrgID, b.IdempotencyKey)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, errs.ErrBroadcastNotFound) {
		return domain.Broadcast{}, err
	}

	if err = b.Validate(); err != nil {
		return domain.Broadcast{}, err
	}
	if err = s.checkReferences(ctx, b); err != nil {
		return domain.Broadcast{}, err
	}

	b.ID, err = s.idGen.NextID()
	if err != nil {
		return domain.Broadcast{}, err
	}
	var created domain.Broadcast
	if b.ShouldSchedule(s.now()) {
		created, err = s.scheduler.Schedule(ctx, b)
	} else {
		b.ScheduleAt = time.Time{}
		created, err = s.repo.Create(ctx, b)
	}
	if errors.Is(err, errs.ErrBroadcastDuplicate) {
		// 并发提交同一个幂等键，以先写入的为准
		return s.repo.FindByIdempotencyKey(ctx, b.OrgID, b.IdempotencyKey)
	}
	if err != nil {
		return domain.Broadcast{}, err
	}
	if created.Status == domain.BroadcastStatusScheduled {
		return created, nil
	}

	err = s.producer.Produce(ctx, broadcastevt.Event{OrgID: created.OrgID, BroadcastID: created.ID})
	if err != nil {
		s.logger.Error("广播入队失败", elog.Int64("broadcastId", created.ID), elog.FieldErr(err))
		if mErr := s.repo.MarkFailed(ctx, created.ID); mErr != nil {
			s.logger.Error("标记广播失败状态失败", elog.Int64("broadcastId", created.ID), elog.FieldErr(mErr))
		}
		return domain.Broadcast{}, fmt.Errorf("%w: %w", errs.ErrEnqueueFailed, err)
	}
	return created, nil
}

// checkReferences 受众存在，非站内信渠道都有启用的供应商
func (s *service) checkReferences(ctx context.Context, b domain.Broadcast) error {
	if b.AudienceID > 0 {
		if _, err := s.audienceRepo.FindByID(ctx, b.OrgID, b.AudienceID); err != nil {
			if errors.Is(err, errs.ErrAudienceNotFound) {
				return fmt.Errorf("%w: %w", errs.ErrInvalidParameter, err)
			}
			return err
		}
	}
	for _, c := range b.RequestedChannels() {
		typ, ok := c.ProviderType()
		if !ok {
			continue
		}
		cfgs, err := s.providerRepo.FindEnabled(ctx, b.OrgID, typ)
		if err != nil {
			return err
		}
		if len(cfgs) == 0 {
			return fmt.Errorf("%w: %w: %s", errs.ErrInvalidParameter, errs.ErrProviderNotConfigured, c)
		}
	}
	return nil
}

func (s *service) Get(ctx context.Context, orgID, id int64) (domain.Broadcast, error) {
	return s.repo.FindByID(ctx, orgID, id)
}

func (s *service) List(ctx context.Context, orgID int64, status domain.BroadcastStatus, offset, limit int) ([]domain.Broadcast, error) {
	return s.repo.List(ctx, orgID, status, offset, limit)
}

func (s *service) ListNotifications(ctx context.Context, orgID, broadcastID int64, offset, limit int) ([]domain.Notification, error) {
	if _, err := s.repo.FindByID(ctx, orgID, broadcastID); err != nil {
		return nil, err
	}
	return s.notificationRepo.ListByBroadcast(ctx, orgID, broadcastID, offset, limit)
}

func (s *service) ListDeliveries(ctx context.Context, orgID, notificationID int64) ([]domain.Delivery, error) {
	if _, err := s.notificationRepo.FindByID(ctx, orgID, notificationID); err != nil {
		return nil, err
	}
	return s.deliveryRepo.ListByNotification(ctx, orgID, notificationID)
}

func (s *service) Cancel(ctx context.Context, orgID, id int64) error {
	return s.scheduler.Cancel(ctx, orgID, id)
}

func (s *service) Edit(ctx context.Context, orgID, id int64, edit domain.BroadcastEdit) error {
	return s.scheduler.Reschedule(ctx, orgID, id, edit)
}
