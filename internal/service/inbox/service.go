package inbox

import (
	"context"
	"fmt"
	"time"

	"gitee.com/flycash/broadcast-platform/internal/domain"
	"gitee.com/flycash/broadcast-platform/internal/errs"
	"gitee.com/flycash/broadcast-platform/internal/repository"
)

// Service 终端用户的收件箱，用户由 (组织, external id) 确定
//
//go:generate mockgen -source=./service.go -destination=./mocks/service.mock.go -package=inboxmocks -typed Service
type Service interface {
	Mark(ctx context.Context, orgID int64, externalID string, notificationID int64, action domain.InboxAction) error
	List(ctx context.Context, orgID int64, externalID string, archived bool, offset, limit int) ([]domain.Notification, error)
}

type service struct {
	recipientRepo    repository.RecipientRepository
	notificationRepo repository.NotificationRepository
	now              func() time.Time
}

func NewService(recipientRepo repository.RecipientRepository, notificationRepo repository.NotificationRepository) Service {
	return &service{
		recipientRepo:    recipientRepo,
		notificationRepo: notificationRepo,
		now:              time.Now,
	}
}

func (s *service) Mark(ctx context.Context, orgID int64, externalID string, notificationID int64, action domain.InboxAction) error {
	if !action.IsValid() {
		return fmt.Errorf("%w: action = %s", errs.ErrInvalidParameter, action)
	}
	r, err := s.recipientRepo.FindByExternalID(ctx, orgID, externalID)
	if err != nil {
		return err
	}
	return s.notificationRepo.ApplyInboxAction(ctx, orgID, r.ID, notificationID, action, s.now())
}

func (s *service) List(ctx context.Context, orgID int64, externalID string, archived bool, offset, limit int) ([]domain.Notification, error) {
	r, err := s.recipientRepo.FindByExternalID(ctx, orgID, externalID)
	if err != nil {
		return nil, err
	}
	return s.notificationRepo.ListInbox(ctx, orgID, r.ID, archived, offset, limit)
}
