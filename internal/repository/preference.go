package repository

import (
	"context"
	"encoding/json"
	"errors"

	"gitee.com/flycash/broadcast-platform/internal/domain"
	"gitee.com/flycash/broadcast-platform/internal/repository/dao"
	"gorm.io/gorm"
)

type PreferenceRepository interface {
	// FindPreference 第二个返回值表示接收者是否设置过这个分类的偏好
	FindPreference(ctx context.Context, orgID, recipientID int64, category string) (domain.Preference, bool, error)
	FindSubscriptions(ctx context.Context, orgID int64, topic string) ([]domain.Subscription, error)
	SavePreference(ctx context.Context, p domain.Preference) error
	SaveSubscription(ctx context.Context, s domain.Subscription) error
}

type preferenceRepository struct {
	dao dao.PreferenceDAO
}

func NewPreferenceRepository(d dao.PreferenceDAO) PreferenceRepository {
	return &preferenceRepository{dao: d}
}

func (r *preferenceRepository) FindPreference(ctx context.Context, orgID, recipientID int64, category string) (domain.Preference, bool, error) {
	p, err := r.dao.FindPreference(ctx, orgID, recipientID, category)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Preference{}, false, nil
	}
	if err != nil {
		return domain.Preference{}, false, err
	}
	res := domain.Preference{
		OrgID:       p.OrgID,
		RecipientID: p.RecipientID,
		Category:    p.Category,
		Channels:    map[domain.Channel]bool{},
	}
	if len(p.Channels) > 0 {
		if err = json.Unmarshal(p.Channels, &res.Channels); err != nil {
			return domain.Preference{}, false, err
		}
	}
	return res, true, nil
}

func (r *preferenceRepository) FindSubscriptions(ctx context.Context, orgID int64, topic string) ([]domain.Subscription, error) {
	subs, err := r.dao.FindSubscriptions(ctx, orgID, topic)
	if err != nil {
		return nil, err
	}
	res := make([]domain.Subscription, 0, len(subs))
	for _, s := range subs {
		sub := domain.Subscription{
			OrgID:       s.OrgID,
			RecipientID: s.RecipientID,
			Topic:       s.Topic,
			Categories:  map[string]bool{},
		}
		if len(s.Categories) > 0 {
			if err = json.Unmarshal(s.Categories, &sub.Categories); err != nil {
				return nil, err
			}
		}
		res = append(res, sub)
	}
	return res, nil
}

func (r *preferenceRepository) SavePreference(ctx context.Context, p domain.Preference) error {
	channels, err := json.Marshal(p.Channels)
	if err != nil {
		return err
	}
	return r.dao.SavePreference(ctx, dao.Preference{
		OrgID:       p.OrgID,
		RecipientID: p.RecipientID,
		Category:    p.Category,
		Channels:    channels,
	})
}

func (r *preferenceRepository) SaveSubscription(ctx context.Context, s domain.Subscription) error {
	categories, err := json.Marshal(s.Categories)
	if err != nil {
		return err
	}
	return r.dao.SaveSubscription(ctx, dao.Subscription{
		OrgID:       s.OrgID,
		RecipientID: s.RecipientID,
		Topic:       s.Topic,
		Categories:  categories,
	})
}
