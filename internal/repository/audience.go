package repository

import (
	"context"
	"errors"
	"fmt"

	"gitee.com/flycash/broadcast-platform/internal/domain"
	"gitee.com/flycash/broadcast-platform/internal/errs"
	"gitee.com/flycash/broadcast-platform/internal/repository/dao"
	"github.com/ecodeclub/ekit/slice"
	"gorm.io/gorm"
)

type AudienceRepository interface {
	FindByID(ctx context.Context, orgID, id int64) (domain.Audience, error)
	Create(ctx context.Context, a domain.Audience) (domain.Audience, error)
}

type audienceRepository struct {
	dao dao.AudienceDAO
}

func NewAudienceRepository(d dao.AudienceDAO) AudienceRepository {
	return &audienceRepository{dao: d}
}

func (r *audienceRepository) FindByID(ctx context.Context, orgID, id int64) (domain.Audience, error) {
	a, filters, err := r.dao.FindByID(ctx, orgID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Audience{}, fmt.Errorf("%w: id = %d", errs.ErrAudienceNotFound, id)
		}
		return domain.Audience{}, err
	}
	return domain.Audience{
		ID:    a.ID,
		OrgID: a.OrgID,
		Name:  a.Name,
		Filters: slice.Map(filters, func(_ int, f dao.AudienceFilter) domain.Filter {
			return domain.Filter{
				Property:  f.Property,
				Operator:  domain.Operator(f.Operator),
				Value:     f.Value,
				ValueType: domain.ValueType(f.ValueType),
			}
		}),
	}, nil
}

func (r *audienceRepository) Create(ctx context.Context, a domain.Audience) (domain.Audience, error) {
	filters := slice.Map(a.Filters, func(_ int, f domain.Filter) dao.AudienceFilter {
		vt := f.ValueType
		if vt == "" {
			vt = domain.ValueTypeString
		}
		return dao.AudienceFilter{
			Property:  f.Property,
			Operator:  string(f.Operator),
			Value:     f.Value,
			ValueType: string(vt),
		}
	})
	created, err := r.dao.Create(ctx, dao.Audience{OrgID: a.OrgID, Name: a.Name}, filters)
	if err != nil {
		return domain.Audience{}, err
	}
	a.ID = created.ID
	return a, nil
}
