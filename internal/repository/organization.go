package repository

import (
	"context"
	"errors"
	"fmt"

	"gitee.com/flycash/broadcast-platform/internal/domain"
	"gitee.com/flycash/broadcast-platform/internal/errs"
	"gitee.com/flycash/broadcast-platform/internal/pkg/crypto"
	"gitee.com/flycash/broadcast-platform/internal/repository/dao"
	"gorm.io/gorm"
)

type OrganizationRepository interface {
	FindByID(ctx context.Context, id int64) (domain.Organization, error)
	Create(ctx context.Context, org domain.Organization) (domain.Organization, error)
}

type organizationRepository struct {
	dao    dao.OrganizationDAO
	crypto *crypto.Crypto
}

func NewOrganizationRepository(d dao.OrganizationDAO, c *crypto.Crypto) OrganizationRepository {
	return &organizationRepository{dao: d, crypto: c}
}

func (r *organizationRepository) FindByID(ctx context.Context, id int64) (domain.Organization, error) {
	org, err := r.dao.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Organization{}, fmt.Errorf("%w: id = %d", errs.ErrOrganizationNotFound, id)
		}
		return domain.Organization{}, err
	}
	secret, err := r.crypto.Decrypt(org.APISecret)
	if err != nil {
		return domain.Organization{}, fmt.Errorf("解密组织密钥失败: %w", err)
	}
	return domain.Organization{ID: org.ID, Name: org.Name, APISecret: secret}, nil
}

func (r *organizationRepository) Create(ctx context.Context, org domain.Organization) (domain.Organization, error) {
	secret, err := r.crypto.Encrypt(org.APISecret)
	if err != nil {
		return domain.Organization{}, err
	}
	created, err := r.dao.Create(ctx, dao.Organization{ID: org.ID, Name: org.Name, APISecret: secret})
	if err != nil {
		return domain.Organization{}, err
	}
	org.ID = created.ID
	return org, nil
}
