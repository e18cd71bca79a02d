package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gitee.com/flycash/broadcast-platform/internal/domain"
	"gitee.com/flycash/broadcast-platform/internal/errs"
	"gitee.com/flycash/broadcast-platform/internal/pkg/crypto"
	"gitee.com/flycash/broadcast-platform/internal/repository/dao"
	"gorm.io/gorm"
)

// RecipientRepository 联系方式在这一层加解密，上层只看到明文
type RecipientRepository interface {
	// Upsert 按 external_id 创建或者更新，只更新请求中带了的字段
	Upsert(ctx context.Context, orgID int64, p domain.RecipientPayload) (domain.Recipient, error)
	// FindByID 返回的接收者带上设备
	FindByID(ctx context.Context, orgID, id int64) (domain.Recipient, error)
	FindByEmail(ctx context.Context, orgID int64, email string) (domain.Recipient, error)
	FindByExternalID(ctx context.Context, orgID int64, externalID string) (domain.Recipient, error)
	FindIDsByQuery(ctx context.Context, orgID int64, q domain.AudienceQuery) ([]int64, error)
}

type recipientRepository struct {
	dao    dao.RecipientDAO
	crypto *crypto.Crypto
}

func NewRecipientRepository(d dao.RecipientDAO, c *crypto.Crypto) RecipientRepository {
	return &recipientRepository{dao: d, crypto: c}
}

func (r *recipientRepository) Upsert(ctx context.Context, orgID int64, p domain.RecipientPayload) (domain.Recipient, error) {
	entity, err := r.toEntity(orgID, p)
	if err != nil {
		return domain.Recipient{}, err
	}
	devices := make([]dao.Device, 0, len(p.Devices))
	for _, d := range p.Devices {
		token, err := r.crypto.Encrypt(d.Token)
		if err != nil {
			return domain.Recipient{}, err
		}
		devices = append(devices, dao.Device{
			Token:     token,
			TokenHash: r.crypto.Hash(d.Token),
			Platform:  string(d.Platform),
			BundleID:  d.BundleID,
		})
	}
	saved, err := r.dao.Upsert(ctx, entity, devices)
	if err != nil {
		return domain.Recipient{}, err
	}
	return r.withDevices(ctx, saved)
}

func (r *recipientRepository) FindByID(ctx context.Context, orgID, id int64) (domain.Recipient, error) {
	entity, err := r.dao.FindByID(ctx, orgID, id)
	if err != nil {
		return domain.Recipient{}, r.notFound(err, fmt.Sprintf("id = %d", id))
	}
	return r.withDevices(ctx, entity)
}

func (r *recipientRepository) FindByEmail(ctx context.Context, orgID int64, email string) (domain.Recipient, error) {
	entity, err := r.dao.FindByEmailHash(ctx, orgID, r.crypto.HashEmail(email))
	if err != nil {
		return domain.Recipient{}, r.notFound(err, "email")
	}
	return r.withDevices(ctx, entity)
}

func (r *recipientRepository) FindByExternalID(ctx context.Context, orgID int64, externalID string) (domain.Recipient, error) {
	entity, err := r.dao.FindByExternalID(ctx, orgID, externalID)
	if err != nil {
		return domain.Recipient{}, r.notFound(err, "externalId = "+externalID)
	}
	return r.withDevices(ctx, entity)
}

func (r *recipientRepository) FindIDsByQuery(ctx context.Context, orgID int64, q domain.AudienceQuery) ([]int64, error) {
	return r.dao.FindIDsByQuery(ctx, orgID, q)
}

func (r *recipientRepository) notFound(err error, key string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", errs.ErrRecipientNotFound, key)
	}
	return err
}

func (r *recipientRepository) withDevices(ctx context.Context, entity dao.Recipient) (domain.Recipient, error) {
	res, err := r.toDomain(entity)
	if err != nil {
		return domain.Recipient{}, err
	}
	devices, err := r.dao.FindDevices(ctx, entity.ID)
	if err != nil {
		return domain.Recipient{}, err
	}
	res.Devices = make([]domain.Device, 0, len(devices))
	for _, d := range devices {
		token, err := r.crypto.Decrypt(d.Token)
		if err != nil {
			return domain.Recipient{}, fmt.Errorf("解密设备 token 失败: %w", err)
		}
		res.Devices = append(res.Devices, domain.Device{
			ID:          d.ID,
			RecipientID: d.RecipientID,
			Token:       token,
			Platform:    domain.Platform(d.Platform),
			BundleID:    d.BundleID,
		})
	}
	return res, nil
}

func (r *recipientRepository) toEntity(orgID int64, p domain.RecipientPayload) (dao.Recipient, error) {
	entity := dao.Recipient{
		OrgID:      orgID,
		ExternalID: sql.NullString{String: p.ExternalID, Valid: p.ExternalID != ""},
	}
	var err error
	if p.Email != "" {
		if entity.Email, err = r.crypto.Encrypt(p.Email); err != nil {
			return dao.Recipient{}, err
		}
		entity.EmailHash = sql.NullString{String: r.crypto.HashEmail(p.Email), Valid: true}
	}
	if p.Phone != "" {
		if entity.Phone, err = r.crypto.Encrypt(p.Phone); err != nil {
			return dao.Recipient{}, err
		}
		entity.PhoneHash = sql.NullString{String: r.crypto.Hash(p.Phone), Valid: true}
	}
	if p.FirstName != "" {
		if entity.FirstName, err = r.crypto.Encrypt(p.FirstName); err != nil {
			return dao.Recipient{}, err
		}
		entity.FirstNameHash = r.crypto.Hash(p.FirstName)
	}
	if p.LastName != "" {
		if entity.LastName, err = r.crypto.Encrypt(p.LastName); err != nil {
			return dao.Recipient{}, err
		}
		entity.LastNameHash = r.crypto.Hash(p.LastName)
	}
	if len(p.Metadata) > 0 {
		if entity.Metadata, err = json.Marshal(p.Metadata); err != nil {
			return dao.Recipient{}, err
		}
		if entity.MetadataTimes, err = json.Marshal(domain.DatetimeFields(p.Metadata)); err != nil {
			return dao.Recipient{}, err
		}
	}
	return entity, nil
}

func (r *recipientRepository) toDomain(entity dao.Recipient) (domain.Recipient, error) {
	fields := []string{entity.Email, entity.Phone, entity.FirstName, entity.LastName}
	plain := make([]string, len(fields))
	for i, f := range fields {
		v, err := r.crypto.Decrypt(f)
		if err != nil {
			return domain.Recipient{}, fmt.Errorf("解密接收者信息失败: %w", err)
		}
		plain[i] = v
	}
	res := domain.Recipient{
		ID:         entity.ID,
		OrgID:      entity.OrgID,
		ExternalID: entity.ExternalID.String,
		Email:      plain[0],
		Phone:      plain[1],
		FirstName:  plain[2],
		LastName:   plain[3],
		Ctime:      time.UnixMilli(entity.Ctime),
		Utime:      time.UnixMilli(entity.Utime),
	}
	if len(entity.Metadata) > 0 {
		if err := json.Unmarshal(entity.Metadata, &res.Metadata); err != nil {
			return domain.Recipient{}, err
		}
	}
	return res, nil
}
