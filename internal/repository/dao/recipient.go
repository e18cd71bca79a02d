package dao

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"gitee.com/flycash/broadcast-platform/internal/domain"
	"github.com/ego-component/egorm"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RecipientDAO interface {
	// Upsert 按 (org_id, external_id) 创建或者更新接收者，设备按 token 哈希合并
	Upsert(ctx context.Context, r Recipient, devices []Device) (Recipient, error)
	FindByID(ctx context.Context, orgID, id int64) (Recipient, error)
	FindByExternalID(ctx context.Context, orgID int64, externalID string) (Recipient, error)
	FindByEmailHash(ctx context.Context, orgID int64, emailHash string) (Recipient, error)
	FindDevices(ctx context.Context, recipientID int64) ([]Device, error)
	// FindIDsByQuery 执行编译后的受众查询
	FindIDsByQuery(ctx context.Context, orgID int64, q domain.AudienceQuery) ([]int64, error)
}

// Recipient 外部用户表，联系方式加密存储，哈希列用于查找
type Recipient struct {
	ID            int64          `gorm:"primaryKey;autoIncrement;comment:'接收者ID'"`
	OrgID         int64          `gorm:"type:BIGINT;NOT NULL;uniqueIndex:uk_org_external_id,priority:1;uniqueIndex:uk_org_email_hash,priority:1;uniqueIndex:uk_org_phone_hash,priority:1;comment:'组织ID'"`
	ExternalID    sql.NullString `gorm:"type:VARCHAR(255);uniqueIndex:uk_org_external_id,priority:2;comment:'组织内的外部用户ID'"`
	Email         string         `gorm:"type:TEXT;comment:'加密后的邮箱'"`
	EmailHash     sql.NullString `gorm:"type:VARCHAR(64);uniqueIndex:uk_org_email_hash,priority:2;comment:'邮箱哈希'"`
	Phone         string         `gorm:"type:TEXT;comment:'加密后的手机号'"`
	PhoneHash     sql.NullString `gorm:"type:VARCHAR(64);uniqueIndex:uk_org_phone_hash,priority:2;comment:'手机号哈希'"`
	FirstName     string         `gorm:"type:TEXT;comment:'加密后的名'"`
	FirstNameHash string         `gorm:"type:VARCHAR(64);comment:'名哈希'"`
	LastName      string         `gorm:"type:TEXT;comment:'加密后的姓'"`
	LastNameHash  string         `gorm:"type:VARCHAR(64);comment:'姓哈希'"`
	Metadata      datatypes.JSON `gorm:"comment:'自定义属性，受众过滤使用'"`
	MetadataTimes datatypes.JSON `gorm:"comment:'metadata 中的时间字段，统一成 UTC 之后的副本'"`
	Ctime         int64
	Utime         int64
}

// Device 推送设备表
type Device struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	OrgID       int64  `gorm:"type:BIGINT;NOT NULL;comment:'组织ID'"`
	RecipientID int64  `gorm:"type:BIGINT;NOT NULL;uniqueIndex:uk_recipient_token,priority:1;comment:'接收者ID'"`
	Token       string `gorm:"type:TEXT;NOT NULL;comment:'加密后的设备token'"`
	TokenHash   string `gorm:"type:VARCHAR(64);NOT NULL;uniqueIndex:uk_recipient_token,priority:2;comment:'设备token哈希'"`
	Platform    string `gorm:"type:VARCHAR(16);NOT NULL;comment:'IOS/ANDROID'"`
	BundleID    string `gorm:"type:VARCHAR(255);comment:'应用包名'"`
	Ctime       int64
	Utime       int64
}

type recipientDAO struct {
	db *egorm.Component
}

func NewRecipientDAO(db *egorm.Component) RecipientDAO {
	return &recipientDAO{db: db}
}

func (d *recipientDAO) Upsert(ctx context.Context, r Recipient, devices []Device) (Recipient, error) {
	res, err := d.upsert(ctx, r, devices)
	if isUniqueConstraintError(err) {
		// 并发创建同一个 external_id，再来一次就会走更新
		return d.upsert(ctx, r, devices)
	}
	return res, err
}

func (d *recipientDAO) upsert(ctx context.Context, r Recipient, devices []Device) (Recipient, error) {
	now := time.Now().UnixMilli()
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Recipient
		err := tx.Where("org_id = ? AND external_id = ?", r.OrgID, r.ExternalID).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			r.Ctime, r.Utime = now, now
			if err = tx.Create(&r).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			// 只更新请求中带过来的字段
			updates := map[string]any{"utime": now}
			if r.EmailHash.Valid {
				updates["email"] = r.Email
				updates["email_hash"] = r.EmailHash
			}
			if r.PhoneHash.Valid {
				updates["phone"] = r.Phone
				updates["phone_hash"] = r.PhoneHash
			}
			if r.FirstNameHash != "" {
				updates["first_name"] = r.FirstName
				updates["first_name_hash"] = r.FirstNameHash
			}
			if r.LastNameHash != "" {
				updates["last_name"] = r.LastName
				updates["last_name_hash"] = r.LastNameHash
			}
			if len(r.Metadata) > 0 {
				updates["metadata"] = r.Metadata
				updates["metadata_times"] = r.MetadataTimes
			}
			if err = tx.Model(&Recipient{}).Where("id = ?", existing.ID).Updates(updates).Error; err != nil {
				return err
			}
			if err = tx.Where("id = ?", existing.ID).First(&r).Error; err != nil {
				return err
			}
		}
		for i := range devices {
			devices[i].OrgID = r.OrgID
			devices[i].RecipientID = r.ID
			devices[i].Ctime, devices[i].Utime = now, now
		}
		if len(devices) == 0 {
			return nil
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "recipient_id"}, {Name: "token_hash"}},
			DoUpdates: clause.AssignmentColumns([]string{"platform", "bundle_id", "utime"}),
		}).Create(&devices).Error
	})
	return r, err
}

func (d *recipientDAO) FindByID(ctx context.Context, orgID, id int64) (Recipient, error) {
	var r Recipient
	err := d.db.WithContext(ctx).Where("org_id = ? AND id = ?", orgID, id).First(&r).Error
	return r, err
}

func (d *recipientDAO) FindByExternalID(ctx context.Context, orgID int64, externalID string) (Recipient, error) {
	var r Recipient
	err := d.db.WithContext(ctx).Where("org_id = ? AND external_id = ?", orgID, externalID).First(&r).Error
	return r, err
}

func (d *recipientDAO) FindByEmailHash(ctx context.Context, orgID int64, emailHash string) (Recipient, error) {
	var r Recipient
	err := d.db.WithContext(ctx).Where("org_id = ? AND email_hash = ?", orgID, emailHash).First(&r).Error
	return r, err
}

func (d *recipientDAO) FindDevices(ctx context.Context, recipientID int64) ([]Device, error) {
	var res []Device
	err := d.db.WithContext(ctx).Where("recipient_id = ?", recipientID).Order("id").Find(&res).Error
	return res, err
}

func (d *recipientDAO) FindIDsByQuery(ctx context.Context, orgID int64, q domain.AudienceQuery) ([]int64, error) {
	dialect := d.db.Dialector.Name()
	query := d.db.WithContext(ctx).Model(&Recipient{}).Where("org_id = ?", orgID)
	for _, p := range q.Include {
		expr, args, err := predicateSQL(dialect, p)
		if err != nil {
			return nil, err
		}
		query = query.Where(expr, args...)
	}
	if len(q.Exclude) > 0 {
		// 排除用子查询表达，字段缺失的接收者不会被排除
		var group *gorm.DB
		for i, p := range q.Exclude {
			expr, args, err := predicateSQL(dialect, p)
			if err != nil {
				return nil, err
			}
			if i == 0 {
				group = d.db.Where(expr, args...)
				continue
			}
			group = group.Or(expr, args...)
		}
		sub := d.db.Model(&Recipient{}).Select("id").Where("org_id = ?", orgID).Where(group)
		query = query.Where("id NOT IN (?)", sub)
	}
	var ids []int64
	err := query.Order("id").Pluck("id", &ids).Error
	return ids, err
}

// 基础字段只允许比较哈希列
var basicColumns = map[string]struct{}{
	"email_hash":      {},
	"phone_hash":      {},
	"first_name_hash": {},
	"last_name_hash":  {},
}

var comparisonOperators = map[domain.Comparison]string{
	domain.ComparisonEQ:       "=",
	domain.ComparisonGT:       ">",
	domain.ComparisonLT:       "<",
	domain.ComparisonGTE:      ">=",
	domain.ComparisonLTE:      "<=",
	domain.ComparisonContains: "LIKE",
}

// LIKE 的通配符按字面值匹配
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func predicateSQL(dialect string, p domain.Predicate) (string, []any, error) {
	op, ok := comparisonOperators[p.Op]
	if !ok {
		return "", nil, fmt.Errorf("不支持的比较方式 %s", p.Op)
	}
	value, placeholder := p.Value, "?"
	if p.Op == domain.ComparisonContains {
		value = "%" + likeEscaper.Replace(fmt.Sprint(p.Value)) + "%"
		placeholder = "? ESCAPE '!'"
	}
	if p.IsBasic() {
		if _, ok := basicColumns[p.Column]; !ok {
			return "", nil, fmt.Errorf("不支持的基础字段 %s", p.Column)
		}
		return fmt.Sprintf("%s %s %s", p.Column, op, placeholder), []any{value}, nil
	}
	return fmt.Sprintf("%s %s %s", metadataExpr(dialect, p.ValueType), op, placeholder),
		[]any{jsonPath(p.Path), value}, nil
}
