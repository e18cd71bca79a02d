package recipient

import (
	"context"
	"errors"

	"gitee.com/flycash/broadcast-platform/internal/domain"
	"gitee.com/flycash/broadcast-platform/internal/errs"
	"gitee.com/flycash/broadcast-platform/internal/repository"
	"gitee.com/flycash/broadcast-platform/internal/service/audience"
	"github.com/gotomicro/ego/core/elog"
)

// Resolution 去重之后的接收者，以及不影响广播继续执行的错误
type Resolution struct {
	RecipientIDs []int64
	Errors       []domain.ResolutionError
}

type resolutionBuilder struct {
	seen map[int64]struct{}
	res  Resolution
}

func (b *resolutionBuilder) add(id int64) {
	if _, ok := b.seen[id]; ok {
		return
	}
	b.seen[id] = struct{}{}
	b.res.RecipientIDs = append(b.res.RecipientIDs, id)
}

// Resolver 依次解析受众、显式接收者、主题订阅者，重复执行结果一致
type Resolver struct {
	audienceSvc audience.Service
	repo        repository.RecipientRepository
	prefRepo    repository.PreferenceRepository
	logger      *elog.Component
}

func NewResolver(audienceSvc audience.Service, repo repository.RecipientRepository,
	prefRepo repository.PreferenceRepository,
) *Resolver {
	return &Resolver{
		audienceSvc: audienceSvc,
		repo:        repo,
		prefRepo:    prefRepo,
		logger:      elog.DefaultLogger,
	}
}

func (r *Resolver) Resolve(ctx context.Context, b domain.Broadcast) (Resolution, error) {
	builder := &resolutionBuilder{seen: make(map[int64]struct{})}
	if b.AudienceID > 0 {
		if err := r.resolveAudience(ctx, b, builder); err != nil {
			return Resolution{}, err
		}
	}
	for _, p := range b.Recipients {
		if err := r.resolveExplicit(ctx, b.OrgID, p, builder); err != nil {
			return Resolution{}, err
		}
	}
	if b.Topic != "" {
		if err := r.resolveTopic(ctx, b, builder); err != nil {
			return Resolution{}, err
		}
	}
	return builder.res, nil
}

func (r *Resolver) resolveAudience(ctx context.Context, b domain.Broadcast, builder *resolutionBuilder) error {
	ids, err := r.audienceSvc.FindRecipientIDs(ctx, b.OrgID, b.AudienceID)
	if errors.Is(err, errs.ErrAudienceNotFound) {
		r.logger.Warn("受众不存在", elog.Any("broadcastId", b.ID), elog.Any("audienceId", b.AudienceID))
		builder.res.Errors = append(builder.res.Errors, domain.ResolutionError{
			AudienceID: b.AudienceID,
			Reason:     domain.ReasonAudienceNotExist,
		})
		return nil
	}
	if err != nil {
		return err
	}
	for _, id := range ids {
		builder.add(id)
	}
	return nil
}

// resolveExplicit 带 external_id 的会创建或者更新接收者，只有邮箱的只查找
func (r *Resolver) resolveExplicit(ctx context.Context, orgID int64, p domain.RecipientPayload, builder *resolutionBuilder) error {
	if p.ExternalID != "" {
		found, err := r.repo.Upsert(ctx, orgID, p)
		if err != nil {
			return err
		}
		builder.add(found.ID)
		return nil
	}
	found, err := r.repo.FindByEmail(ctx, orgID, p.Email)
	if errors.Is(err, errs.ErrRecipientNotFound) {
		builder.res.Errors = append(builder.res.Errors, domain.ResolutionError{
			Email:  p.Email,
			Reason: domain.ReasonEmailNotExist,
		})
		return nil
	}
	if err != nil {
		return err
	}
	builder.add(found.ID)
	return nil
}

func (r *Resolver) resolveTopic(ctx context.Context, b domain.Broadcast, builder *resolutionBuilder) error {
	subs, err := r.prefRepo.FindSubscriptions(ctx, b.OrgID, b.Topic)
	if err != nil {
		return err
	}
	for _, s := range subs {
		if b.Category != "" && !s.Categories[b.Category] {
			continue
		}
		builder.add(s.RecipientID)
	}
	return nil
}
