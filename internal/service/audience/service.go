package audience

import (
	"context"

	"gitee.com/flycash/broadcast-platform/internal/repository"
)

// Service 受众解析，返回命中的接收者 ID，按 ID 升序
type Service interface {
	FindRecipientIDs(ctx context.Context, orgID, audienceID int64) ([]int64, error)
}

type service struct {
	repo          repository.AudienceRepository
	recipientRepo repository.RecipientRepository
	compiler      *Compiler
}

func NewService(repo repository.AudienceRepository, recipientRepo repository.RecipientRepository, compiler *Compiler) Service {
	return &service{repo: repo, recipientRepo: recipientRepo, compiler: compiler}
}

// FindRecipientIDs 受众不存在时返回 errs.ErrAudienceNotFound
func (s *service) FindRecipientIDs(ctx context.Context, orgID, audienceID int64) ([]int64, error) {
	a, err := s.repo.FindByID(ctx, orgID, audienceID)
	if err != nil {
		return nil, err
	}
	return s.recipientRepo.FindIDsByQuery(ctx, orgID, s.compiler.Compile(a.Filters))
}
