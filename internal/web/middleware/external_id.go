package middleware

import (
	"fmt"

	"gitee.com/flycash/broadcast-platform/internal/errs"
	"gitee.com/flycash/broadcast-platform/internal/pkg/crypto"
	"gitee.com/flycash/broadcast-platform/internal/repository"
	"gitee.com/flycash/broadcast-platform/internal/web"
	"github.com/gin-gonic/gin"
	"github.com/gotomicro/ego/core/elog"
)

const (
	HeaderExternalID     = "X-External-Id"
	HeaderExternalIDHmac = "X-External-Id-Hmac"
)

// ExternalIDBuilder 校验终端用户的身份，签名是用组织的 api secret 对 external id 做的 HMAC-SHA256
type ExternalIDBuilder struct {
	orgRepo repository.OrganizationRepository
	logger  *elog.Component
}

func NewExternalIDBuilder(orgRepo repository.OrganizationRepository) *ExternalIDBuilder {
	return &ExternalIDBuilder{
		orgRepo: orgRepo,
		logger:  elog.DefaultLogger,
	}
}

func (b *ExternalIDBuilder) Build() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		orgID := OrgID(ctx)
		externalID := ctx.GetHeader(HeaderExternalID)
		signature := ctx.GetHeader(HeaderExternalIDHmac)
		if externalID == "" {
			web.Error(ctx, fmt.Errorf("%w: 缺少 %s", errs.ErrUnauthorized, HeaderExternalID))
			return
		}
		if signature == "" {
			web.Error(ctx, fmt.Errorf("%w: 缺少 %s", errs.ErrUnauthorized, HeaderExternalIDHmac))
			return
		}
		org, err := b.orgRepo.FindByID(ctx.Request.Context(), orgID)
		if err != nil {
			web.Error(ctx, fmt.Errorf("%w: %w", errs.ErrUnauthorized, err))
			return
		}
		if !crypto.Verify(org.APISecret, externalID, signature) {
			b.logger.Debug("external id 签名错误", elog.Int64("orgID", orgID))
			web.Error(ctx, fmt.Errorf("%w: %s 非法", errs.ErrUnauthorized, HeaderExternalIDHmac))
			return
		}
		ctx.Set(ExternalIDName, externalID)
		ctx.Next()
	}
}

func ExternalID(ctx *gin.Context) string {
	return ctx.GetString(ExternalIDName)
}
