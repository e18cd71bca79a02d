package web

import (
	"fmt"
	"strconv"

	"gitee.com/flycash/broadcast-platform/internal/errs"
	"github.com/gin-gonic/gin"
)

const (
	defaultLimit = 10
	maxLimit     = 100
)

func PathID(ctx *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: id = %s", errs.ErrInvalidParameter, ctx.Param("id"))
	}
	return id, nil
}

// Page 解析 offset 和 limit，limit 默认 10，最大 100
func Page(ctx *gin.Context) (offset, limit int, err error) {
	offset, err = strconv.Atoi(ctx.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		return 0, 0, fmt.Errorf("%w: offset = %s", errs.ErrInvalidParameter, ctx.Query("offset"))
	}
	limit, err = strconv.Atoi(ctx.DefaultQuery("limit", strconv.Itoa(defaultLimit)))
	if err != nil || limit <= 0 {
		return 0, 0, fmt.Errorf("%w: limit = %s", errs.ErrInvalidParameter, ctx.Query("limit"))
	}
	return offset, min(limit, maxLimit), nil
}
