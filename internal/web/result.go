package web

import (
	"errors"
	"net/http"

	"gitee.com/flycash/broadcast-platform/internal/errs"
	"github.com/gin-gonic/gin"
	"github.com/gotomicro/ego/core/elog"
)

// 业务错误码，0 表示成功
const (
	CodeOK             = 0
	CodeInvalidParam   = 400001
	CodeUnauthorized   = 401001
	CodeNotFound       = 404001
	CodeNotEditable    = 409001
	CodeEnqueueFailed  = 500002
	CodeInternalServer = 500001
)

type Result struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data any    `json:"data"`
}

func OK(ctx *gin.Context, data any) {
	ctx.JSON(http.StatusOK, Result{Code: CodeOK, Msg: "OK", Data: data})
}

// Error 按错误类型映射 HTTP 状态码
func Error(ctx *gin.Context, err error) {
	status, code := http.StatusInternalServerError, CodeInternalServer
	switch {
	case errors.Is(err, errs.ErrInvalidParameter):
		status, code = http.StatusBadRequest, CodeInvalidParam
	case errors.Is(err, errs.ErrUnauthorized):
		status, code = http.StatusUnauthorized, CodeUnauthorized
	case errors.Is(err, errs.ErrBroadcastNotFound),
		errors.Is(err, errs.ErrNotificationNotFound),
		errors.Is(err, errs.ErrRecipientNotFound):
		status, code = http.StatusNotFound, CodeNotFound
	case errors.Is(err, errs.ErrBroadcastNotEditable):
		status, code = http.StatusConflict, CodeNotEditable
	case errors.Is(err, errs.ErrEnqueueFailed):
		code = CodeEnqueueFailed
	}
	if code == CodeInternalServer {
		elog.DefaultLogger.Error("请求处理失败",
			elog.String("path", ctx.FullPath()),
			elog.FieldErr(err))
		ctx.AbortWithStatusJSON(status, Result{Code: code, Msg: "系统错误"})
		return
	}
	if code == CodeEnqueueFailed {
		ctx.AbortWithStatusJSON(status, Result{Code: code, Msg: errs.ErrEnqueueFailed.Error()})
		return
	}
	ctx.AbortWithStatusJSON(status, Result{Code: code, Msg: err.Error()})
}
