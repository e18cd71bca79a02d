package errs

import (
	"errors"
)

// 定义统一的错误类型
var (
	ErrInvalidParameter = errors.New("参数错误")
	ErrUnauthorized     = errors.New("身份校验失败")

	ErrBroadcastNotFound    = errors.New("广播记录不存在")
	ErrBroadcastDuplicate   = errors.New("广播幂等键冲突")
	ErrBroadcastNotEditable = errors.New("广播已经开始处理，无法取消或者修改")
	ErrEnqueueFailed        = errors.New("任务入队失败")

	ErrNotificationNotFound = errors.New("通知记录不存在")
	ErrDuplicateKey         = errors.New("唯一索引冲突")

	ErrOrganizationNotFound = errors.New("组织不存在")
	ErrRecipientNotFound    = errors.New("接收者不存在")
	ErrAudienceNotFound     = errors.New("受众不存在")
	ErrDeviceNotFound       = errors.New("设备不存在")

	ErrProviderNotConfigured = errors.New("渠道没有配置可用的供应商")
	// ErrProviderTransient 网络错误、限流、5xx，可以重试
	ErrProviderTransient = errors.New("供应商临时错误")
	// ErrProviderPermanent 凭证错误、接收者被拒绝等，重试没有意义
	ErrProviderPermanent = errors.New("供应商永久错误")
)
