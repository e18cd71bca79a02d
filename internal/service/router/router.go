package router

import (
	"context"

	"gitee.com/flycash/broadcast-platform/internal/domain"
	"gitee.com/flycash/broadcast-platform/internal/repository"
)

// Plan 一个接收者的投递计划，NotSent 直接写入账本，不进入队列
type Plan struct {
	Tasks   []domain.DeliveryTask
	NotSent []domain.Delivery
}

// Router 按接收者偏好和联系方式把广播拆成投递任务
type Router struct {
	prefRepo repository.PreferenceRepository
}

func NewRouter(prefRepo repository.PreferenceRepository) *Router {
	return &Router{prefRepo: prefRepo}
}

func (r *Router) Route(ctx context.Context, b domain.Broadcast, n domain.Notification, recipient domain.Recipient) (Plan, error) {
	enabled := func(domain.Channel) bool { return true }
	if b.Category != "" {
		pref, found, err := r.prefRepo.FindPreference(ctx, b.OrgID, recipient.ID, b.Category)
		if err != nil {
			return Plan{}, err
		}
		if found {
			enabled = pref.Enabled
		}
	}

	var plan Plan
	base := domain.DeliveryTask{
		OrgID:          b.OrgID,
		BroadcastID:    b.ID,
		NotificationID: n.ID,
		RecipientID:    recipient.ID,
	}
	for _, c := range b.RequestedChannels() {
		task := base
		task.Channel = c
		if !enabled(c) {
			plan.notSent(task, domain.ReasonUserDisabled)
			continue
		}
		switch c {
		case domain.ChannelSMS:
			if recipient.Phone == "" {
				plan.notSent(task, domain.ReasonNoPhone)
				continue
			}
		case domain.ChannelEmail:
			if recipient.Email == "" {
				plan.notSent(task, domain.ReasonNoEmail)
				continue
			}
		case domain.ChannelPush:
			if len(recipient.Devices) == 0 {
				plan.notSent(task, domain.ReasonNoDevice)
				continue
			}
			// 每个设备一个任务
			for _, d := range recipient.Devices {
				t := task
				t.DeviceID = d.ID
				t.Platform = d.Platform
				plan.Tasks = append(plan.Tasks, t)
			}
			continue
		}
		plan.Tasks = append(plan.Tasks, task)
	}
	return plan, nil
}

func (p *Plan) notSent(task domain.DeliveryTask, reason string) {
	d := task.NotSent(reason)
	d.Counted = true
	p.NotSent = append(p.NotSent, d)
}
