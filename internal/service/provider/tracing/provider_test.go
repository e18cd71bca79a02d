package tracing

import (
	"context"
	"errors"
	"testing"

	"gitee.com/flycash/broadcast-platform/internal/domain"
	providermocks "gitee.com/flycash/broadcast-platform/internal/service/provider/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/mock/gomock"
)

func TestProvider_Send(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter)))

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mockProvider := providermocks.NewMockProvider(ctrl)
	msg := domain.Message{
		OrgID:          1,
		NotificationID: 100,
		Channel:        domain.ChannelSMS,
		Provider:       domain.ProviderConfig{Vendor: domain.VendorAliyun},
	}
	gomock.InOrder(
		mockProvider.EXPECT().Send(gomock.Any(), msg).
			Return(domain.SendResult{Outcome: domain.SendOutcomeDelivered, MessageID: "m1"}, nil),
		mockProvider.EXPECT().Send(gomock.Any(), msg).
			Return(domain.SendResult{}, errors.New("超时")),
	)
	p := NewProvider(mockProvider)

	_, err := p.Send(context.Background(), msg)
	require.NoError(t, err)
	_, err = p.Send(context.Background(), msg)
	require.Error(t, err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "Provider.Send", spans[0].Name)
	assert.Contains(t, spans[0].Attributes, attribute.String("notification.id", "100"))
	assert.Contains(t, spans[0].Attributes, attribute.String("delivery.message_id", "m1"))
	assert.Equal(t, codes.Error, spans[1].Status.Code)
}
