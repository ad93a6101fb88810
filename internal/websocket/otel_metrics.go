package websocket

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "ferroci.websocket"

// OTelMetrics records hub activity. A nil *OTelMetrics records nothing.
type OTelMetrics struct {
	connectionsTotal  metric.Int64Counter
	connectionsActive metric.Int64UpDownCounter
	messagesTotal     metric.Int64Counter
	messageBytes      metric.Int64Counter
	droppedClients    metric.Int64Counter
}

// NewOTelMetrics creates the instruments on meter, or on the global meter
// provider when meter is nil
func NewOTelMetrics(meter metric.Meter) (*OTelMetrics, error) {
	if meter == nil {
		meter = otel.Meter(meterName)
	}

	connectionsTotal, err := meter.Int64Counter(
		"websocket_connections_total",
		metric.WithDescription("Total number of WebSocket connections"),
	)
	if err != nil {
		return nil, err
	}

	connectionsActive, err := meter.Int64UpDownCounter(
		"websocket_connections_active",
		metric.WithDescription("Number of active WebSocket connections"),
	)
	if err != nil {
		return nil, err
	}

	messagesTotal, err := meter.Int64Counter(
		"websocket_messages_total",
		metric.WithDescription("Total number of WebSocket messages"),
	)
	if err != nil {
		return nil, err
	}

	messageBytes, err := meter.Int64Counter(
		"websocket_message_bytes_total",
		metric.WithDescription("Total bytes written to WebSocket clients"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	droppedClients, err := meter.Int64Counter(
		"websocket_dropped_clients_total",
		metric.WithDescription("Clients disconnected because their send buffer was full"),
	)
	if err != nil {
		return nil, err
	}

	return &OTelMetrics{
		connectionsTotal:  connectionsTotal,
		connectionsActive: connectionsActive,
		messagesTotal:     messagesTotal,
		messageBytes:      messageBytes,
		droppedClients:    droppedClients,
	}, nil
}

func (m *OTelMetrics) recordConnect(ctx context.Context) {
	if m == nil {
		return
	}
	m.connectionsTotal.Add(ctx, 1)
	m.connectionsActive.Add(ctx, 1)
}

func (m *OTelMetrics) recordDisconnect(ctx context.Context) {
	if m == nil {
		return
	}
	m.connectionsActive.Add(ctx, -1)
}

func (m *OTelMetrics) recordBroadcast(ctx context.Context, msgType string) {
	if m == nil {
		return
	}
	m.messagesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("message_type", msgType)))
}

func (m *OTelMetrics) recordSent(ctx context.Context, n int) {
	if m == nil {
		return
	}
	m.messageBytes.Add(ctx, int64(n))
}

func (m *OTelMetrics) recordDropped(ctx context.Context) {
	if m == nil {
		return
	}
	m.droppedClients.Add(ctx, 1)
}
