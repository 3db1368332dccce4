package rpc

import (
	"log/slog"

	"github.com/urlic/licenced/internal/log"
	"github.com/urlic/licenced/internal/protocol"
)

// ResponseBus is the outbound half of the transport the publisher writes to.
type ResponseBus interface {
	Publish(topic string, payload []byte)
}

// Publisher emits correlated responses onto the response topic. Workers call
// it exactly once per request.
type Publisher struct {
	bus    ResponseBus
	topic  string
	logger *slog.Logger
}

func NewPublisher(bus ResponseBus, topic string) *Publisher {
	return &Publisher{
		bus:    bus,
		topic:  topic,
		logger: log.WithComponent("publisher"),
	}
}

// Success publishes a success response. A result that parses as JSON is
// embedded as structured data.
func (p *Publisher) Success(correlationID string, result []byte) {
	p.send(protocol.NewSuccessResponse(correlationID, result))
}

// Failure publishes a failure response carrying the given message.
func (p *Publisher) Failure(correlationID, message string) {
	p.send(protocol.NewErrorResponse(correlationID, message))
}

func (p *Publisher) send(resp *protocol.Response) {
	payload, err := resp.Encode()
	if err != nil {
		p.logger.Error("failed to encode response", "correlation_id", resp.ID, "error", err)
		return
	}
	p.bus.Publish(p.topic, payload)
}
