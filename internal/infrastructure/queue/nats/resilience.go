package nats

import (
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/cottonlog/internal/infrastructure/resilience"
)

func classifyNATSError(err error) resilience.ErrorClassification {
	return resilience.Classify(err, func(err error) (resilience.ErrorClassification, bool) {
		switch {
		case errors.Is(err, nats.ErrNoServers),
			errors.Is(err, nats.ErrTimeout),
			errors.Is(err, nats.ErrConnectionClosed),
			errors.Is(err, nats.ErrDisconnected),
			errors.Is(err, nats.ErrConnectionReconnecting):
			return resilience.Transient, true
		case errors.Is(err, nats.ErrMaxPayload), errors.Is(err, nats.ErrBadSubject):
			return resilience.Ignored, true
		default:
			return resilience.ErrorClassification{}, false
		}
	})
}
