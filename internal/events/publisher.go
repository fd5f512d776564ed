// Package events publishes extraction and profile lifecycle events over
// NATS for downstream consumers. Entirely optional: a nil Publisher is
// valid and publishes nothing.
package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Subjects emitted by the service.
const (
	SubjectExtractionStarted   = "lifeboat.extraction.started"
	SubjectExtractionCompleted = "lifeboat.extraction.completed"
	SubjectExtractionFailed    = "lifeboat.extraction.failed"
	SubjectProfileSaved        = "lifeboat.profile.saved"
	SubjectProfileDeleted      = "lifeboat.profile.deleted"
)

type Publisher struct {
	conn   *nats.Conn
	logger *slog.Logger
}

// Connect dials NATS with retry-friendly options. Returns an error only
// when the initial connect fails outright.
func Connect(url, token string, logger *slog.Logger) (*Publisher, error) {
	opts := []nats.Option{
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &Publisher{conn: nc, logger: logger}, nil
}

// Publish sends a JSON payload on subject. Nil-safe; publish failures are
// logged, never surfaced; lifecycle events are best-effort.
func (p *Publisher) Publish(subject string, data any) {
	if p == nil {
		return
	}
	payload, err := json.Marshal(data)
	if err != nil {
		p.logger.Warn("marshal event payload", "subject", subject, "error", err)
		return
	}
	if err := p.conn.Publish(subject, payload); err != nil {
		p.logger.Warn("publish event", "subject", subject, "error", err)
	}
}

func (p *Publisher) Close() {
	if p == nil {
		return
	}
	p.conn.Close()
}
