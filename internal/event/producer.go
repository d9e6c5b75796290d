package event

import (
	"context"
	"fmt"
	"log/slog"

	pkgkafka "github.com/hoodiewala/storefront/pkg/kafka"
)

// Kafka topics for storefront events.
var (
	TopicCatalogLoaded = pkgkafka.Topic("catalog", "loaded")
	TopicCatalogFailed = pkgkafka.Topic("catalog", "failed")
	TopicContactSent   = pkgkafka.Topic("contact", "sent")
)

// Event types carried in the envelope.
const (
	TypeCatalogLoaded = "catalog.loaded"
	TypeCatalogFailed = "catalog.failed"
	TypeContactSent   = "contact.sent"
)

// AggregateTypeSession marks every storefront event as belonging to a page activation.
const AggregateTypeSession = "session"

// SourceStorefront identifies events originating from the storefront.
const SourceStorefront = "storefront"

// CatalogLoadedData is the payload for a catalog.loaded event.
type CatalogLoadedData struct {
	SessionID string `json:"session_id"`
	Count     int    `json:"count"`
}

// CatalogFailedData is the payload for a catalog.failed event.
type CatalogFailedData struct {
	SessionID string `json:"session_id"`
	Reason    string `json:"reason"`
}

// ContactSentData is the payload for a contact.sent event. Only the email
// domain leaves the storefront.
type ContactSentData struct {
	SessionID   string `json:"session_id"`
	EmailDomain string `json:"email_domain,omitempty"`
	HasPhone    bool   `json:"has_phone"`
}

// Publisher receives storefront events. Implementations must not block the
// caller for long and never affect UI state.
type Publisher interface {
	CatalogLoaded(ctx context.Context, sessionID string, count int) error
	CatalogFailed(ctx context.Context, sessionID, reason string) error
	ContactSent(ctx context.Context, sessionID, emailDomain string, hasPhone bool) error
}

// kafkaPublisher is the subset of *pkgkafka.Producer used here.
type kafkaPublisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes storefront events to Kafka.
type Producer struct {
	kafka  kafkaPublisher
	logger *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(kafka kafkaPublisher, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// CatalogLoaded publishes a catalog.loaded event.
func (p *Producer) CatalogLoaded(ctx context.Context, sessionID string, count int) error {
	return p.publish(ctx, TopicCatalogLoaded, TypeCatalogLoaded, sessionID, CatalogLoadedData{
		SessionID: sessionID,
		Count:     count,
	})
}

// CatalogFailed publishes a catalog.failed event.
func (p *Producer) CatalogFailed(ctx context.Context, sessionID, reason string) error {
	return p.publish(ctx, TopicCatalogFailed, TypeCatalogFailed, sessionID, CatalogFailedData{
		SessionID: sessionID,
		Reason:    reason,
	})
}

// ContactSent publishes a contact.sent event.
func (p *Producer) ContactSent(ctx context.Context, sessionID, emailDomain string, hasPhone bool) error {
	return p.publish(ctx, TopicContactSent, TypeContactSent, sessionID, ContactSentData{
		SessionID:   sessionID,
		EmailDomain: emailDomain,
		HasPhone:    hasPhone,
	})
}

func (p *Producer) publish(ctx context.Context, topic, eventType, sessionID string, data any) error {
	event, err := pkgkafka.NewEvent(eventType, sessionID, AggregateTypeSession, SourceStorefront, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", eventType, err)
	}
	event.WithContext(ctx)

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", eventType, err)
	}

	p.logger.DebugContext(ctx, "published storefront event",
		slog.String("event_type", eventType),
		slog.String("session_id", sessionID),
	)
	return nil
}

// NopPublisher drops every event. It is used when EVENTS_ENABLED is false.
type NopPublisher struct{}

func (NopPublisher) CatalogLoaded(context.Context, string, int) error { return nil }

func (NopPublisher) CatalogFailed(context.Context, string, string) error { return nil }

func (NopPublisher) ContactSent(context.Context, string, string, bool) error { return nil }
