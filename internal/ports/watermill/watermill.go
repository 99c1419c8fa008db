package watermill

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/ThreeDotsLabs/watermill/message"

	mailevent "gitlab.com/insightbox/insightbox-backend/internal/application/mail/event"
	"gitlab.com/insightbox/insightbox-backend/pkg/watermillx"
)

type Port struct {
	eventProcessor *cqrs.EventProcessor
}

type AppEventHandlers struct {
	Mail *mailevent.MailEventHandler
}

// NewPort attaches an event processor to router. subscribers decides where events
// come from: the postgres outbox or the in-process channel the mongo repo publishes to.
func NewPort(router *message.Router, subscribers watermillx.SubscriberFactory, wlogger watermill.LoggerAdapter) (*Port, error) {
	eventProcessor, err := watermillx.NewEventProcessor(router, subscribers, wlogger)
	if err != nil {
		return nil, fmt.Errorf("failed to create event processor: %w", err)
	}

	return &Port{eventProcessor: eventProcessor}, nil
}

// Register adds the handlers to the router. It must be called before the router runs.
func (p *Port) Register(handlers AppEventHandlers) error {
	if handlers.Mail == nil {
		return fmt.Errorf("mail event handler is nil")
	}

	err := p.eventProcessor.AddHandlers(
		cqrs.NewEventHandler("MailOnAccountVerified", handlers.Mail.HandleAccountVerified),
	)
	if err != nil {
		return fmt.Errorf("failed to add event handlers: %w", err)
	}

	return nil
}
