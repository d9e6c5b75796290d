// Package contact holds the contact form controller: the editable message,
// its submission to the backend and the resulting sent/alert flags.
package contact

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hoodiewala/storefront/internal/domain"
	"github.com/hoodiewala/storefront/pkg/tracing"
	"github.com/hoodiewala/storefront/pkg/validator"
)

// AlertMessage is the blocking alert shown when a submission fails.
const AlertMessage = "Could not send message. Please try later."

// DefaultTimeout bounds a single submission.
const DefaultTimeout = 10 * time.Second

var (
	// ErrSubmitInFlight is returned by Submit while a previous submission is pending.
	ErrSubmitInFlight = errors.New("contact submission already in flight")
	// ErrSubmitFailed wraps the backend or transport error of a failed submission.
	ErrSubmitFailed = errors.New("contact submission failed")
	// ErrClosed is returned once the form has been torn down.
	ErrClosed = errors.New("contact form closed")
)

// Sender delivers a contact message to the backend.
type Sender interface {
	SendContact(ctx context.Context, msg domain.ContactMessage) error
}

// View is an immutable snapshot of the form.
type View struct {
	Message domain.ContactMessage `json:"message"`
	Pending bool                  `json:"pending"`
	Sent    bool                  `json:"sent"`
	Alert   string                `json:"alert,omitempty"`
}

// SentObserver is told about every successfully delivered message.
type SentObserver func(ctx context.Context, msg domain.ContactMessage)

// Option configures a Form.
type Option func(*Form)

// WithTimeout bounds each submission.
func WithTimeout(d time.Duration) Option {
	return func(f *Form) { f.timeout = d }
}

// WithSentObserver registers fn to run after each successful submission.
func WithSentObserver(fn SentObserver) Option {
	return func(f *Form) { f.onSent = fn }
}

// Form is the contact form controller of one page activation.
type Form struct {
	sender  Sender
	logger  *slog.Logger
	timeout time.Duration
	onSent  SentObserver

	mu     sync.Mutex
	view   View
	closed bool
	cancel context.CancelFunc
}

// NewForm returns an idle form with an empty message.
func NewForm(sender Sender, logger *slog.Logger, opts ...Option) *Form {
	f := &Form{
		sender:  sender,
		logger:  logger,
		timeout: DefaultTimeout,
		view:    View{Message: domain.EmptyContactMessage()},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Restore rebuilds a form from a persisted view. A submission that was still
// pending when the view was saved has an unknown outcome and is reported as
// failed, keeping the message.
func Restore(v View, sender Sender, logger *slog.Logger, opts ...Option) *Form {
	f := NewForm(sender, logger, opts...)
	if v.Pending {
		v.Pending = false
		v.Sent = false
		v.Alert = AlertMessage
	}
	f.view = v
	return f
}

// View returns the current snapshot.
func (f *Form) View() View {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.view
}

// UpdateField replaces one field of the message. No validation happens here.
func (f *Form) UpdateField(field domain.Field, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	msg, err := f.view.Message.With(field, value)
	if err != nil {
		return err
	}
	f.view.Message = msg
	return nil
}

// DismissAlert clears the failure alert after the visitor acknowledged it.
func (f *Form) DismissAlert() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.view.Alert = ""
}

// Submit validates the message and sends it once. A *validator.ValidationError
// means nothing was sent. On success the message is cleared and Sent is set;
// on failure the message is kept, Alert is set and the returned error wraps
// ErrSubmitFailed.
func (f *Form) Submit(ctx context.Context) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	if f.view.Pending {
		f.mu.Unlock()
		submissionsTotal.WithLabelValues(outcomeInFlight).Inc()
		return ErrSubmitInFlight
	}
	msg := f.view.Message
	if err := validator.Validate(msg); err != nil {
		f.mu.Unlock()
		submissionsTotal.WithLabelValues(outcomeInvalid).Inc()
		return err
	}

	f.view.Sent = false
	f.view.Alert = ""
	f.view.Pending = true
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.timeout)
	f.cancel = cancel
	f.mu.Unlock()
	defer cancel()

	err := f.send(sendCtx, msg)

	f.mu.Lock()
	f.view.Pending = false
	f.cancel = nil
	if f.closed {
		f.mu.Unlock()
		f.logger.DebugContext(ctx, "contact result discarded after close")
		return ErrClosed
	}
	if err != nil {
		f.view.Alert = AlertMessage
		f.mu.Unlock()
		submissionsTotal.WithLabelValues(outcomeFailed).Inc()
		f.logger.WarnContext(ctx, "contact submission failed", slog.String("error", err.Error()))
		return fmt.Errorf("%w: %w", ErrSubmitFailed, err)
	}
	f.view.Sent = true
	f.view.Message = domain.EmptyContactMessage()
	f.mu.Unlock()

	submissionsTotal.WithLabelValues(outcomeSent).Inc()
	f.logger.InfoContext(ctx, "contact message sent", slog.String("email_domain", msg.EmailDomain()))
	if f.onSent != nil {
		f.onSent(ctx, msg)
	}
	return nil
}

func (f *Form) send(ctx context.Context, msg domain.ContactMessage) error {
	ctx, span := tracing.Start(ctx, "contact", "submit")
	defer span.End()

	err := f.sender.SendContact(ctx, msg)
	if err != nil {
		tracing.Fail(span, err, "contact delivery failed")
	}
	return err
}

// Close tears the form down and cancels an in-flight submission.
func (f *Form) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	if f.cancel != nil {
		f.cancel()
	}
}
