// Package notify implements the single-slot notification channel. A session
// has at most one pending notification; a new one replaces it immediately
// and anything older than the TTL is dropped unread.
package notify

import (
	"context"
	"time"

	"github.com/mshuvalov/storefront/internal/session"
)

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

// TTL matches the banner auto-dismiss timeout.
const TTL = 5 * time.Second

type Notification struct {
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// Observer counts sent notifications. Nil disables counting.
type Observer interface {
	NotificationSent()
}

type Center struct {
	Sessions *session.Store
	Observer Observer

	// now is swappable in tests.
	now func() time.Time
}

func NewCenter(sessions *session.Store, observer Observer) *Center {
	return &Center{Sessions: sessions, Observer: observer, now: time.Now}
}

// Notify sets the session's notification slot, replacing whatever is there.
// Last write wins; there is no backlog.
func (c *Center) Notify(ctx context.Context, sessionID, message string, severity Severity) error {
	if severity == "" {
		severity = SeveritySuccess
	}
	rec, err := c.Sessions.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	rec.FlashMessage = message
	rec.FlashSeverity = string(severity)
	rec.FlashExpiresAt = c.now().Add(TTL).UnixMilli()
	if err := c.Sessions.Save(ctx, rec); err != nil {
		return err
	}
	if c.Observer != nil {
		c.Observer.NotificationSent()
	}
	return nil
}

// Pop reads and clears the pending notification. Expired slots return nil
// exactly like empty ones.
func (c *Center) Pop(ctx context.Context, sessionID string) (*Notification, error) {
	rec, err := c.Sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if rec.FlashMessage == "" {
		return nil, nil
	}

	n := &Notification{Message: rec.FlashMessage, Severity: Severity(rec.FlashSeverity)}
	expired := c.now().UnixMilli() > rec.FlashExpiresAt

	rec.FlashMessage = ""
	rec.FlashSeverity = ""
	rec.FlashExpiresAt = 0
	if err := c.Sessions.Save(ctx, rec); err != nil {
		return nil, err
	}

	if expired {
		return nil, nil
	}
	return n, nil
}
