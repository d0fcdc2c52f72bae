// Package notify delivers newly granted achievements to interested parties.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/pkg/logger"
	"github.com/okian/arena/pkg/metrics"
)

// Notifier is satisfied by every sink in this package and by ws.Hub.
type Notifier interface {
	Notify(ctx context.Context, userID string, achievements []model.Achievement) error
}

// Message is the payload pushed to clients.
type Message struct {
	Type         string              `json:"type"`
	UserID       string              `json:"userId"`
	Achievements []model.Achievement `json:"achievements"`
	SentAt       time.Time           `json:"sentAt"`
}

// MessageType tags achievement messages.
const MessageType = "achievements.granted"

// NewMessage builds the payload for userID.
func NewMessage(userID string, achievements []model.Achievement) Message {
	return Message{
		Type:         MessageType,
		UserID:       userID,
		Achievements: achievements,
		SentAt:       time.Now().UTC(),
	}
}

// LogNotifier writes each grant to the log.
type LogNotifier struct {
	logger logger.Logger
}

// NewLogNotifier returns a LogNotifier writing to l.
func NewLogNotifier(l logger.Logger) *LogNotifier {
	if l == nil {
		l = logger.Nop()
	}
	return &LogNotifier{logger: l}
}

func (n *LogNotifier) Notify(ctx context.Context, userID string, achievements []model.Achievement) error {
	for _, a := range achievements {
		n.logger.Info(ctx, "achievement unlocked",
			logger.String("user", userID),
			logger.String("achievement", a.ID),
			logger.String("title", a.Title),
		)
	}
	metrics.RecordNotification("log", "ok")
	return nil
}

// Multi fans a notification out to every sink. All sinks are tried; their
// errors are joined.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, userID string, achievements []model.Achievement) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, userID, achievements); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
