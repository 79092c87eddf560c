// Package notify is the surface where foreground-action failures become
// user-visible. The presentation layer plugs in its own Notifier; the
// default just logs.
package notify

import "go.uber.org/zap"

// Level classifies a notification.
type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Notifier receives transient user-visible notifications.
type Notifier interface {
	Notify(level Level, text string)
}

// LogNotifier writes notifications to the log.
type LogNotifier struct {
	Log *zap.Logger
}

// Notify implements Notifier.
func (n LogNotifier) Notify(level Level, text string) {
	if level == LevelError {
		n.Log.Error("notification", zap.String("text", text))
		return
	}
	n.Log.Info("notification", zap.String("text", text))
}
