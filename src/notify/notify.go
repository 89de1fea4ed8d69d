// Package notify surfaces run failures on the desktop for builds that have no
// console attached.
package notify

import (
	"github.com/gen2brain/beeep"
	"go.uber.org/zap"
)

const title = "launcher"

// Notifier delivers a one-line message to the user.
type Notifier interface {
	Notify(message string) error
}

// Desktop shows a native notification.
type Desktop struct{}

func (Desktop) Notify(message string) error {
	return beeep.Notify(title, message, "")
}

// Nop drops every message.
type Nop struct{}

func (Nop) Notify(string) error { return nil }

// Failure tells the user a run failed. Delivery problems are only logged.
func Failure(n Notifier, logger *zap.Logger, err error) {
	if n == nil || err == nil {
		return
	}
	if nerr := n.Notify("[error] " + err.Error()); nerr != nil && logger != nil {
		logger.Warn("desktop notification failed", zap.Error(nerr))
	}
}
