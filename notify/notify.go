// Package notify is the user-facing notification surface of the CLIs,
// the terminal counterpart of a toast widget.
package notify

import "github.com/apex/log"

// Notifier receives user-facing messages at three severities.
type Notifier interface {
	Success(msg string)
	Info(msg string)
	Error(msg string)
}

type logNotifier struct{}

// Log returns a Notifier that writes through apex/log.
func Log() Notifier { return logNotifier{} }

func (logNotifier) Success(msg string) { log.Infof("%s", msg) }
func (logNotifier) Info(msg string)    { log.Infof("%s", msg) }
func (logNotifier) Error(msg string)   { log.Errorf("%s", msg) }

type discard struct{}

// Discard returns a Notifier that drops every message.
func Discard() Notifier { return discard{} }

func (discard) Success(string) {}
func (discard) Info(string)    {}
func (discard) Error(string)   {}
