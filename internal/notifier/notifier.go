// Package notifier delivers post-transaction SMS messages.
package notifier

import (
	"context"
	"log"
)

// SendResult is the provider's answer to a send request
type SendResult struct {
	Success      bool
	ID           string
	ErrorMessage string
}

// Notifier sends a message to a destination phone number. A returned error
// means the call itself failed; a provider rejection is reported through
// SendResult with Success false.
type Notifier interface {
	Send(ctx context.Context, destination, message string) (SendResult, error)
}

// LogNotifier writes messages to the process log instead of sending them.
type LogNotifier struct{}

func (LogNotifier) Send(_ context.Context, destination, message string) (SendResult, error) {
	log.Printf("sms to %s: %s", destination, message)
	return SendResult{Success: true, ID: "log"}, nil
}
