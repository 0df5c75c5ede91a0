package model

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrUnavailable means the model runtime could not be reached or refused
	// to serve the request.
	ErrUnavailable = errors.New("model runtime unavailable")
	// ErrTimeout means the runtime did not answer before the deadline.
	ErrTimeout = errors.New("model runtime timed out")
)

// classify maps transport failures onto ErrTimeout or ErrUnavailable.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %v", op, ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, err)
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return fmt.Errorf("%s: %w: %v", op, ErrTimeout, err)
	}
	return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
}

// statusError turns a non-2xx runtime response into an error. Server side
// failures and missing models mean the runtime cannot serve us.
func statusError(op string, code int, body string) error {
	if code >= 500 || code == 404 {
		return fmt.Errorf("%s: %w: status %d, body: %s", op, ErrUnavailable, code, body)
	}
	return fmt.Errorf("%s: status %d, body: %s", op, code, body)
}
