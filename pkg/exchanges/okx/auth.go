package okx

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// Credentials for the private channel.
type Credentials struct {
	APIKey     string
	SecretKey  string
	Passphrase string
}

// AuthError is a login rejection reported by the exchange.
type AuthError struct {
	Code string
	Msg  string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("okx login rejected: code=%s msg=%s", e.Code, e.Msg)
}

var (
	// ErrClosedDuringAuth means the channel failed before a login verdict arrived.
	ErrClosedDuringAuth = errors.New("okx: channel closed during login")
	// ErrAuthTimeout means no login verdict arrived within the deadline.
	ErrAuthTimeout = errors.New("okx: login timed out")
)

// DefaultAuthTimeout bounds Login when the caller passes zero.
const DefaultAuthTimeout = 10 * time.Second

var authLog = logrus.WithField("component", "okx-auth")

// Login sends the login op on ch and waits for its verdict. Frames that
// are neither the login result nor an error event are skipped with a
// warning. The read
// deadline is cleared again on success.
func Login(ctx context.Context, ch Conn, creds Credentials, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultAuthTimeout
	}

	payload, err := EncodeLogin(creds, LoginTimestamp(time.Now()))
	if err != nil {
		return fmt.Errorf("encode login: %w", err)
	}
	if err := ch.WriteText(payload); err != nil {
		return fmt.Errorf("%w: %v", ErrClosedDuringAuth, err)
	}

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := ch.SetReadDeadline(deadline); err != nil {
		return fmt.Errorf("%w: %v", ErrClosedDuringAuth, err)
	}
	// Cancellation interrupts the blocked read.
	stop := context.AfterFunc(ctx, func() { _ = ch.SetReadDeadline(time.Now()) })
	defer stop()

	for {
		raw, err := ch.ReadFrame()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if isTimeout(err) {
				return ErrAuthTimeout
			}
			return fmt.Errorf("%w: %v", ErrClosedDuringAuth, err)
		}

		env, err := Decode(raw)
		if err != nil {
			authLog.WithError(err).Warn("discarding undecodable frame during login")
			continue
		}
		if env.Kind == KindPong {
			continue
		}
		if env.Kind != KindEvent {
			authLog.WithField("kind", env.Kind).Warn("discarding frame during login")
			continue
		}
		switch env.Event.Event {
		case "login":
			if env.Event.Code != "" && env.Event.Code != "0" {
				return &AuthError{Code: env.Event.Code, Msg: env.Event.Msg}
			}
			if err := ch.SetReadDeadline(time.Time{}); err != nil {
				return fmt.Errorf("%w: %v", ErrClosedDuringAuth, err)
			}
			authLog.WithField("connId", env.Event.ConnID).Info("login accepted")
			return nil
		case "error":
			return &AuthError{Code: env.Event.Code, Msg: env.Event.Msg}
		default:
			authLog.WithField("event", env.Event.Event).Warn("discarding frame during login")
		}
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
