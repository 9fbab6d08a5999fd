package telegram

import (
	"context"
	"errors"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gotd/td/tgerr"

	"github.com/Aryan-cloud-arch/LOGGING-ALL-THE-CHATS/pkg/mirror"
)

// mtprotoError wraps an error from the user-account client as a TransportError.
func mtprotoError(op string, err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return err
	}
	te := &mirror.TransportError{Op: op, Err: err}
	if wait, ok := tgerr.AsFloodWait(err); ok {
		te.RetryAfter = wait
	} else if rpcErr, ok := tgerr.As(err); ok {
		te.Permanent = rpcErr.Code == http.StatusBadRequest ||
			rpcErr.Code == http.StatusUnauthorized ||
			rpcErr.Code == http.StatusForbidden
	}
	return te
}

// botError wraps an error from the Bot API as a TransportError.
func botError(op string, err error) error {
	if err == nil {
		return nil
	}
	te := &mirror.TransportError{Op: op, Err: err}
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.RetryAfter > 0:
			te.RetryAfter = time.Duration(apiErr.RetryAfter) * time.Second
		case apiErr.Code == http.StatusBadRequest,
			apiErr.Code == http.StatusUnauthorized,
			apiErr.Code == http.StatusForbidden,
			apiErr.Code == http.StatusRequestEntityTooLarge:
			te.Permanent = true
		}
	}
	return te
}
