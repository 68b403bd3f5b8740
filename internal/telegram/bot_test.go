package telegram

import (
	"errors"
	"fmt"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func TestFloodControlRecognizesPointerErrors(t *testing.T) {
	t.Parallel()

	// The library returns *Error from MakeRequest and Send.
	err := &tgbotapi.Error{
		Code:               429,
		Message:            "Too Many Requests: retry after 3",
		ResponseParameters: tgbotapi.ResponseParameters{RetryAfter: 3},
	}
	if !isTooManyRequests(err) {
		t.Fatalf("pointer error with code 429 must be recognized")
	}
	if got := retryAfter(err); got != 3*time.Second {
		t.Fatalf("expected 3s retry-after, got %v", got)
	}

	wrapped := fmt.Errorf("send message: %w", err)
	if !isTooManyRequests(wrapped) {
		t.Fatalf("wrapped pointer error must be recognized")
	}
	if got := retryAfter(wrapped); got != 3*time.Second {
		t.Fatalf("expected 3s retry-after through wrapping, got %v", got)
	}
}

func TestFloodControlRecognizesValueErrors(t *testing.T) {
	t.Parallel()

	err := tgbotapi.Error{Code: 429, ResponseParameters: tgbotapi.ResponseParameters{RetryAfter: 2}}
	if !isTooManyRequests(err) {
		t.Fatalf("value error with code 429 must be recognized")
	}
	if got := retryAfter(err); got != 2*time.Second {
		t.Fatalf("expected 2s retry-after, got %v", got)
	}
}

func TestFloodControlIgnoresOtherErrors(t *testing.T) {
	t.Parallel()

	if isTooManyRequests(nil) {
		t.Fatalf("nil must not be recognized")
	}
	if isTooManyRequests(errors.New("connection reset")) {
		t.Fatalf("plain errors must not be recognized")
	}
	if isTooManyRequests(&tgbotapi.Error{Code: 400, Message: "Bad Request"}) {
		t.Fatalf("non-429 api errors must not be recognized")
	}
	if got := retryAfter(errors.New("boom")); got != 0 {
		t.Fatalf("expected no retry-after, got %v", got)
	}
}
