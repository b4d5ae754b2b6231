package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("connection reset by peer"), true},
		{"permanent", Permanent(errors.New("bad json")), false},
		{"wrapped permanent", fmt.Errorf("geocode: %w", Permanent(errors.New("bad json"))), false},
		{"canceled", fmt.Errorf("fetch: %w", context.Canceled), false},
		{"deadline", context.DeadlineExceeded, false},
		{"429", &StatusError{Service: "overpass", StatusCode: 429}, true},
		{"504", &StatusError{Service: "overpass", StatusCode: 504}, true},
		{"404", &StatusError{Service: "overpass", StatusCode: 404}, false},
		{"wrapped 503", fmt.Errorf("x: %w", &StatusError{StatusCode: 503}), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Retryable(tt.err); got != tt.want {
				t.Errorf("Retryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestPermanent_Nil(t *testing.T) {
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) should be nil")
	}
}

func TestPermanent_Unwrap(t *testing.T) {
	base := errors.New("base")
	if !errors.Is(Permanent(base), base) {
		t.Error("Permanent should unwrap to the original error")
	}
}

func TestStatusError_Message(t *testing.T) {
	e := &StatusError{Service: "nominatim", StatusCode: 502, Body: "bad gateway"}
	if e.Error() != "nominatim: unexpected status 502: bad gateway" {
		t.Errorf("unexpected message %q", e.Error())
	}
	e.Body = ""
	if e.Error() != "nominatim: unexpected status 502" {
		t.Errorf("unexpected message %q", e.Error())
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		if !IsTransientHTTPStatus(code) {
			t.Errorf("%d should be transient", code)
		}
	}
	for _, code := range []int{200, 400, 401, 403, 404, 422} {
		if IsTransientHTTPStatus(code) {
			t.Errorf("%d should not be transient", code)
		}
	}
}
