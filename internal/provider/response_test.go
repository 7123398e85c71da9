package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/joshuadavidthomas/meteofetch/internal/httpclient"
)

func TestCheckResponse(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{200, nil},
		{204, nil},
		{401, ErrCredentialRejected},
		{403, ErrCredentialRejected},
		{429, ErrRateLimited},
		{500, ErrServer},
		{503, ErrServer},
		{400, ErrUnexpectedStatus},
		{404, ErrUnexpectedStatus},
	}
	for _, tt := range tests {
		err := CheckResponse(&httpclient.Response{StatusCode: tt.status, Body: []byte(`{"reason":"x"}`)}, "meteostat")
		if tt.want == nil {
			if err != nil {
				t.Errorf("%d: unexpected error %v", tt.status, err)
			}
			continue
		}
		if !errors.Is(err, tt.want) {
			t.Errorf("%d: err = %v, want %v", tt.status, err, tt.want)
		}
		var se *StatusError
		if !errors.As(err, &se) || se.StatusCode != tt.status {
			t.Errorf("%d: not a StatusError: %v", tt.status, err)
		}
		if !strings.Contains(err.Error(), "meteostat") {
			t.Errorf("%d: error %q missing provider", tt.status, err)
		}
	}
}

func TestTransient(t *testing.T) {
	status := func(code int) error {
		return CheckResponse(&httpclient.Response{StatusCode: code}, "open-meteo")
	}
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"bad request", status(400), false},
		{"not found", status(404), false},
		{"unauthorized", status(401), false},
		{"forbidden", status(403), false},
		{"rate limited", status(429), true},
		{"server error", status(500), true},
		{"bad gateway", status(502), true},
		{"timeout", fmt.Errorf("get: %w", context.DeadlineExceeded), true},
		{"transport", errors.New("connection refused"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Transient(tt.err); got != tt.want {
				t.Errorf("Transient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
