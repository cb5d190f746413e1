package subsys

import (
	"errors"
	"testing"
)

func TestResultOK(t *testing.T) {
	r := OK()
	if !r.IsOK() || r.IsNotOK() {
		t.Fatalf("OK() reports IsOK=%v IsNotOK=%v", r.IsOK(), r.IsNotOK())
	}
	if r != OK() {
		t.Errorf("OK() values differ")
	}
	if r.Code() != "" || r.MessageKey() != "" {
		t.Errorf("OK() carries code %q key %q", r.Code(), r.MessageKey())
	}
	if r.Err() != nil {
		t.Errorf("OK().Err() = %v, want nil", r.Err())
	}
	if got := r.String(); got != "OK" {
		t.Errorf("String() = %q, want %q", got, "OK")
	}
}

func TestResultNotOK(t *testing.T) {
	r := NotOK("svc.start", "svc.err.onStart")

	if !r.IsNotOK() {
		t.Fatal("NotOK result reports OK")
	}
	if r.Status() != StatusNotOK {
		t.Errorf("Status() = %v, want %v", r.Status(), StatusNotOK)
	}
	if r.Code() != "svc.start" {
		t.Errorf("Code() = %q, want %q", r.Code(), "svc.start")
	}
	if r.MessageKey() != "svc.err.onStart" {
		t.Errorf("MessageKey() = %q, want %q", r.MessageKey(), "svc.err.onStart")
	}
	if got, want := r.String(), "NOT_OK[svc.start/svc.err.onStart]"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}

	err := r.Err()
	if !errors.Is(err, ErrNotOK) {
		t.Fatalf("Err() = %v, want match for ErrNotOK", err)
	}
	var re *ResultError
	if !errors.As(err, &re) {
		t.Fatalf("Err() = %T, want *ResultError", err)
	}
	if re.Code != "svc.start" || re.MessageKey != "svc.err.onStart" {
		t.Errorf("ResultError = %+v", re)
	}
}

func TestStatusString(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusOK, "OK"},
		{StatusNotOK, "NOT_OK"},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("Status(%d).String() = %q, want %q", tt.status, got, tt.want)
		}
	}
}
