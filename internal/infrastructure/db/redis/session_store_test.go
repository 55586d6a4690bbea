package redis

import (
	"testing"

	"github.com/facegate/facegate/internal/core/ports"
)

var _ ports.SessionStore = (*SessionStore)(nil)

func TestSessionKey(t *testing.T) {
	got := sessionKey("4f1c2a9e-0000-4000-8000-000000000001")
	if got != "session:4f1c2a9e-0000-4000-8000-000000000001" {
		t.Fatalf("unexpected key %q", got)
	}
}
