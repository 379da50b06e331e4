package session_test

import (
	"testing"

	"github.com/rahulhooda929/Simple-FAQ-SDR/internal/session"
)

func TestStateString(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   session.State
		want string
	}{
		{session.StateDisconnected, "disconnected"},
		{session.StateConnecting, "connecting"},
		{session.StateConnected, "connected"},
		{session.StateError, "error"},
		{session.State(42), "unknown"},
	}
	for _, tc := range cases {
		if got := tc.in.String(); got != tc.want {
			t.Errorf("State(%d).String() = %q, want %q", int(tc.in), got, tc.want)
		}
	}
}
