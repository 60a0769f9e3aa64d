package radioerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"plain error", errors.New("boom"), 0},
		{"coded", E(CodeBlocked, "blocked"), CodeBlocked},
		{"formatted", Ef(CodeRecentlyPlayed, "played %d minutes ago", 5), CodeRecentlyPlayed},
		{"wrapped", fmt.Errorf("submit: %w", E(CodeAlreadyQueued, "dupe")), CodeAlreadyQueued},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Code(tt.err); got != tt.want {
				t.Errorf("Code = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestErrorMessage(t *testing.T) {
	err := Ef(CodeNotPrivileged, "role %s may not skip", "listener")
	want := "role listener may not skip (code 806)"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("outer: %w", E(CodeBlocked, "one message"))

	if !errors.Is(err, E(CodeBlocked, "different message")) {
		t.Error("errors with the same code should match")
	}
	if errors.Is(err, E(CodeAlreadyQueued, "one message")) {
		t.Error("errors with different codes should not match")
	}
}
