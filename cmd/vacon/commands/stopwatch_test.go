package commands

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestSpaced(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{d: 0, want: "0 . 0 0 0 0 0 0"},
		{d: 1500 * time.Millisecond, want: "1 . 5 0 0 0 0 0"},
		{d: 9*time.Second + time.Microsecond, want: "9 . 0 0 0 0 0 1"},
	}
	for _, test := range tests {
		if got := spaced(test.d); got != test.want {
			t.Errorf("%v: expected %q, got %q", test.d, test.want, got)
		}
	}
}

func TestDrawFrame(t *testing.T) {
	var b bytes.Buffer
	drawFrame(&b, 42, 2*time.Second)
	out := b.String()
	if !strings.HasPrefix(out, "\033[2J\033[H") {
		t.Errorf("the screen is not cleared %q", out)
	}
	if !strings.Contains(out, " 42\n") || !strings.Contains(out, "2 . 0 0 0 0 0 0") {
		t.Errorf("unexpected frame %q", out)
	}
}
