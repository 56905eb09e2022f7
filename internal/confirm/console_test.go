package confirm

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

func TestConsoleConfirm(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Response
	}{
		{"accept default", "y\n", UseDefault},
		{"accept default uppercase", "YES\n", UseDefault},
		{"decline then cancel", "n\ny\n", Cancel},
		{"decline everything", "n\nn\n", NoAction},
		{"empty answers mean no", "\n\n", NoAction},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			c := &Console{In: strings.NewReader(tt.input), Out: &out}
			got, err := c.Confirm(context.Background(), "Resolve mkt1 to YES?")
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
			if !strings.Contains(out.String(), "Resolve mkt1 to YES?") {
				t.Error("prompt was not shown")
			}
		})
	}
}

func TestResponseString(t *testing.T) {
	if NoAction.String() != "do nothing" {
		t.Errorf("NoAction = %q", NoAction)
	}
	if UseDefault.String() != "resolve to default" {
		t.Errorf("UseDefault = %q", UseDefault)
	}
	if Cancel.String() != "cancel market" {
		t.Errorf("Cancel = %q", Cancel)
	}
}

func TestConsoleConfirm_ContextExpires(t *testing.T) {
	// A reader that never delivers a line models an unattended terminal.
	pr, pw := io.Pipe()
	defer pw.Close()

	c := &Console{In: pr, Out: io.Discard}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	got, err := c.Confirm(ctx, "Resolve mkt1 to YES?")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if got != NoAction {
		t.Errorf("got %v, want NoAction", got)
	}
}
