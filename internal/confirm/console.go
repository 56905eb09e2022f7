package confirm

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// Console asks for confirmation on standard input. Used when no Telegram
// credentials are configured or the operator passes --console-only.
type Console struct {
	In  io.Reader
	Out io.Writer
}

// Confirm prompts on Out and reads the answers from In. The read runs on its
// own goroutine so an unattended prompt gives up when ctx expires; the
// pending read stays blocked until the next line arrives on In.
func (c *Console) Confirm(ctx context.Context, prompt string) (Response, error) {
	type answer struct {
		resp Response
		err  error
	}
	ch := make(chan answer, 1)
	go func() {
		resp, err := c.ask(prompt)
		ch <- answer{resp, err}
	}()

	select {
	case <-ctx.Done():
		return NoAction, ctx.Err()
	case a := <-ch:
		return a.resp, a.err
	}
}

func (c *Console) ask(prompt string) (Response, error) {
	reader := bufio.NewReader(c.In)

	fmt.Fprintln(c.Out, prompt)
	fmt.Fprint(c.Out, "Use this default value? (y/N) ")
	if yes, err := readYes(reader); err != nil {
		return NoAction, err
	} else if yes {
		return UseDefault, nil
	}

	fmt.Fprint(c.Out, "Cancel the market? (y/N) ")
	if yes, err := readYes(reader); err != nil {
		return NoAction, err
	} else if yes {
		return Cancel, nil
	}
	return NoAction, nil
}

func readYes(reader *bufio.Reader) (bool, error) {
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return false, err
	}
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(line)), "y"), nil
}
