// Package console drives a session over plain line-oriented streams.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"ragsody/internal/service"
)

// Handler is the session surface the console drives.
type Handler interface {
	Greeting() string
	Prompt() string
	Handle(ctx context.Context, line string) service.Reply
}

// Run reads lines from in and writes replies to out until the session quits,
// input ends or ctx is cancelled.
func Run(ctx context.Context, in io.Reader, out io.Writer, h Handler) error {
	fmt.Fprintln(out, h.Greeting())
	prompt := h.Prompt()
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	for {
		fmt.Fprint(out, prompt)
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		reply := h.Handle(ctx, scanner.Text())
		if reply.Text != "" {
			fmt.Fprintln(out, reply.Text)
		}
		if reply.Quit {
			return nil
		}
		prompt = reply.Prompt
	}
}
