// Package control reads operator input: command lines typed at the
// keyboard and sensor readings from the Arduino turntable controller.
package control

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"golang.org/x/term"
)

const Prompt = ": "

// Console reads command lines. On a terminal it puts stdin in raw mode and
// edits lines with x/term, with history, and routes log output through the
// terminal so messages do not garble the prompt. Otherwise it reads plain
// lines.
type Console struct {
	in  io.Reader
	out io.Writer

	fd       int
	oldState *term.State
	term     *term.Terminal
}

func NewConsole(in io.Reader, out io.Writer) (*Console, error) {
	c := &Console{in: in, out: out, fd: -1}
	f, ok := in.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return c, nil
	}

	c.fd = int(f.Fd())
	old, err := term.MakeRaw(c.fd)
	if err != nil {
		return nil, fmt.Errorf("console raw mode: %w", err)
	}
	c.oldState = old
	c.term = term.NewTerminal(struct {
		io.Reader
		io.Writer
	}{in, out}, Prompt)
	if w, _, err := term.GetSize(c.fd); err == nil {
		c.term.SetSize(w, 0)
	}
	log.SetOutput(c.term)
	return c, nil
}

// Interactive reports whether the console owns a terminal.
func (c *Console) Interactive() bool { return c.term != nil }

// Lines delivers each entered line until ctx is done or input ends. The
// channel is closed when input ends.
func (c *Console) Lines(ctx context.Context) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		next := c.scanner()
		for {
			line, err := next()
			if err != nil {
				if err != io.EOF {
					log.Printf("Console: %v", err)
				}
				return
			}
			select {
			case ch <- line:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

func (c *Console) scanner() func() (string, error) {
	if c.term != nil {
		return c.term.ReadLine
	}
	sc := bufio.NewScanner(c.in)
	return func() (string, error) {
		if sc.Scan() {
			return sc.Text(), nil
		}
		if err := sc.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
}

// Println writes a reply line.
func (c *Console) Println(s string) {
	if c.term != nil {
		fmt.Fprintln(c.term, s)
		return
	}
	fmt.Fprintln(c.out, s)
}

// Close restores the terminal.
func (c *Console) Close() error {
	if c.oldState == nil {
		return nil
	}
	log.SetOutput(os.Stderr)
	err := term.Restore(c.fd, c.oldState)
	c.oldState = nil
	return err
}
