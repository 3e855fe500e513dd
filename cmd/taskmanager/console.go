package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// console reads lines from the user on its own goroutine so prompts can
// be abandoned when ctx is canceled. Output is serialized because view
// refresh notices are printed from the UI loop.
type console struct {
	mu    sync.Mutex
	out   io.Writer
	lines chan string
	err   error
}

func newConsole(in io.Reader, out io.Writer) *console {
	c := &console{
		out:   out,
		lines: make(chan string, 16),
	}
	go c.read(in)
	return c
}

func (c *console) read(in io.Reader) {
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		c.lines <- sc.Text()
	}
	c.mu.Lock()
	c.err = sc.Err()
	c.mu.Unlock()
	close(c.lines)
}

// readLine returns the next input line with surrounding blanks removed.
// It returns io.EOF once input is exhausted.
func (c *console) readLine(ctx context.Context) (string, error) {
	select {
	case line, ok := <-c.lines:
		if !ok {
			c.mu.Lock()
			err := c.err
			c.mu.Unlock()
			if err != nil {
				return "", err
			}
			return "", io.EOF
		}
		return strings.TrimSpace(line), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// ask prints prompt and waits for one line.
func (c *console) ask(ctx context.Context, prompt string) (string, error) {
	c.printf("%s", prompt)
	return c.readLine(ctx)
}

// askDefault is ask with a current value that an empty answer keeps.
func (c *console) askDefault(ctx context.Context, prompt, current string) (string, error) {
	answer, err := c.ask(ctx, fmt.Sprintf("%s [%s]: ", prompt, current))
	if err != nil {
		return "", err
	}
	if answer == "" {
		return current, nil
	}
	return answer, nil
}

func (c *console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

// notice prints an asynchronous message on its own line.
func (c *console) notice(format string, args ...any) {
	c.printf("\n* "+format+"\n", args...)
}

// write sends pre-rendered output in one locked write.
func (c *console) write(p []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = c.out.Write(p)
}
