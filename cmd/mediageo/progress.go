package main

import (
	"fmt"
	"io"
	"sync"
)

// progressPrinter rewrites a single status line on a terminal.
type progressPrinter struct {
	mu  sync.Mutex
	out io.Writer
}

func newProgressPrinter(out io.Writer) *progressPrinter {
	return &progressPrinter{out: out}
}

func (p *progressPrinter) update(current, total int) {
	if total <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "\rprocessed %d/%d", current, total)
	if current >= total {
		fmt.Fprintln(p.out)
	}
}
