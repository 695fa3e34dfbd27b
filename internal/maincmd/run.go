package maincmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/mainer"

	"github.com/duskvm/duskvm/duskvm"
)

// Run compiles and executes each file against its own fresh Context,
// printing its top-level completion value, replacing the teacher's
// resolve command: duskvm's CLI is an embedder of the duskvm package like
// any other host, not a second implementation of the resolution pass.
func (c *Cmd) Run(ctx context.Context, stdio mainer.Stdio, args []string) error {
	return RunFiles(ctx, stdio, args...)
}

func RunFiles(ctx context.Context, stdio mainer.Stdio, files ...string) error {
	var lastErr error
	for _, path := range files {
		if err := runFile(ctx, stdio, path); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

func runFile(ctx context.Context, stdio mainer.Stdio, path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintln(stdio.Stderr, err)
		return err
	}

	dc := duskvm.New()
	dc.Stdout = stdio.Stdout
	dc.Stderr = stdio.Stderr

	v, err := dc.Eval(ctx, path, string(src))
	if err != nil {
		fmt.Fprintln(stdio.Stderr, err)
		return err
	}
	fmt.Fprintln(stdio.Stdout, v)
	return nil
}
