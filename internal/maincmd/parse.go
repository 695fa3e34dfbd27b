package maincmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/mainer"

	"github.com/duskvm/duskvm/lang/compiler"
	"github.com/duskvm/duskvm/lang/token"
)

// Parse runs the compiler's single parse+resolve+codegen pass (spec §6.2:
// duskvm has no separate AST, so there is nothing to pretty-print here)
// and reports any syntax or scope error found, in the teacher's
// one-error-per-line style.
func (c *Cmd) Parse(ctx context.Context, stdio mainer.Stdio, args []string) error {
	return ParseFiles(ctx, stdio, args...)
}

func ParseFiles(ctx context.Context, stdio mainer.Stdio, files ...string) error {
	fset := token.NewFileSet()
	var lastErr error
	for _, path := range files {
		if err := parseFile(stdio, fset, path); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

func parseFile(stdio mainer.Stdio, fset *token.FileSet, path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintln(stdio.Stderr, err)
		return err
	}

	if _, err := compiler.Compile(fset, path, string(src)); err != nil {
		if ce, ok := err.(*compiler.CompileError); ok {
			for _, e := range ce.Errs {
				fmt.Fprintln(stdio.Stderr, e)
			}
		} else {
			fmt.Fprintln(stdio.Stderr, err)
		}
		return err
	}
	fmt.Fprintf(stdio.Stdout, "%s: ok\n", path)
	return nil
}
