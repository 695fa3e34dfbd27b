package maincmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/mainer"

	"github.com/duskvm/duskvm/lang/compiler"
	"github.com/duskvm/duskvm/lang/token"
)

// Compile runs the full compile pipeline and prints the resulting
// bytecode as pseudo-assembly (lang/compiler.Disassemble), replacing the
// teacher's separate resolve-phase AST dump: duskvm's compiler folds
// parsing, scope resolution and codegen into one pass, so the bytecode
// listing is the only intermediate form left to inspect (spec §6.2, §7).
func (c *Cmd) Compile(ctx context.Context, stdio mainer.Stdio, args []string) error {
	return CompileFiles(ctx, stdio, args...)
}

func CompileFiles(ctx context.Context, stdio mainer.Stdio, files ...string) error {
	fset := token.NewFileSet()
	var lastErr error
	for _, path := range files {
		if err := compileFile(stdio, fset, path); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

func compileFile(stdio mainer.Stdio, fset *token.FileSet, path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintln(stdio.Stderr, err)
		return err
	}

	mod, err := compiler.Compile(fset, path, string(src))
	if err != nil {
		if ce, ok := err.(*compiler.CompileError); ok {
			for _, e := range ce.Errs {
				fmt.Fprintln(stdio.Stderr, e)
			}
		} else {
			fmt.Fprintln(stdio.Stderr, err)
		}
		return err
	}

	fmt.Fprintf(stdio.Stdout, "; %s\n", path)
	compiler.Disassemble(stdio.Stdout, mod.Toplevel)
	return nil
}
