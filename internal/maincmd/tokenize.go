package maincmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/mainer"

	"github.com/duskvm/duskvm/lang/scanner"
	"github.com/duskvm/duskvm/lang/token"
)

func (c *Cmd) Tokenize(ctx context.Context, stdio mainer.Stdio, args []string) error {
	return TokenizeFiles(ctx, stdio, args...)
}

// TokenizeFiles runs the scanner phase only, printing each file's token
// stream as "<pos>: <kind> [<literal>]" lines.
func TokenizeFiles(ctx context.Context, stdio mainer.Stdio, files ...string) error {
	fset := token.NewFileSet()
	var lastErr error
	for _, path := range files {
		if err := tokenizeFile(stdio, fset, path); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

func tokenizeFile(stdio mainer.Stdio, fset *token.FileSet, path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintln(stdio.Stderr, err)
		return err
	}

	file := fset.AddFile(path, -1, len(src))
	var errs scanner.ErrorList
	sc := scanner.New(file, string(src), func(pos token.Position, msg string) {
		errs = append(errs, &scanner.Error{Pos: pos, Msg: msg})
	})

	for {
		var val token.Value
		tok := sc.ScanNonComment(&val)
		fmt.Fprintf(stdio.Stdout, "%s: %s", file.Position(val.Pos), tok)
		if lit := tokenLiteral(tok, val); lit != "" {
			fmt.Fprintf(stdio.Stdout, " %s", lit)
		}
		fmt.Fprintln(stdio.Stdout)
		if tok == token.EOF {
			break
		}
	}

	if len(errs) > 0 {
		scanner.PrintError(stdio.Stderr, errs)
		return errs
	}
	return nil
}

// tokenLiteral returns the source text worth echoing next to a token kind,
// empty for tokens (punctuation, keywords) whose kind already says it all.
func tokenLiteral(tok token.Token, val token.Value) string {
	switch tok {
	case token.IDENT, token.INT, token.FLOAT, token.STRING, token.REGEXP:
		return val.Raw
	default:
		return ""
	}
}
