package normalize

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-whatsapp/core"
	"github.com/goliatone/go-whatsapp/normalizer"
)

// ErrNoEvent reports a document that carries no actionable change.
var ErrNoEvent = errors.New("no actionable event in document")

func NewNormalizeCommand() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "normalize [file]",
		Short: "Print the normalized event for a raw webhook document",
		Example: `  whatsapp-webhook normalize payload.json
  cat payload.json | whatsapp-webhook normalize --strict`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				file, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer file.Close()
				in = file
			}
			return Run(cmd.Context(), in, cmd.OutOrStdout(), strict)
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "Fail when the document yields no event")

	return cmd
}

// Run normalizes the document read from in and writes the event JSON to out.
// Without strict, a document with no event prints "null".
func Run(ctx context.Context, in io.Reader, out io.Writer, strict bool) error {
	raw, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("normalize: read document: %w", err)
	}
	ev, err := normalizer.New(normalizer.Options{}).Normalize(ctx, raw)
	if err != nil {
		return err
	}
	if ev == nil {
		if strict {
			return ErrNoEvent
		}
		_, err = fmt.Fprintln(out, "null")
		return err
	}
	encoded, err := core.MarshalEvent(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(encoded))
	return err
}
