package status

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-whatsapp/cmd/whatsapp-webhook/internal"
)

func NewStatusCommand(opts *internal.Options) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show queue depth and dead lettered notifications",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			rt, err := internal.Open(ctx, opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			store := rt.QueueStore()
			pending, err := store.Len(ctx)
			if err != nil {
				return err
			}
			poisoned, err := store.DeadLetterCount(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d pending\n", store.Name(), pending)
			fmt.Fprintf(out, "%s: %d dead lettered\n", store.PoisonName(), poisoned)
			if poisoned == 0 || limit <= 0 {
				return nil
			}

			messages, err := store.DeadLetters(ctx, limit)
			if err != nil {
				return err
			}
			for _, msg := range messages {
				fmt.Fprintf(out, "  - %s key=%s\n", msg.JobID, msg.IdempotencyKey)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "Dead letters to list (0 disables the listing)")

	return cmd
}
