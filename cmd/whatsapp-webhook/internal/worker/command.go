package worker

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	whatsapp "github.com/goliatone/go-whatsapp"
	"github.com/goliatone/go-whatsapp/cmd/whatsapp-webhook/internal"
)

func NewWorkerCommand(opts *internal.Options) *cobra.Command {
	var (
		reaction    string
		reply       string
		concurrency int
	)

	cmd := &cobra.Command{
		Use:     "worker",
		Aliases: []string{"w"},
		Short:   "Process queued notifications without serving HTTP",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := internal.Open(ctx, opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			client, err := rt.NewOutboundClient()
			if err != nil {
				return err
			}
			service, err := rt.NewService(
				internal.SampleHandler(client, rt.Logger, reaction, reply),
				whatsapp.WithWorkerConcurrency(concurrency),
			)
			if err != nil {
				return err
			}
			return service.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&reaction, "reaction", "", "Emoji to react with on every content message")
	cmd.Flags().StringVar(&reply, "reply", "", "Text to send back for every content message")
	cmd.Flags().IntVar(&concurrency, "concurrency", 1, "Number of concurrent worker loops")

	return cmd
}
