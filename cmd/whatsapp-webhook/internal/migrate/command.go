package migrate

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-whatsapp/cmd/whatsapp-webhook/internal"
)

func NewMigrateCommand(opts *internal.Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the dedupe and queue table migrations",
		Example: `  whatsapp-webhook migrate
  whatsapp-webhook migrate --config /etc/whatsapp.toml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := internal.Open(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer rt.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "migrations applied (%s)\n", rt.Config.Database.Driver)
			return nil
		},
	}

	return cmd
}
