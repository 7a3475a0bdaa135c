package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-whatsapp/cmd/whatsapp-webhook/internal"
	"github.com/goliatone/go-whatsapp/cmd/whatsapp-webhook/internal/migrate"
	"github.com/goliatone/go-whatsapp/cmd/whatsapp-webhook/internal/normalize"
	"github.com/goliatone/go-whatsapp/cmd/whatsapp-webhook/internal/serve"
	"github.com/goliatone/go-whatsapp/cmd/whatsapp-webhook/internal/status"
	"github.com/goliatone/go-whatsapp/cmd/whatsapp-webhook/internal/worker"
)

func NewWhatsappWebhookCommand() *cobra.Command {
	opts := &internal.Options{}

	cmd := &cobra.Command{
		Use:          "whatsapp-webhook",
		Short:        "WhatsApp Cloud API webhook receiver " + internal.GetVersion(),
		Example:      "whatsapp-webhook serve --config whatsapp.toml",
		SilenceUsage: true,
	}
	internal.BindFlags(cmd, opts)

	cmd.AddCommand(
		serve.NewServeCommand(opts),
		worker.NewWorkerCommand(opts),
		migrate.NewMigrateCommand(opts),
		status.NewStatusCommand(opts),
		normalize.NewNormalizeCommand(),
	)

	return cmd
}

func main() {
	cmd := NewWhatsappWebhookCommand()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
