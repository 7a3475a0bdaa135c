package serve

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	whatsapp "github.com/goliatone/go-whatsapp"
	"github.com/goliatone/go-whatsapp/cmd/whatsapp-webhook/internal"
)

const shutdownTimeout = 10 * time.Second

func NewServeCommand(opts *internal.Options) *cobra.Command {
	var (
		reaction    string
		reply       string
		noWorker    bool
		concurrency int
	)

	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"s"},
		Short:   "Serve the webhook endpoint and process queued notifications",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serveCmd(ctx, opts, settings{
				reaction:    reaction,
				reply:       reply,
				worker:      !noWorker,
				concurrency: concurrency,
			})
		},
	}

	cmd.Flags().StringVar(&reaction, "reaction", "", "Emoji to react with on every content message")
	cmd.Flags().StringVar(&reply, "reply", "", "Text to send back for every content message")
	cmd.Flags().BoolVar(&noWorker, "no-worker", false, "Only accept webhooks; run the worker elsewhere")
	cmd.Flags().IntVar(&concurrency, "concurrency", 1, "Number of concurrent worker loops")

	return cmd
}

type settings struct {
	reaction    string
	reply       string
	worker      bool
	concurrency int
}

func serveCmd(ctx context.Context, opts *internal.Options, s settings) error {
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
		internal.SampleHandler(client, rt.Logger, s.reaction, s.reply),
		whatsapp.WithWorkerConcurrency(s.concurrency),
	)
	if err != nil {
		return err
	}

	cfg := service.Config()
	server := &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           NewMux(cfg.HTTP.Path, service.WebhookHandler()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		rt.Logger.Info("whatsapp-webhook: listening", "address", cfg.HTTP.Address, "path", cfg.HTTP.Path)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(groupCtx), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if s.worker {
		group.Go(func() error {
			return service.Run(groupCtx)
		})
	}
	err = group.Wait()
	rt.Logger.Info("whatsapp-webhook: stopped")
	return err
}

// NewMux mounts the webhook handler at path next to a liveness probe.
func NewMux(path string, webhook http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle(path, webhook)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}
