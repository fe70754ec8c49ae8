package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/membrs/membrs/internal/auth/state"
	"github.com/membrs/membrs/internal/resync"
	"github.com/membrs/membrs/internal/server"
	"github.com/membrs/membrs/internal/server/handlers"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}

			secret, err := a.store.StateSecret(ctx)
			if err != nil {
				return err
			}

			orch := resync.New(a.store, a.tokens, a.cfg.ResyncOptions())
			deps := &handlers.Deps{
				Store:     a.store,
				Exchanger: a.exchanger,
				Tokens:    a.tokens,
				Jobs:      resync.NewJobs(ctx, orch).KeepFinished(a.cfg.Resync.KeepJobs),
				Bot: func(botToken string) handlers.BotClient {
					return a.botClient(botToken)
				},
				States:      state.NewSigner(secret),
				FrontendURL: a.cfg.Server.FrontendURL,
			}

			router := server.NewRouter(deps, server.Options{
				RequestTimeout: a.cfg.Server.RequestTimeout,
				AllowedOrigins: a.cfg.AllowedOrigins(),
			})
			return server.ListenAndServe(ctx, a.cfg.Addr(), router)
		},
	}
}
