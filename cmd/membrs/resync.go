package main

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/membrs/membrs/internal/resync"
	"github.com/spf13/cobra"
)

func newResyncCmd() *cobra.Command {
	var guildID string

	cmd := &cobra.Command{
		Use:   "resync",
		Short: "Re-add every stored user to a guild and wait for the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}

			if guildID == "" {
				if guildID, err = a.store.GuildID(ctx); err != nil {
					return fmt.Errorf("no --guild given and %w", err)
				}
			}
			creds, err := a.store.ClientCredentials(ctx)
			if err != nil {
				return err
			}
			botToken, err := a.store.BotToken(ctx)
			if err != nil {
				return err
			}

			orch := resync.New(a.store, a.tokens, a.cfg.ResyncOptions())
			report, err := orch.Run(ctx, resync.Request{
				GuildID:     guildID,
				Credentials: creds,
				Members:     a.botClient(botToken),
			})
			renderReport(cmd.OutOrStdout(), report)
			return err
		},
	}
	cmd.Flags().StringVar(&guildID, "guild", "", "target guild id (defaults to the configured guild)")
	return cmd
}

func renderReport(w io.Writer, r resync.Report) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.SetTitle("Resync of guild %s", r.GuildID)
	t.AppendHeader(table.Row{"Result", "Users"})
	t.AppendRows([]table.Row{
		{resync.ResultAdded, r.Counts.Added},
		{resync.ResultAlready, r.Counts.Already},
		{resync.ResultFailed, r.Counts.Failed},
		{resync.ResultSkipped, r.Counts.Skipped},
		{resync.ResultCancelled, r.Counts.Cancelled},
		{"not started", r.Counts.NotStarted},
	})
	t.AppendFooter(table.Row{"Total", r.Total})
	t.Render()

	var failures []resync.UserResult
	for _, u := range r.Users {
		if u.Result == resync.ResultFailed {
			failures = append(failures, u)
		}
	}
	if len(failures) == 0 {
		return
	}

	f := table.NewWriter()
	f.SetOutputMirror(w)
	f.SetStyle(table.StyleRounded)
	f.AppendHeader(table.Row{"Discord ID", "Attempts", "Error"})
	for _, u := range failures {
		f.AppendRow(table.Row{u.DiscordID, u.Attempts, u.Error})
	}
	f.Render()
}
