package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/membrs/membrs/internal/db/models"
	"github.com/spf13/cobra"
)

func newUsersCmd() *cobra.Command {
	var pageSize int

	cmd := &cobra.Command{
		Use:   "users",
		Short: "List stored users",
		RunE: func(cmd *cobra.Command, args []string) error {
			if pageSize <= 0 {
				return fmt.Errorf("--page-size must be positive, got %d", pageSize)
			}
			a, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}

			all, err := listAllUsers(cmd.Context(), a.store, pageSize)
			if err != nil {
				return err
			}
			renderUsers(cmd.OutOrStdout(), all, time.Now())
			return nil
		},
	}
	cmd.Flags().IntVar(&pageSize, "page-size", 500, "users fetched per query")
	return cmd
}

type userLister interface {
	ListUsersAfter(ctx context.Context, afterID uint, limit int) ([]models.User, error)
}

// listAllUsers pages through every stored user, pageSize at a time.
func listAllUsers(ctx context.Context, users userLister, pageSize int) ([]models.User, error) {
	var all []models.User
	var after uint
	for {
		page, err := users.ListUsersAfter(ctx, after, pageSize)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			return all, nil
		}
		all = append(all, page...)
		if len(page) < pageSize {
			return all, nil
		}
		after = page[len(page)-1].ID
	}
}

func renderUsers(w io.Writer, users []models.User, now time.Time) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"ID", "Discord ID", "Username", "Email", "Token", "Needs Reauth"})

	for _, u := range users {
		t.AppendRow(table.Row{u.ID, u.DiscordID, deref(u.Username), deref(u.Email), tokenState(u, now), u.NeedsReauth})
	}
	t.AppendFooter(table.Row{"", "", "", "", "Total", len(users)})
	t.Render()
}

func tokenState(u models.User, now time.Time) string {
	switch {
	case u.ExpiresAt == nil:
		return "missing"
	case !now.Before(*u.ExpiresAt):
		return "expired"
	default:
		return fmt.Sprintf("valid until %s", u.ExpiresAt.Format(time.RFC3339))
	}
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}
