// Package resync re-adds every stored user to a guild. Users are paged from
// the store once, each one is handled on a bounded pool, and adding a member
// is retried with a flat backoff. A failing user never affects the others.
package resync

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/membrs/membrs/internal/auth/discord"
	"github.com/membrs/membrs/internal/auth/token"
	"github.com/membrs/membrs/internal/bot"
	"github.com/membrs/membrs/internal/db/models"
	"golang.org/x/sync/errgroup"
)

// Users pages over the user store.
type Users interface {
	CountUsers(ctx context.Context) (int64, error)
	ListUsersAfter(ctx context.Context, afterID uint, limit int) ([]models.User, error)
}

// Sessions builds a token source for a stored user.
type Sessions interface {
	SessionFor(ctx context.Context, creds discord.ClientCredentials, user models.User) (token.Source, error)
}

// Members adds users to guilds.
type Members interface {
	AddGuildMember(ctx context.Context, m bot.AddGuildMember) (bot.Outcome, error)
}

// Options tunes a resync run.
type Options struct {
	Concurrency int
	MaxAttempts int
	Backoff     time.Duration
	PageSize    int
}

// DefaultOptions returns 8 workers, 3 attempts 5s apart and pages of 100.
func DefaultOptions() Options {
	return Options{
		Concurrency: 8,
		MaxAttempts: 3,
		Backoff:     5 * time.Second,
		PageSize:    100,
	}
}

// Request is one resync run. Credentials and Members are resolved by the
// caller so that missing settings fail before any work starts.
type Request struct {
	GuildID     string
	Credentials discord.ClientCredentials
	Members     Members
}

// Orchestrator runs resyncs.
type Orchestrator struct {
	users    Users
	sessions Sessions
	opts     Options
	sleep    func(ctx context.Context, d time.Duration) error
}

// New creates an orchestrator. Non-positive options fall back to the defaults.
func New(users Users, sessions Sessions, opts Options) *Orchestrator {
	def := DefaultOptions()
	if opts.Concurrency <= 0 {
		opts.Concurrency = def.Concurrency
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = def.MaxAttempts
	}
	if opts.Backoff < 0 {
		opts.Backoff = def.Backoff
	}
	if opts.PageSize <= 0 {
		opts.PageSize = def.PageSize
	}
	return &Orchestrator{
		users:    users,
		sessions: sessions,
		opts:     opts,
		sleep:    sleepContext,
	}
}

// Run resyncs every user and returns the final report. The error is set when
// the store failed, ctx was cancelled or Discord rejected the client
// credentials; per-user failures are in the report. Users never reached are
// counted as not started.
func (o *Orchestrator) Run(ctx context.Context, req Request) (Report, error) {
	p := newProgress(req.GuildID)
	err := o.run(ctx, req, p)
	return p.Snapshot(), err
}

func (o *Orchestrator) run(ctx context.Context, req Request, p *progress) error {
	total, err := o.users.CountUsers(ctx)
	if err != nil {
		return err
	}
	p.setTotal(total)
	log.Printf("👥 Re-adding %d users to guild %s", total, req.GuildID)

	runCtx, abort := context.WithCancelCause(ctx)
	defer abort(nil)

	var g errgroup.Group
	g.SetLimit(o.opts.Concurrency)

	var listErr error
	var after uint
	for runCtx.Err() == nil {
		page, err := o.users.ListUsersAfter(runCtx, after, o.opts.PageSize)
		if err != nil {
			listErr = err
			break
		}
		for _, u := range page {
			u := u
			g.Go(func() error {
				res, err := o.syncUser(runCtx, req, u)
				p.record(res)
				if err != nil {
					abort(err)
				}
				return nil
			})
		}
		if len(page) < o.opts.PageSize {
			break
		}
		after = page[len(page)-1].ID
	}
	g.Wait()

	if listErr == nil && runCtx.Err() != nil {
		listErr = context.Cause(runCtx)
	}
	if listErr != nil {
		p.stoppedEarly()
	}

	c := p.Snapshot().Counts
	log.Printf("🏁 Resync of guild %s finished: %d added, %d already, %d failed, %d skipped, %d cancelled, %d not started",
		req.GuildID, c.Added, c.Already, c.Failed, c.Skipped, c.Cancelled, c.NotStarted)
	return listErr
}

// syncUser handles one user. A non-nil error aborts the whole run.
func (o *Orchestrator) syncUser(ctx context.Context, req Request, u models.User) (UserResult, error) {
	res := UserResult{DiscordID: u.DiscordID}
	if ctx.Err() != nil {
		return res.with(ResultCancelled, ctx.Err()), nil
	}

	src, err := o.sessions.SessionFor(ctx, req.Credentials, u)
	if errors.Is(err, discord.ErrNoRefreshToken) || errors.Is(err, models.ErrIncompleteToken) {
		log.Printf("⏭️ Skipping %s: %v", u.DiscordID, err)
		return res.with(ResultSkipped, err), nil
	}
	if err != nil {
		log.Printf("❌ Failed to load token for %s: %v", u.DiscordID, err)
		return res.with(ResultFailed, err), nil
	}

	for attempt := 1; ; attempt++ {
		tok, err := src.ValidToken(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return res.with(ResultCancelled, ctx.Err()), nil
			}
			if errors.Is(err, token.ErrClientRejected) {
				log.Printf("🛑 Client credentials rejected, aborting resync of guild %s", req.GuildID)
				return res.with(ResultFailed, err), err
			}
			log.Printf("❌ Failed to get a valid token for %s: %v", u.DiscordID, err)
			return res.with(ResultFailed, err), nil
		}

		res.Attempts = attempt
		outcome, err := req.Members.AddGuildMember(ctx, bot.AddGuildMember{
			GuildID:     req.GuildID,
			UserID:      u.DiscordID,
			AccessToken: tok.AccessToken,
		})
		if err == nil {
			log.Printf("✅ %s: %s", u.DiscordID, outcome)
			if outcome == bot.AlreadyOnServer {
				return res.with(ResultAlready, nil), nil
			}
			return res.with(ResultAdded, nil), nil
		}
		if ctx.Err() != nil {
			return res.with(ResultCancelled, ctx.Err()), nil
		}

		log.Printf("⚠️ Attempt %d/%d to add %s failed: %v", attempt, o.opts.MaxAttempts, u.DiscordID, err)
		if attempt >= o.opts.MaxAttempts {
			return res.with(ResultFailed, err), nil
		}
		if err := o.sleep(ctx, o.opts.Backoff); err != nil {
			return res.with(ResultCancelled, err), nil
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
