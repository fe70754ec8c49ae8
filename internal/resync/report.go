package resync

import "sync"

// Result is what happened to one user.
type Result string

const (
	ResultAdded     Result = "added"
	ResultAlready   Result = "already"
	ResultFailed    Result = "failed"
	ResultSkipped   Result = "skipped"
	ResultCancelled Result = "cancelled"
)

// UserResult is the outcome for a single user.
type UserResult struct {
	DiscordID string `json:"discord_id"`
	Result    Result `json:"result"`
	Attempts  int    `json:"attempts"`
	Error     string `json:"error,omitempty"`
}

func (r UserResult) with(result Result, err error) UserResult {
	r.Result = result
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

// Counts tallies results by kind. NotStarted counts users a stopped run
// never reached; they have no UserResult.
type Counts struct {
	Added      int `json:"added"`
	Already    int `json:"already"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"`
	Cancelled  int `json:"cancelled"`
	NotStarted int `json:"not_started"`
}

// Processed is the number of users with a result.
func (c Counts) Processed() int {
	return c.Added + c.Already + c.Failed + c.Skipped + c.Cancelled
}

// Report summarizes a resync run.
type Report struct {
	GuildID string       `json:"guild_id"`
	Total   int64        `json:"total"`
	Counts  Counts       `json:"counts"`
	Users   []UserResult `json:"users"`
}

// progress accumulates results from concurrent workers.
type progress struct {
	mu     sync.Mutex
	report Report
}

func newProgress(guildID string) *progress {
	return &progress{report: Report{GuildID: guildID}}
}

func (p *progress) setTotal(n int64) {
	p.mu.Lock()
	p.report.Total = n
	p.mu.Unlock()
}

func (p *progress) record(r UserResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.report.Users = append(p.report.Users, r)
	switch r.Result {
	case ResultAdded:
		p.report.Counts.Added++
	case ResultAlready:
		p.report.Counts.Already++
	case ResultFailed:
		p.report.Counts.Failed++
	case ResultSkipped:
		p.report.Counts.Skipped++
	case ResultCancelled:
		p.report.Counts.Cancelled++
	}
}

// stoppedEarly accounts for the users a stopped run never reached.
func (p *progress) stoppedEarly() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if rest := int(p.report.Total) - p.report.Counts.Processed(); rest > 0 {
		p.report.Counts.NotStarted = rest
	}
}

// Snapshot returns a copy of the report so far.
func (p *progress) Snapshot() Report {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := p.report
	out.Users = append([]UserResult(nil), p.report.Users...)
	return out
}
