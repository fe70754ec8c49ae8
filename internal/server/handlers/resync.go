package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/membrs/membrs/internal/logging"
	"github.com/membrs/membrs/internal/resync"
)

// PullAcknowledgement is returned when a resync job has been started.
const PullAcknowledgement = "Success!! Please Wait..."

type pullRequest struct {
	GuildID string `json:"guild_id"`
}

// StartPullHandler starts a background resync of every stored user into
// the posted guild, or the configured guild when the body has none.
func StartPullHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req pullRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.GuildID == "" {
			guildID, err := d.Store.GuildID(ctx)
			if err != nil {
				writeError(w, statusFor(err), err.Error())
				return
			}
			req.GuildID = guildID
		}

		creds, err := d.Store.ClientCredentials(ctx)
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		client, err := d.botClient(ctx)
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}

		job := d.Jobs.Start(resync.Request{
			GuildID:     req.GuildID,
			Credentials: creds,
			Members:     client,
		})
		logging.Printf(ctx, "📥 Pull members into %s queued as job %s", req.GuildID, job.ID())
		writeJSON(w, http.StatusAccepted, map[string]string{
			"message": PullAcknowledgement,
			"job_id":  job.ID(),
		})
	}
}

// ListPullsHandler lists resync jobs, newest first.
func ListPullsHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, d.Jobs.List())
	}
}

// GetPullHandler returns one job's status and report.
func GetPullHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, ok := d.Jobs.Get(chi.URLParam(r, "jobID"))
		if !ok {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		writeJSON(w, http.StatusOK, job.Status())
	}
}

// CancelPullHandler cancels a running job.
func CancelPullHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "jobID")
		if !d.Jobs.Cancel(id) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"job_id": id, "status": "cancelling"})
	}
}
