package handlers

import (
	"net/http"

	"github.com/membrs/membrs/internal/version"
)

// IndexHandler serves a plain-text banner.
func IndexHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte(version.String() + "\n"))
	}
}

// VersionHandler serves build information as JSON.
func VersionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, version.Get())
	}
}
