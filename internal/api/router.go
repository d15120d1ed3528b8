// Package api wires the HTTP handlers and middleware into one handler.
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/dvloznov/onebook-ledger/internal/api/handlers"
	"github.com/dvloznov/onebook-ledger/internal/api/middleware"
	"github.com/dvloznov/onebook-ledger/internal/jobs"
	"github.com/dvloznov/onebook-ledger/internal/store"
	"github.com/dvloznov/onebook-ledger/internal/upload"
	"github.com/rs/zerolog"
)

// Deps are the services the routes call.
type Deps struct {
	Repo      store.Repository
	Uploader  *upload.Uploader
	Publisher jobs.Publisher
	Jobs      jobs.JobStore
}

// NewRouter returns the API handler with middleware applied.
func NewRouter(d Deps, log zerolog.Logger) http.Handler {
	billsHandler := handlers.NewBillsHandler(d.Repo, d.Uploader, d.Publisher)
	entriesHandler := handlers.NewEntriesHandler(d.Repo)
	jobsHandler := handlers.NewJobsHandler(d.Jobs)

	mux := http.NewServeMux()

	mux.HandleFunc("/api/bills", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			billsHandler.ListBills(w, r)
		case http.MethodPost:
			billsHandler.UploadBill(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/bills/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		fileID := strings.TrimPrefix(r.URL.Path, "/api/bills/")
		if fileID == "" {
			middleware.WriteError(w, http.StatusBadRequest, "File ID is required")
			return
		}
		billsHandler.GetBill(w, r, fileID)
	})

	mux.HandleFunc("/api/entries", getOnly(entriesHandler.ListEntries))
	mux.HandleFunc("/api/categories", getOnly(handlers.ListCategories))
	mux.HandleFunc("/api/sources", getOnly(handlers.ListSources))
	mux.HandleFunc("/api/jobs", getOnly(jobsHandler.ListJobs))

	mux.HandleFunc("/api/jobs/", getOnly(func(w http.ResponseWriter, r *http.Request) {
		jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
		if jobID == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
			return
		}
		jobsHandler.GetJob(w, r, jobID)
	}))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	})

	return middleware.Recovery(log)(
		middleware.RequestID(log)(
			middleware.Logger(log)(
				middleware.CORS(mux),
			),
		),
	)
}

func getOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		h(w, r)
	}
}
