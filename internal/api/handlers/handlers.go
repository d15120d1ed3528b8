package handlers

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dvloznov/onebook-ledger/internal/adapters"
	"github.com/dvloznov/onebook-ledger/internal/api/middleware"
	"github.com/dvloznov/onebook-ledger/internal/domain"
	"github.com/dvloznov/onebook-ledger/internal/jobs"
	"github.com/dvloznov/onebook-ledger/internal/logger"
	"github.com/dvloznov/onebook-ledger/internal/pipeline"
	"github.com/dvloznov/onebook-ledger/internal/store"
	"github.com/dvloznov/onebook-ledger/internal/upload"
)

// MaxUploadBytes bounds a single bill file upload.
const MaxUploadBytes = 32 << 20

// BillsHandler handles bill file endpoints.
type BillsHandler struct {
	repo      store.BillFileRepository
	uploader  *upload.Uploader
	publisher jobs.Publisher
}

// NewBillsHandler creates a new bills handler.
func NewBillsHandler(repo store.BillFileRepository, uploader *upload.Uploader, publisher jobs.Publisher) *BillsHandler {
	return &BillsHandler{
		repo:      repo,
		uploader:  uploader,
		publisher: publisher,
	}
}

// ListBills handles GET /api/bills
func (h *BillsHandler) ListBills(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	files, err := h.repo.ListBillFiles(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list bill files")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list bill files")
		return
	}
	if files == nil {
		files = []*domain.BillFile{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"bills": files,
		"count": len(files),
	})
}

// GetBill handles GET /api/bills/{id}
func (h *BillsHandler) GetBill(w http.ResponseWriter, r *http.Request, fileID string) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	f, err := h.repo.GetBillFile(ctx, fileID)
	if errors.Is(err, store.ErrNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "Bill file not found")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("file_id", fileID).Msg("Failed to get bill file")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get bill file")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, f)
}

// UploadBill handles POST /api/bills as multipart/form-data with a "file"
// part and a "source_type" field naming the adapter (type or bill name).
// The file is stored and a parse job is queued.
func (h *BillsHandler) UploadBill(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	adapter, err := adapters.Lookup(r.FormValue("source_type"))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Unknown source_type")
		return
	}

	part, header, err := r.FormFile("file")
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer part.Close()

	if _, err := pipeline.FormatFromPath(header.Filename); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Unsupported file type "+filepath.Ext(header.Filename))
		return
	}

	content, err := io.ReadAll(part)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Failed to read file")
		return
	}
	if len(content) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "file is empty")
		return
	}

	f, err := h.uploader.Upload(ctx, header.Filename, adapter.SourceType, content)
	if err != nil {
		log.Error().Err(err).Msg("Failed to store bill file")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to store bill file")
		return
	}

	job := &jobs.ParseBillJob{File: *f}
	if err := h.publisher.PublishParseBill(ctx, job); err != nil {
		log.Error().Err(err).Str("file_id", f.FileID).Msg("Failed to enqueue parse job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue parse job")
		return
	}

	log.Info().Str("job_id", job.JobID).Str("file_id", f.FileID).Msg("Parse job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":       job.JobID,
		"file_id":      f.FileID,
		"storage_path": f.StoragePath,
		"source_type":  f.SourceType,
		"status":       string(job.Status),
	})
}

// EntriesHandler handles ledger entry endpoints.
type EntriesHandler struct {
	repo store.EntryRepository
	now  func() time.Time
}

// NewEntriesHandler creates a new entries handler.
func NewEntriesHandler(repo store.EntryRepository) *EntriesHandler {
	return &EntriesHandler{repo: repo, now: time.Now}
}

// ListEntries handles GET /api/entries?start_date=YYYY-MM-DD&end_date=YYYY-MM-DD&category=code.
// The range defaults to the last year.
func (h *EntriesHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	query := r.URL.Query()

	endDate := h.now().UTC()
	startDate := endDate.AddDate(-1, 0, 0)

	var err error
	if s := query.Get("start_date"); s != "" {
		if startDate, err = time.Parse("2006-01-02", s); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid start_date format")
			return
		}
	}
	if s := query.Get("end_date"); s != "" {
		if endDate, err = time.Parse("2006-01-02", s); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid end_date format")
			return
		}
	}
	if endDate.Before(startDate) {
		middleware.WriteError(w, http.StatusBadRequest, "end_date is before start_date")
		return
	}

	var category domain.TransactionType
	if s := query.Get("category"); s != "" {
		t, ok := domain.ParseTransactionType(s)
		if !ok {
			middleware.WriteError(w, http.StatusBadRequest, "Unknown category")
			return
		}
		category = t
	}

	records, err := h.repo.QueryEntriesByDateRange(ctx, startDate, endDate)
	if err != nil {
		log.Error().Err(err).Msg("Failed to query entries")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to query entries")
		return
	}

	out := make([]*store.EntryRecord, 0, len(records))
	for _, rec := range records {
		if category != "" && rec.Category != category {
			continue
		}
		out = append(out, rec)
	}

	middleware.WriteJSON(w, http.StatusOK, out)
}

// ListCategories handles GET /api/categories
func ListCategories(w http.ResponseWriter, r *http.Request) {
	type category struct {
		Code  domain.TransactionType `json:"code"`
		Label string                 `json:"label"`
	}

	types := domain.TransactionTypes()
	categories := make([]category, len(types))
	for i, t := range types {
		categories[i] = category{Code: t, Label: t.Label()}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"categories": categories,
		"count":      len(categories),
	})
}

// ListSources handles GET /api/sources
func ListSources(w http.ResponseWriter, r *http.Request) {
	type source struct {
		SourceType string `json:"source_type"`
		BillName   string `json:"bill_name"`
	}

	all := adapters.All()
	sources := make([]source, len(all))
	for i, a := range all {
		sources[i] = source{SourceType: a.SourceType, BillName: a.BillName}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"sources": sources,
		"count":   len(sources),
	})
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store jobs.JobStore
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore) *JobsHandler {
	return &JobsHandler{store: store}
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	job, err := h.store.GetJob(ctx, jobID)
	if errors.Is(err, jobs.ErrJobNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query := r.URL.Query()
	filter := jobs.JobFilter{
		FileID: query.Get("file_id"),
		Status: jobs.JobStatus(query.Get("status")),
	}
	if limit, err := strconv.Atoi(query.Get("limit")); err == nil {
		filter.Limit = limit
	}
	if offset, err := strconv.Atoi(query.Get("offset")); err == nil {
		filter.Offset = offset
	}

	jobsList, err := h.store.ListJobs(ctx, filter)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
