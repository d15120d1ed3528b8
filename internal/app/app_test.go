package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/dvloznov/onebook-ledger/internal/config"
	"github.com/dvloznov/onebook-ledger/internal/domain"
	"github.com/dvloznov/onebook-ledger/internal/ingest"
	"github.com/dvloznov/onebook-ledger/internal/jobs"
	"github.com/dvloznov/onebook-ledger/internal/upload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Storage.SQLitePath = filepath.Join(t.TempDir(), "ledger.db")
	cfg.Uploads = t.TempDir()
	return cfg
}

func TestOpenRepository_SQLite(t *testing.T) {
	repo, err := OpenRepository(context.Background(), testConfig(t))
	require.NoError(t, err)
	defer repo.Close()

	files, err := repo.ListBillFiles(context.Background())
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestOpenRepository_UnknownBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Backend = "postgres"

	_, err := OpenRepository(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres")
}

func TestNewCategorizer_Disabled(t *testing.T) {
	c, err := NewCategorizer(context.Background(), testConfig(t))
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestNewJobHandler_IngestsFile(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	repo, err := OpenRepository(ctx, cfg)
	require.NoError(t, err)
	defer repo.Close()

	deps, err := NewIngestDeps(ctx, cfg, repo)
	require.NoError(t, err)
	assert.Nil(t, deps.Categorizer)

	content := "日期,类型,收支,金额,商品,对方,备注\n" +
		"2025-01-05 10:00:00,消费,支出,59.90,商品A,淘宝店铺A,备注1\n"
	file, err := upload.NewUploader(deps.Storage).Upload(ctx, "bill.csv", "generic", []byte(content))
	require.NoError(t, err)

	job := &jobs.ParseBillJob{JobID: "job-1", File: *file, Status: jobs.JobStatusPending}
	require.NoError(t, NewJobHandler(deps)(ctx, job))

	assert.NotEmpty(t, job.ParsingRunID)
	assert.Equal(t, 1, job.EntryCount)
	assert.False(t, job.Duplicate)

	stored, err := repo.GetBillFile(ctx, file.FileID)
	require.NoError(t, err)
	assert.Equal(t, domain.BillStatusParsed, stored.Status)

	entries, err := repo.QueryEntriesByDateRange(ctx,
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.TypeShopping, entries[0].Category)
}

type otherJob struct{}

func (otherJob) GetID() string             { return "x" }
func (otherJob) GetType() jobs.JobType     { return "other" }
func (otherJob) GetStatus() jobs.JobStatus { return jobs.JobStatusPending }

func TestNewJobHandler_RejectsUnknownJob(t *testing.T) {
	err := NewJobHandler(ingest.Deps{})(context.Background(), otherJob{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected job type")
}
