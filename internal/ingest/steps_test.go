package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dvloznov/onebook-ledger/internal/domain"
	"github.com/dvloznov/onebook-ledger/internal/pipeline"
	"github.com/dvloznov/onebook-ledger/internal/store"
	"github.com/dvloznov/onebook-ledger/internal/upload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRepository is an in-memory store.Repository with injectable failures.
type mockRepository struct {
	files     map[string]*domain.BillFile
	entries   []*store.EntryRecord
	runs      map[string]string
	failedErr map[string]error

	InsertEntriesErr error
	StartRunErr      error
}

var _ store.Repository = (*mockRepository)(nil)

func newMockRepository() *mockRepository {
	return &mockRepository{
		files:     make(map[string]*domain.BillFile),
		runs:      make(map[string]string),
		failedErr: make(map[string]error),
	}
}

func (m *mockRepository) InsertBillFile(ctx context.Context, f *domain.BillFile) error {
	cp := *f
	m.files[f.FileID] = &cp
	return nil
}

func (m *mockRepository) UpdateBillFileStatus(ctx context.Context, fileID, status string, entryCount int) error {
	f, ok := m.files[fileID]
	if !ok {
		return store.ErrNotFound
	}
	f.Status = status
	f.EntryCount = entryCount
	return nil
}

func (m *mockRepository) GetBillFile(ctx context.Context, fileID string) (*domain.BillFile, error) {
	f, ok := m.files[fileID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (m *mockRepository) ListBillFiles(ctx context.Context) ([]*domain.BillFile, error) {
	var out []*domain.BillFile
	for _, f := range m.files {
		out = append(out, f)
	}
	return out, nil
}

func (m *mockRepository) FindBillFileByChecksum(ctx context.Context, checksum string) (*domain.BillFile, error) {
	for _, f := range m.files {
		if f.Checksum == checksum {
			cp := *f
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockRepository) InsertEntries(ctx context.Context, rows []*store.EntryRecord) error {
	if m.InsertEntriesErr != nil {
		return m.InsertEntriesErr
	}
	m.entries = append(m.entries, rows...)
	return nil
}

func (m *mockRepository) QueryEntriesByDateRange(ctx context.Context, start, end time.Time) ([]*store.EntryRecord, error) {
	return m.entries, nil
}

func (m *mockRepository) StartParsingRun(ctx context.Context, fileID, parserType string) (string, error) {
	if m.StartRunErr != nil {
		return "", m.StartRunErr
	}
	id := fileID + "-run"
	m.runs[id] = store.RunStatusRunning
	return id, nil
}

func (m *mockRepository) MarkParsingRunFailed(ctx context.Context, runID string, parseErr error) {
	m.runs[runID] = store.RunStatusFailed
	m.failedErr[runID] = parseErr
}

func (m *mockRepository) MarkParsingRunSucceeded(ctx context.Context, runID string) error {
	m.runs[runID] = store.RunStatusSuccess
	return nil
}

func (m *mockRepository) Close() error { return nil }

type mockCategorizer struct {
	err error
}

func (m *mockCategorizer) Categorize(ctx context.Context, entries []domain.Entry) (map[int]domain.TransactionType, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[int]domain.TransactionType, len(entries))
	for i := range entries {
		out[i] = domain.TypeTravel
	}
	return out, nil
}

const genericCSV = "日期,类型,收支,金额,商品,对方,备注\n" +
	"2025-01-05 10:00:00,消费,支出,59.90,商品A,淘宝店铺A,备注1\n" +
	"2025-01-06 09:30:00,某某商户,支出,12.00,商品B,商户B,\n"

func storedFile(t *testing.T, content string) (*domain.BillFile, upload.StorageService) {
	t.Helper()
	s := upload.NewLocalStorage(t.TempDir())
	u := upload.NewUploader(s)
	f, err := u.Upload(context.Background(), "generic.csv", "generic", []byte(content))
	require.NoError(t, err)
	return f, s
}

func TestIngestBillFile(t *testing.T) {
	repo := newMockRepository()
	file, s := storedFile(t, genericCSV)
	deps := Deps{Repo: repo, Storage: s, Categorizer: &mockCategorizer{}}

	res, err := IngestBillFile(context.Background(), deps, file)
	require.NoError(t, err)

	assert.Equal(t, file.FileID, res.FileID)
	assert.Equal(t, 2, res.EntryCount)
	assert.Equal(t, 1, res.Categorized)
	assert.False(t, res.Duplicate)

	stored := repo.files[file.FileID]
	require.NotNil(t, stored)
	assert.Equal(t, domain.BillStatusParsed, stored.Status)
	assert.Equal(t, 2, stored.EntryCount)
	assert.Equal(t, store.RunStatusSuccess, repo.runs[res.ParsingRunID])

	require.Len(t, repo.entries, 2)
	first, second := repo.entries[0], repo.entries[1]
	assert.NotEmpty(t, first.EntryID)
	assert.NotEqual(t, first.EntryID, second.EntryID)
	assert.Equal(t, file.FileID, first.FileID)
	assert.Equal(t, res.ParsingRunID, first.ParsingRunID)
	assert.Equal(t, 1, first.LineNo)
	assert.Equal(t, 2, second.LineNo)
	assert.Equal(t, domain.TypeShopping, first.Category)
	assert.Equal(t, domain.TypeTravel, second.Category)
}

func TestIngestBillFile_Duplicate(t *testing.T) {
	repo := newMockRepository()
	file, s := storedFile(t, genericCSV)
	deps := Deps{Repo: repo, Storage: s}

	_, err := IngestBillFile(context.Background(), deps, file)
	require.NoError(t, err)

	again, _ := storedFile(t, genericCSV)
	res, err := IngestBillFile(context.Background(), deps, again)
	require.NoError(t, err)

	assert.True(t, res.Duplicate)
	assert.Equal(t, file.FileID, res.FileID)
	assert.Len(t, repo.entries, 2, "duplicate upload must not add entries")
	assert.NotContains(t, repo.files, again.FileID)
}

func TestIngestBillFile_ParseFailureMarksRunFailed(t *testing.T) {
	repo := newMockRepository()
	file, s := storedFile(t, genericCSV)
	require.NoError(t, os.Remove(file.StoragePath))
	deps := Deps{Repo: repo, Storage: s}

	_, err := IngestBillFile(context.Background(), deps, file)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline step 3 failed")

	runID := file.FileID + "-run"
	assert.Equal(t, store.RunStatusFailed, repo.runs[runID])
	assert.Equal(t, domain.BillStatusFailed, repo.files[file.FileID].Status)
}

func TestIngestBillFile_UnknownSource(t *testing.T) {
	repo := newMockRepository()
	file, s := storedFile(t, genericCSV)
	file.SourceType = "barclays"

	_, err := IngestBillFile(context.Background(), Deps{Repo: repo, Storage: s}, file)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline step 4 failed")
	assert.Equal(t, store.RunStatusFailed, repo.runs[file.FileID+"-run"])
}

func TestIngestBillFile_InsertFailure(t *testing.T) {
	repo := newMockRepository()
	repo.InsertEntriesErr = errors.New("quota exceeded")
	file, s := storedFile(t, genericCSV)

	_, err := IngestBillFile(context.Background(), Deps{Repo: repo, Storage: s}, file)
	require.Error(t, err)
	assert.ErrorIs(t, err, repo.InsertEntriesErr)

	runID := file.FileID + "-run"
	assert.Equal(t, store.RunStatusFailed, repo.runs[runID])
	assert.ErrorIs(t, repo.failedErr[runID], repo.InsertEntriesErr)
	assert.Equal(t, domain.BillStatusFailed, repo.files[file.FileID].Status)
}

func TestIngestBillFile_CategorizerFailureIsNotFatal(t *testing.T) {
	repo := newMockRepository()
	file, s := storedFile(t, genericCSV)
	deps := Deps{Repo: repo, Storage: s, Categorizer: &mockCategorizer{err: errors.New("model down")}}

	res, err := IngestBillFile(context.Background(), deps, file)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Categorized)
	assert.Equal(t, domain.TypeUnknown, repo.entries[1].Category)
}

func TestIngestBillFile_MissingFileErrorKind(t *testing.T) {
	repo := newMockRepository()
	file := &domain.BillFile{
		FileID:      "f-missing",
		SourceType:  "wechat",
		StoragePath: "gs://bills/none.csv",
		Status:      domain.BillStatusPending,
	}
	s := &missingObjectStorage{dir: t.TempDir()}

	_, err := IngestBillFile(context.Background(), Deps{Repo: repo, Storage: s}, file)
	require.Error(t, err)
	assert.ErrorIs(t, err, pipeline.ErrNotFound)
}

// missingObjectStorage reports every object as missing.
type missingObjectStorage struct{ dir string }

func (f *missingObjectStorage) Save(ctx context.Context, name string, content []byte) (string, error) {
	return filepath.Join(f.dir, name), nil
}

func (f *missingObjectStorage) Fetch(ctx context.Context, storagePath string) ([]byte, error) {
	return nil, &pipeline.LoadError{Kind: pipeline.NotFound, Path: storagePath, Err: os.ErrNotExist}
}

func TestPipeline_StopsOnError(t *testing.T) {
	var ran []int
	step := func(n int, err error) PipelineStep {
		return stepFunc(func(ctx context.Context, state *PipelineState) error {
			ran = append(ran, n)
			return err
		})
	}

	err := NewPipeline(step(1, nil), step(2, errors.New("boom")), step(3, nil)).Execute(context.Background(), &PipelineState{})
	require.Error(t, err)
	assert.Equal(t, "pipeline step 2 failed: boom", err.Error())
	assert.Equal(t, []int{1, 2}, ran)
}

func TestPipeline_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewPipeline(stepFunc(func(ctx context.Context, state *PipelineState) error {
		t.Fatal("step must not run")
		return nil
	})).Execute(ctx, &PipelineState{})
	assert.ErrorIs(t, err, context.Canceled)
}

type stepFunc func(ctx context.Context, state *PipelineState) error

func (f stepFunc) Execute(ctx context.Context, state *PipelineState) error { return f(ctx, state) }

func TestParserType(t *testing.T) {
	assert.Equal(t, "ADAPTER_ALIPAY", ParserType("alipay"))
}
