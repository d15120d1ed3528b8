package migrate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

// BigQueryRunner applies migrations to one BigQuery dataset.
type BigQueryRunner struct {
	Client    *bigquery.Client
	ProjectID string
	DatasetID string
	AppliedBy string
}

// BigQueryVars returns the placeholder values for the BigQuery migrations.
func BigQueryVars(projectID, datasetID string) map[string]string {
	return map[string]string{"PROJECT_ID": projectID, "DATASET_ID": datasetID}
}

func (r *BigQueryRunner) table() string {
	return fmt.Sprintf("`%s.%s.schema_migrations`", r.ProjectID, r.DatasetID)
}

// EnsureMigrationsTable creates schema_migrations when missing.
func (r *BigQueryRunner) EnsureMigrationsTable(ctx context.Context) error {
	return r.run(ctx, r.Client.Query(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version    INT64 NOT NULL,
			name       STRING NOT NULL,
			applied_at TIMESTAMP NOT NULL,
			checksum   STRING,
			applied_by STRING
		)
	`, r.table())))
}

// Applied lists recorded migrations. A missing table means none.
func (r *BigQueryRunner) Applied(ctx context.Context) ([]AppliedMigration, error) {
	q := r.Client.Query(fmt.Sprintf(`
		SELECT version, name, applied_at, checksum, applied_by
		FROM %s
		ORDER BY version ASC
	`, r.table()))

	it, err := q.Read(ctx)
	if err != nil {
		if strings.Contains(err.Error(), "Not found") {
			return nil, nil
		}
		return nil, fmt.Errorf("Applied: reading: %w", err)
	}

	var applied []AppliedMigration
	for {
		var row struct {
			Version   int64               `bigquery:"version"`
			Name      string              `bigquery:"name"`
			AppliedAt time.Time           `bigquery:"applied_at"`
			Checksum  bigquery.NullString `bigquery:"checksum"`
			AppliedBy bigquery.NullString `bigquery:"applied_by"`
		}
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("Applied: iterating: %w", err)
		}
		applied = append(applied, AppliedMigration{
			Version:   int(row.Version),
			Name:      row.Name,
			AppliedAt: row.AppliedAt,
			Checksum:  row.Checksum.StringVal,
			AppliedBy: row.AppliedBy.StringVal,
		})
	}
	return applied, nil
}

// Execute runs the migration script.
func (r *BigQueryRunner) Execute(ctx context.Context, m Migration) error {
	return r.run(ctx, r.Client.Query(m.SQL))
}

// Record inserts the migration into schema_migrations.
func (r *BigQueryRunner) Record(ctx context.Context, m Migration) error {
	q := r.Client.Query(fmt.Sprintf(`
		INSERT INTO %s (version, name, applied_at, checksum, applied_by)
		VALUES (@version, @name, CURRENT_TIMESTAMP(), @checksum, @applied_by)
	`, r.table()))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "version", Value: m.Version},
		{Name: "name", Value: m.Name},
		{Name: "checksum", Value: m.Checksum},
		{Name: "applied_by", Value: r.AppliedBy},
	}
	return r.run(ctx, q)
}

func (r *BigQueryRunner) run(ctx context.Context, q *bigquery.Query) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}
