// Package history is the local ledger of publish attempts. It is an audit
// record only: the pipeline writes to it after the fact and never reads it
// back to resume or retry anything.
package history

import (
	"database/sql"
	"fmt"
)

type Outcome string

const (
	OutcomePublished Outcome = "published"
	OutcomeFailed    Outcome = "failed"
)

// Entry is one recorded publish attempt.
type Entry struct {
	ID        int64
	Date      string
	VideoPath string
	SizeBytes int64
	Caption   string
	JobID     string
	BlobCID   string
	PostURI   string
	Outcome   Outcome
	Error     string
	CreatedAt int64
}

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Record(e *Entry) error {
	query := `INSERT INTO publishes (date, video_path, size_bytes, caption, job_id, blob_cid, post_uri, outcome, error, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	result, err := r.db.Exec(query,
		e.Date,
		e.VideoPath,
		e.SizeBytes,
		e.Caption,
		e.JobID,
		e.BlobCID,
		e.PostURI,
		string(e.Outcome),
		e.Error,
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record publish: %w", err)
	}
	e.ID, _ = result.LastInsertId()
	return nil
}

func (r *Repository) GetByDate(date string) ([]*Entry, error) {
	query := `SELECT id, date, video_path, size_bytes, caption, job_id, blob_cid, post_uri, outcome, error, created_at
			  FROM publishes WHERE date = $1 ORDER BY created_at DESC`

	rows, err := r.db.Query(query, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e := &Entry{}
		var outcome string
		err := rows.Scan(&e.ID, &e.Date, &e.VideoPath, &e.SizeBytes, &e.Caption, &e.JobID, &e.BlobCID, &e.PostURI, &outcome, &e.Error, &e.CreatedAt)
		if err != nil {
			return nil, err
		}
		e.Outcome = Outcome(outcome)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *Repository) CountByOutcome(outcome Outcome) (int64, error) {
	var count int64
	err := r.db.QueryRow(`SELECT COUNT(*) FROM publishes WHERE outcome = $1`, string(outcome)).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}
