package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Submission statuses.
const (
	StatusPending   = "pending"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Submission is one recorded request to process a screen.
type Submission struct {
	ID        int64             `json:"id"`
	Screen    string            `json:"screen_name"`
	Inputs    map[string]string `json:"screen_inputs"`
	Data      map[string]string `json:"screen_data"`
	RunID     string            `json:"run_id,omitempty"`
	Status    string            `json:"status"`
	Outcome   string            `json:"outcome,omitempty"`
	Message   string            `json:"message,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

type submissionRow struct {
	ID        int64     `db:"id"`
	Screen    string    `db:"screen_name"`
	Inputs    string    `db:"screen_inputs"`
	Data      string    `db:"screen_data"`
	RunID     string    `db:"run_id"`
	Status    string    `db:"status"`
	Outcome   string    `db:"outcome"`
	Message   string    `db:"message"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

const submissionColumns = `id, screen_name, screen_inputs, screen_data, run_id, status, outcome, message, created_at, updated_at`

// SaveSubmission records a submission before it is processed. A non-zero
// id updates that submission's inputs and data instead and resets it to
// pending.
func (s *Store) SaveSubmission(ctx context.Context, id int64, screenName string, inputs, data map[string]string) (int64, error) {
	in, err := encodeParams(inputs)
	if err != nil {
		return 0, err
	}
	dt, err := encodeParams(data)
	if err != nil {
		return 0, err
	}

	if id != 0 {
		res, err := s.db.ExecContext(ctx, `UPDATE screen_data_submissions SET screen_name = ?, screen_inputs = ?, screen_data = ?, status = ?, outcome = '', message = '', updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
			screenName, in, dt, StatusPending, id)
		if err != nil {
			return 0, fmt.Errorf("update submission: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return 0, fmt.Errorf("submission %d: %w", id, ErrNotFound)
		}
		return id, nil
	}

	res, err := s.db.ExecContext(ctx, `INSERT INTO screen_data_submissions(screen_name, screen_inputs, screen_data, status) VALUES(?, ?, ?, ?)`,
		screenName, in, dt, StatusPending)
	if err != nil {
		return 0, fmt.Errorf("insert submission: %w", err)
	}
	return res.LastInsertId()
}

// FinishSubmission stores the result of processing a submission.
func (s *Store) FinishSubmission(ctx context.Context, id int64, runID string, success bool, outcome, message string) error {
	status := StatusFailed
	if success {
		status = StatusSucceeded
	}
	res, err := s.db.ExecContext(ctx, `UPDATE screen_data_submissions SET run_id = ?, status = ?, outcome = ?, message = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		runID, status, outcome, message, id)
	if err != nil {
		return fmt.Errorf("finish submission: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("submission %d: %w", id, ErrNotFound)
	}
	return nil
}

// GetSubmission returns one submission.
func (s *Store) GetSubmission(ctx context.Context, id int64) (*Submission, error) {
	var row submissionRow
	err := s.db.GetContext(ctx, &row, `SELECT `+submissionColumns+` FROM screen_data_submissions WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("submission %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get submission: %w", err)
	}
	return row.decode()
}

// ListSubmissions returns submissions newest first, optionally filtered by
// screen name. limit <= 0 means no limit.
func (s *Store) ListSubmissions(ctx context.Context, screenName string, limit int) ([]Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM screen_data_submissions`
	var args []any
	if screenName != "" {
		query += ` WHERE screen_name = ?`
		args = append(args, screenName)
	}
	query += ` ORDER BY id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var rows []submissionRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	subs := make([]Submission, 0, len(rows))
	for _, row := range rows {
		sub, err := row.decode()
		if err != nil {
			return nil, err
		}
		subs = append(subs, *sub)
	}
	return subs, nil
}

func (r submissionRow) decode() (*Submission, error) {
	sub := &Submission{
		ID:        r.ID,
		Screen:    r.Screen,
		RunID:     r.RunID,
		Status:    r.Status,
		Outcome:   r.Outcome,
		Message:   r.Message,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if err := json.Unmarshal([]byte(r.Inputs), &sub.Inputs); err != nil {
		return nil, fmt.Errorf("decode submission %d inputs: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(r.Data), &sub.Data); err != nil {
		return nil, fmt.Errorf("decode submission %d data: %w", r.ID, err)
	}
	return sub, nil
}
