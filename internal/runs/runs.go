// Package runs keeps a Postgres ledger of seat runs and their claim attempts.
package runs

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/example/seat-scheduler/internal/db"
	"github.com/example/seat-scheduler/internal/scheduler"
	nanoid "github.com/matoous/go-nanoid/v2"
	"golang.org/x/crypto/blake2b"
)

const (
	StatusRunning     = "running"
	StatusDone        = "done"
	StatusFailed      = "failed"
	StatusInterrupted = "interrupted"
)

const (
	idPrefix   = "run-"
	idAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	idLength   = 12
)

type Run struct {
	ID       string
	UserHash string
	Mode     string
	Scope    string
	Day      string
	Targets  []string
	Status   string
	Report   string
	Attempts int

	LastError  *string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// NewID returns a short random run id.
func NewID() (string, error) {
	id, err := nanoid.Generate(idAlphabet, idLength)
	if err != nil {
		return "", fmt.Errorf("runs: id: %w", err)
	}
	return idPrefix + id, nil
}

// Fingerprint identifies a username without storing it.
func Fingerprint(username string) string {
	sum := blake2b.Sum256([]byte(username))
	return hex.EncodeToString(sum[:8])
}

type Repo struct{ db db.Conn }

func NewRepo(c db.Conn) *Repo { return &Repo{db: c} }

// Begin records a new run and returns its id.
func (r *Repo) Begin(ctx context.Context, run Run) (string, error) {
	id, err := NewID()
	if err != nil {
		return "", err
	}
	err = r.db.Exec(ctx, `
INSERT INTO runs(id,user_hash,mode,scope,day,targets,status,started_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		id, run.UserHash, run.Mode, run.Scope, run.Day, strings.Join(run.Targets, ","), StatusRunning, run.StartedAt,
	)
	if err != nil {
		return "", fmt.Errorf("runs: begin: %w", err)
	}
	return id, nil
}

func (r *Repo) Finish(ctx context.Context, id, status, report string, lastErr *string) error {
	return r.db.Exec(ctx, `UPDATE runs SET status=$2, report=$3, last_error=$4, finished_at=now() WHERE id=$1`,
		id, status, report, lastErr)
}

func (r *Repo) InsertAttempt(ctx context.Context, runID string, a scheduler.Attempt) error {
	return r.db.Exec(ctx, `
INSERT INTO claim_attempts(run_id,target,seat_id,status,action,attempted_at)
VALUES ($1,$2,$3,$4,$5,$6)`,
		runID, a.Target, a.SeatID, a.Status, a.Action.String(), a.At)
}

// Recent lists the latest runs, newest first, with their attempt counts.
func (r *Repo) Recent(ctx context.Context, limit int) ([]Run, error) {
	rows, err := r.db.Query(ctx, `
SELECT r.id,r.user_hash,r.mode,r.scope,r.day,r.targets,r.status,r.report,r.last_error,r.started_at,r.finished_at,
       (SELECT count(*) FROM claim_attempts a WHERE a.run_id=r.id)
FROM runs r
ORDER BY r.started_at DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("runs: recent: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var run Run
		var targets string
		if err := rows.Scan(&run.ID, &run.UserHash, &run.Mode, &run.Scope, &run.Day, &targets, &run.Status, &run.Report,
			&run.LastError, &run.StartedAt, &run.FinishedAt, &run.Attempts); err != nil {
			return nil, err
		}
		if targets != "" {
			run.Targets = strings.Split(targets, ",")
		}
		out = append(out, run)
	}
	return out, rows.Err()
}
