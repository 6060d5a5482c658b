// Package history persists one row per pipeline run.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"factcheck/backend/internal/factcheck"
)

var ErrNotFound = errors.New("check not found")

const (
	excerptRunes = 280
	defaultLimit = 20
	maxLimit     = 100
)

type Record struct {
	ID               string             `json:"id"`
	ContentType      factcheck.Kind     `json:"type"`
	InputExcerpt     string             `json:"input"`
	Outcome          string             `json:"outcome"`
	ErrorMessage     string             `json:"error,omitempty"`
	ReliabilityScore *int               `json:"reliability_score,omitempty"`
	Verdict          *factcheck.Verdict `json:"verdict,omitempty"`
	DurationMS       int64              `json:"duration_ms"`
	CreatedAt        string             `json:"created_at"`
}

type Store struct {
	db  *sql.DB
	now func() time.Time
}

func NewStore(db *sql.DB) Store {
	return Store{db: db, now: time.Now}
}

// Excerpt is the stored form of a submission: text is shortened and image
// bytes are never persisted.
func Excerpt(req factcheck.ContentRequest) string {
	payload := strings.TrimSpace(req.Payload)
	if req.Kind == factcheck.KindImage {
		mediaType := "image"
		if strings.HasPrefix(payload, "data:") {
			if header, _, ok := strings.Cut(payload, ","); ok {
				mediaType = strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
			}
		}
		return fmt.Sprintf("[%s, %d base64 chars]", mediaType, len(payload))
	}
	payload = strings.Join(strings.Fields(payload), " ")
	if utf8.RuneCountInString(payload) > excerptRunes {
		payload = string([]rune(payload)[:excerptRunes]) + "…"
	}
	return payload
}

// Record stores a finished run and returns its id. verdict is nil for
// failed runs.
func (s Store) Record(ctx context.Context, req factcheck.ContentRequest, verdict *factcheck.Verdict, runErr error, elapsed time.Duration) (string, error) {
	id := uuid.NewString()
	outcome := "ok"
	errMessage := ""
	var score any
	var verdictJSON any

	if runErr != nil {
		fe := factcheck.AsError(runErr)
		outcome = string(fe.Kind)
		errMessage = fe.UserMessage()
	}
	if verdict != nil {
		raw, err := json.Marshal(verdict.Public())
		if err != nil {
			return "", fmt.Errorf("encode verdict: %w", err)
		}
		verdictJSON = string(raw)
		score = verdict.ReliabilityScore
	}

	query := `
INSERT INTO checks (id, content_type, input_excerpt, outcome, error_message, reliability_score, verdict_json, duration_ms, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);
`
	if _, err := s.db.ExecContext(ctx, query,
		id,
		string(req.Kind),
		Excerpt(req),
		outcome,
		errMessage,
		score,
		verdictJSON,
		elapsed.Milliseconds(),
		s.now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		return "", fmt.Errorf("record check: %w", err)
	}
	return id, nil
}

func (s Store) Get(ctx context.Context, id string) (Record, error) {
	query := `
SELECT id, content_type, input_excerpt, outcome, error_message, reliability_score, verdict_json, duration_ms, created_at
FROM checks
WHERE id = ?
LIMIT 1;
`
	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, strings.TrimSpace(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("get check: %w", err)
	}
	return rec, nil
}

// List returns the newest checks first. limit is clamped to [1, 100].
func (s Store) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT id, content_type, input_excerpt, outcome, error_message, reliability_score, verdict_json, duration_ms, created_at
FROM checks
ORDER BY created_at DESC, id DESC
LIMIT ?;
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list checks: %w", err)
	}
	defer rows.Close()

	out := make([]Record, 0, limit)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan check: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checks: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var (
		rec         Record
		contentType string
		score       sql.NullInt64
		verdictJSON sql.NullString
	)
	if err := row.Scan(
		&rec.ID,
		&contentType,
		&rec.InputExcerpt,
		&rec.Outcome,
		&rec.ErrorMessage,
		&score,
		&verdictJSON,
		&rec.DurationMS,
		&rec.CreatedAt,
	); err != nil {
		return Record{}, err
	}
	rec.ContentType = factcheck.Kind(contentType)
	if score.Valid {
		v := int(score.Int64)
		rec.ReliabilityScore = &v
	}
	if verdictJSON.Valid && verdictJSON.String != "" {
		var v factcheck.Verdict
		if err := json.Unmarshal([]byte(verdictJSON.String), &v); err != nil {
			return Record{}, fmt.Errorf("decode verdict: %w", err)
		}
		rec.Verdict = &v
	}
	return rec, nil
}
