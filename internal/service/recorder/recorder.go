package recorder

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"meetsumgo/internal/models"
	"meetsumgo/internal/redis"
	"meetsumgo/internal/service/summarizer"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// maxTranscriptChars caps a single upload.
const maxTranscriptChars = 2_000_000

// Service persists transcripts, summaries, sessions and generation outcomes.
// The redis cache in front of the outcome window is optional; a nil cache
// degrades to database reads.
type Service struct {
	db    *sql.DB
	cache *redis.Client
}

func NewService(db *sql.DB, cache *redis.Client) *Service {
	return &Service{db: db, cache: cache}
}

// summaryMetadata is the JSON blob stored in the summaries.metadata column.
// Keeping the derived analysis in one column avoids a migration per score.
type summaryMetadata struct {
	Structure models.SummaryStructure `json:"structure"`
	Scores    models.AnalysisScores   `json:"scores"`
	Quality   models.QualityReport    `json:"quality"`
	Formats   map[string]string       `json:"formats"`
	UI        models.UIDocument       `json:"ui"`
}

// CreateTranscript validates and stores a new transcript. Ingestion is
// synchronous, so the row lands directly in the processed state.
func (s *Service) CreateTranscript(ctx context.Context, title, content string) (*models.Transcript, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("transcript content is empty")
	}
	if len(content) > maxTranscriptChars {
		return nil, fmt.Errorf("transcript exceeds %d characters", maxTranscriptChars)
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = "Untitled meeting"
	}

	now := time.Now()
	t := &models.Transcript{
		Reference:     uuid.NewString(),
		Title:         title,
		Content:       content,
		CharCount:     len(content),
		TokenEstimate: summarizer.EstimateTokens(content),
		Status:        models.TranscriptProcessed,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO transcripts (reference, title, content, char_count, token_estimate, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Reference, t.Title, t.Content, t.CharCount, t.TokenEstimate, t.Status, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert transcript: %w", err)
	}
	t.ID, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("transcript id: %w", err)
	}
	return t, nil
}

// GetTranscript loads one transcript by id.
func (s *Service) GetTranscript(ctx context.Context, id int64) (*models.Transcript, error) {
	var t models.Transcript
	err := s.db.QueryRowContext(ctx,
		`SELECT id, reference, title, content, char_count, token_estimate, status, created_at, updated_at
		 FROM transcripts WHERE id = ?`, id).
		Scan(&t.ID, &t.Reference, &t.Title, &t.Content, &t.CharCount, &t.TokenEstimate, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("transcript %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query transcript %d: %w", id, err)
	}
	return &t, nil
}

// CreateSummary inserts a summary row in its initial state and fills in the
// generated id.
func (s *Service) CreateSummary(ctx context.Context, sum *models.Summary) error {
	now := time.Now()
	sum.CreatedAt = now
	sum.UpdatedAt = now
	if sum.Reference == "" {
		sum.Reference = uuid.NewString()
	}
	sessionID := sql.NullInt64{Int64: sum.SessionID, Valid: sum.SessionID > 0}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO summaries (reference, transcript_id, session_id, style, status, raw_content, content, metadata,
		                        error_message, model, input_tokens, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, '', '', '{}', '', ?, ?, ?, ?)`,
		sum.Reference, sum.TranscriptID, sessionID, sum.Style, sum.Status,
		sum.Model, sum.InputTokens, sum.CreatedAt, sum.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert summary: %w", err)
	}
	sum.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("summary id: %w", err)
	}
	return nil
}

// CompleteSummary persists the finished artifact, analysis included.
func (s *Service) CompleteSummary(ctx context.Context, sum *models.Summary) error {
	meta, err := json.Marshal(summaryMetadata{
		Structure: sum.Structure,
		Scores:    sum.Scores,
		Quality:   sum.Quality,
		Formats:   sum.Formats,
		UI:        sum.UI,
	})
	if err != nil {
		return fmt.Errorf("encode summary metadata: %w", err)
	}
	sum.UpdatedAt = time.Now()
	_, err = s.db.ExecContext(ctx,
		`UPDATE summaries SET status = ?, raw_content = ?, content = ?, metadata = ?,
		        model = ?, model_name = ?, fallback_triggered = ?, attempt_count = ?,
		        input_tokens = ?, output_tokens = ?, cost_usd = ?, processing_ms = ?, updated_at = ?
		 WHERE id = ?`,
		sum.Status, sum.RawContent, sum.Content, string(meta),
		sum.Model, sum.ModelName, sum.FallbackTriggered, sum.AttemptCount,
		sum.InputTokens, sum.OutputTokens, sum.CostUSD, sum.ProcessingMs, sum.UpdatedAt,
		sum.ID)
	if err != nil {
		return fmt.Errorf("update summary %d: %w", sum.ID, err)
	}
	return nil
}

// FailSummary marks a generating summary as errored.
func (s *Service) FailSummary(ctx context.Context, id int64, errMsg string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE summaries SET status = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		models.SummaryError, errMsg, time.Now(), id)
	if err != nil {
		return fmt.Errorf("fail summary %d: %w", id, err)
	}
	return nil
}

// GetSummary loads one summary with its edit history.
func (s *Service) GetSummary(ctx context.Context, id int64) (*models.Summary, error) {
	sum, err := s.scanSummary(s.db.QueryRowContext(ctx, selectSummary+` WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, summary_id, content, edited_at FROM summary_edits WHERE summary_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("query summary edits: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var e models.SummaryEdit
		if err := rows.Scan(&e.ID, &e.SummaryID, &e.Content, &e.EditedAt); err != nil {
			return nil, fmt.Errorf("scan summary edit: %w", err)
		}
		sum.EditHistory = append(sum.EditHistory, e)
	}
	return sum, rows.Err()
}

// ListSessionSummaries returns a session's summaries, newest first. Edit
// history is not loaded for listings.
func (s *Service) ListSessionSummaries(ctx context.Context, sessionID int64, limit int) ([]*models.Summary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		selectSummary+` WHERE session_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query session summaries: %w", err)
	}
	defer rows.Close()

	var out []*models.Summary
	for rows.Next() {
		sum, err := s.scanSummary(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// ListTranscriptSummaries returns every summary generated for a transcript.
func (s *Service) ListTranscriptSummaries(ctx context.Context, transcriptID int64) ([]*models.Summary, error) {
	rows, err := s.db.QueryContext(ctx,
		selectSummary+` WHERE transcript_id = ? ORDER BY created_at DESC, id DESC`, transcriptID)
	if err != nil {
		return nil, fmt.Errorf("query transcript summaries: %w", err)
	}
	defer rows.Close()

	var out []*models.Summary
	for rows.Next() {
		sum, err := s.scanSummary(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// AppendEdit preserves the current content in the edit history, then replaces
// it. Prior revisions are never rewritten.
func (s *Service) AppendEdit(ctx context.Context, id int64, content string) (*models.Summary, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("edited content is empty")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin edit tx: %w", err)
	}
	defer tx.Rollback()

	var (
		current string
		status  models.SummaryStatus
	)
	err = tx.QueryRowContext(ctx, `SELECT content, status FROM summaries WHERE id = ?`, id).
		Scan(&current, &status)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("summary %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query summary %d: %w", id, err)
	}
	if status != models.SummaryCompleted && status != models.SummaryEdited {
		return nil, fmt.Errorf("summary %d is %s and cannot be edited", id, status)
	}

	now := time.Now()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO summary_edits (summary_id, content, edited_at) VALUES (?, ?, ?)`,
		id, current, now); err != nil {
		return nil, fmt.Errorf("insert summary edit: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE summaries SET content = ?, status = ?, updated_at = ? WHERE id = ?`,
		content, models.SummaryEdited, now, id); err != nil {
		return nil, fmt.Errorf("update edited summary: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit edit tx: %w", err)
	}
	return s.GetSummary(ctx, id)
}

// EnsureSession resolves a session token to a session row, creating it on
// first use.
func (s *Service) EnsureSession(ctx context.Context, token string) (*models.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		token = uuid.NewString()
	}

	sess, err := s.sessionByToken(ctx, token)
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := time.Now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (token, generation_count, last_model, created_at, updated_at) VALUES (?, 0, '', ?, ?)`,
		token, now, now)
	if err != nil {
		// Lost a create race; the row exists now.
		if sess, lookupErr := s.sessionByToken(ctx, token); lookupErr == nil {
			return sess, nil
		}
		return nil, fmt.Errorf("insert session: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("session id: %w", err)
	}
	return &models.Session{ID: id, Token: token, CreatedAt: now, UpdatedAt: now}, nil
}

func (s *Service) sessionByToken(ctx context.Context, token string) (*models.Session, error) {
	var sess models.Session
	err := s.db.QueryRowContext(ctx,
		`SELECT id, token, generation_count, last_model, created_at, updated_at FROM sessions WHERE token = ?`, token).
		Scan(&sess.ID, &sess.Token, &sess.GenerationCount, &sess.LastModel, &sess.CreatedAt, &sess.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}
	return &sess, nil
}

// RecentOutcomes returns the newest generation outcomes for a session,
// redis-cached. Cache failures fall through to the database.
func (s *Service) RecentOutcomes(ctx context.Context, sessionID int64, limit int) ([]models.GenerationOutcome, error) {
	if sessionID <= 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}
	if cached, ok := s.cache.LoadOutcomes(ctx, sessionID); ok {
		if len(cached) > limit {
			cached = cached[:limit]
		}
		return cached, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, model, success, processing_ms, created_at
		 FROM generation_outcomes WHERE session_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []models.GenerationOutcome
	for rows.Next() {
		var o models.GenerationOutcome
		if err := rows.Scan(&o.SessionID, &o.Model, &o.Success, &o.ProcessingMs, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		outcomes = append(outcomes, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	s.cache.CacheOutcomes(ctx, sessionID, outcomes)
	return outcomes, nil
}

// RecordOutcome appends one generation outcome and bumps the session
// counters. The cached outcome window is invalidated, not rewritten.
func (s *Service) RecordOutcome(ctx context.Context, o models.GenerationOutcome) error {
	if o.SessionID <= 0 {
		return nil
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin outcome tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO generation_outcomes (session_id, model, success, processing_ms, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		o.SessionID, o.Model, o.Success, o.ProcessingMs, o.CreatedAt); err != nil {
		return fmt.Errorf("insert outcome: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE sessions SET generation_count = generation_count + 1, last_model = ?, updated_at = ? WHERE id = ?`,
		o.Model, o.CreatedAt, o.SessionID); err != nil {
		return fmt.Errorf("update session counters: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit outcome tx: %w", err)
	}
	s.cache.InvalidateOutcomes(ctx, o.SessionID)
	return nil
}

const selectSummary = `SELECT id, reference, transcript_id, session_id, style, status, raw_content, content, metadata,
       model, model_name, fallback_triggered, attempt_count, input_tokens, output_tokens, cost_usd, processing_ms,
       error_message, created_at, updated_at
FROM summaries`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *Service) scanSummary(row rowScanner) (*models.Summary, error) {
	var (
		sum       models.Summary
		sessionID sql.NullInt64
		errMsg    sql.NullString // mysql error_message is nullable
		meta      string
	)
	err := row.Scan(&sum.ID, &sum.Reference, &sum.TranscriptID, &sessionID, &sum.Style, &sum.Status,
		&sum.RawContent, &sum.Content, &meta,
		&sum.Model, &sum.ModelName, &sum.FallbackTriggered, &sum.AttemptCount,
		&sum.InputTokens, &sum.OutputTokens, &sum.CostUSD, &sum.ProcessingMs,
		&errMsg, &sum.CreatedAt, &sum.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("summary: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan summary: %w", err)
	}
	sum.SessionID = sessionID.Int64
	sum.ErrorMessage = errMsg.String

	var decoded summaryMetadata
	if err := json.Unmarshal([]byte(meta), &decoded); err != nil {
		log.Printf("decode metadata for summary %d: %v", sum.ID, err)
	} else {
		sum.Structure = decoded.Structure
		sum.Scores = decoded.Scores
		sum.Quality = decoded.Quality
		sum.Formats = decoded.Formats
		sum.UI = decoded.UI
	}
	return &sum, nil
}
