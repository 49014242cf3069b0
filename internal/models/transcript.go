package models

import "time"

// TranscriptStatus tracks the upload subsystem's processing state.
type TranscriptStatus string

const (
	TranscriptUploaded   TranscriptStatus = "uploaded"
	TranscriptProcessing TranscriptStatus = "processing"
	TranscriptProcessed  TranscriptStatus = "processed"
	TranscriptError      TranscriptStatus = "error"
)

// Transcript is the immutable raw meeting text the pipeline reads.
type Transcript struct {
	ID            int64            `json:"id"`
	Reference     string           `json:"reference"`
	Title         string           `json:"title"`
	Content       string           `json:"content"`
	CharCount     int              `json:"char_count"`
	TokenEstimate int              `json:"token_estimate"`
	Status        TranscriptStatus `json:"status"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}
