package models

import "time"

// Session groups summaries generated in one user workflow.
type Session struct {
	ID              int64     `json:"id"`
	Token           string    `json:"token"`
	GenerationCount int       `json:"generation_count"`
	LastModel       ModelTier `json:"last_model,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
