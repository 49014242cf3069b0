package worker

import (
	"context"

	"meetsumgo/internal/models"
)

type JobType int

const (
	Generate JobType = iota
	Stop
)

// GenerateResult is delivered on the task's result channel exactly once.
type GenerateResult struct {
	Summary *models.Summary
	Err     error
}

// GenerateTask carries one summarization request through the dispatcher.
type GenerateTask struct {
	Ctx    context.Context
	Req    models.GenerationRequest
	Result chan GenerateResult
}

type Job struct {
	Type JobType
	Task *GenerateTask
}

func (job Job) sessionID() int64 {
	if job.Task == nil {
		return 0
	}
	return job.Task.Req.SessionID
}

// Generator runs the summarization pipeline for one request. Satisfied by the
// summarizer service.
type Generator interface {
	Generate(ctx context.Context, req models.GenerationRequest) (*models.Summary, error)
}
