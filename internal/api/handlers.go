package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"meetsumgo/internal/models"
	"meetsumgo/internal/service/recorder"
	"meetsumgo/internal/service/summarizer"
	"meetsumgo/internal/worker"
)

// Submitter queues generation jobs. Implemented by the worker dispatcher.
type Submitter interface {
	Submit(worker.Job) error
}

// Pipeline is the summarization surface the handlers call directly (stats and
// config introspection; generation itself goes through the dispatcher).
type Pipeline interface {
	Stats() models.FallbackStatistics
	ResetStats()
	ConfigSnapshot() summarizer.ConfigView
}

const defaultGenerateTimeout = 2 * time.Minute

// Handler wires HTTP routes to the recorder and the summarization pipeline.
type Handler struct {
	recorder        *recorder.Service
	pipeline        Pipeline
	dispatcher      Submitter
	generateTimeout time.Duration
}

// NewHandler constructs a Handler instance.
func NewHandler(rec *recorder.Service, pipeline Pipeline, dispatcher Submitter) *Handler {
	return &Handler{
		recorder:        rec,
		pipeline:        pipeline,
		dispatcher:      dispatcher,
		generateTimeout: defaultGenerateTimeout,
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	api.POST("/transcripts", h.createTranscript)
	api.GET("/transcripts/:id", h.getTranscript)
	api.GET("/transcripts/:id/summaries", h.listTranscriptSummaries)
	api.POST("/transcripts/:id/summaries", h.generateSummary)
	api.GET("/summaries/:id", h.getSummary)
	api.PUT("/summaries/:id", h.editSummary)
	api.GET("/sessions/:id/summaries", h.listSessionSummaries)
	api.GET("/fallback/stats", h.getFallbackStats)
	api.POST("/fallback/stats/reset", h.resetFallbackStats)
	api.GET("/fallback/config", h.getFallbackConfig)
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid id",
			"code":  string(summarizer.KindValidation),
		})
		return 0, false
	}
	return id, true
}

// errorResponse maps a pipeline failure onto an HTTP status and the two-part
// error body: user-safe message plus stable machine code.
func errorResponse(c *gin.Context, err error) {
	if errors.Is(err, recorder.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "resource not found",
			"code":  "NOT_FOUND",
		})
		return
	}
	kind := summarizer.KindOf(err)
	c.JSON(statusForKind(kind), gin.H{
		"error": kind.UserMessage(),
		"code":  string(kind),
	})
}

func statusForKind(kind summarizer.ErrorKind) int {
	switch kind {
	case summarizer.KindValidation:
		return http.StatusBadRequest
	case summarizer.KindTranscript:
		return http.StatusConflict
	case summarizer.KindRateLimit:
		return http.StatusTooManyRequests
	case summarizer.KindTimeout:
		return http.StatusGatewayTimeout
	case summarizer.KindServiceUnavailable, summarizer.KindNetwork,
		summarizer.KindAuth, summarizer.KindMalformed, summarizer.KindEmptyResponse:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

type createTranscriptRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func (h *Handler) createTranscript(c *gin.Context) {
	var req createTranscriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid request body",
			"code":  string(summarizer.KindValidation),
		})
		return
	}
	transcript, err := h.recorder.CreateTranscript(c.Request.Context(), req.Title, req.Content)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
			"code":  string(summarizer.KindValidation),
		})
		return
	}
	c.JSON(http.StatusCreated, transcript)
}

func (h *Handler) getTranscript(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	transcript, err := h.recorder.GetTranscript(c.Request.Context(), id)
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, transcript)
}

type generateRequest struct {
	Style              string `json:"style"`
	CustomInstructions string `json:"custom_instructions"`
	Urgency            string `json:"urgency"`
	ForceModel         string `json:"force_model"`
	SessionToken       string `json:"session_token"`
}

func (h *Handler) generateSummary(c *gin.Context) {
	transcriptID, ok := pathID(c)
	if !ok {
		return
	}
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid request body",
			"code":  string(summarizer.KindValidation),
		})
		return
	}
	style := models.SummaryStyle(req.Style)
	if !models.ValidStyle(style) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "unknown summary style",
			"code":  string(summarizer.KindValidation),
		})
		return
	}
	switch req.ForceModel {
	case "", string(models.TierPrimary), string(models.TierFallback):
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "force_model must be primary or fallback",
			"code":  string(summarizer.KindValidation),
		})
		return
	}

	session, err := h.recorder.EnsureSession(c.Request.Context(), req.SessionToken)
	if err != nil {
		errorResponse(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.generateTimeout)
	defer cancel()

	task := &worker.GenerateTask{
		Ctx: ctx,
		Req: models.GenerationRequest{
			TranscriptID:       transcriptID,
			SessionID:          session.ID,
			Style:              style,
			CustomInstructions: req.CustomInstructions,
			Urgency:            models.Urgency(req.Urgency),
			ForceModel:         models.ModelTier(req.ForceModel),
		},
		Result: make(chan worker.GenerateResult, 1),
	}
	if err := h.dispatcher.Submit(worker.Job{Type: worker.Generate, Task: task}); err != nil {
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error": "server is busy, please retry",
			"code":  string(summarizer.KindRateLimit),
		})
		return
	}

	select {
	case res := <-task.Result:
		if res.Err != nil {
			errorResponse(c, res.Err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"summary":       res.Summary,
			"session_token": session.Token,
		})
	case <-ctx.Done():
		c.JSON(http.StatusGatewayTimeout, gin.H{
			"error": summarizer.KindTimeout.UserMessage(),
			"code":  string(summarizer.KindTimeout),
		})
	}
}

func (h *Handler) getSummary(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	summary, err := h.recorder.GetSummary(c.Request.Context(), id)
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

type editSummaryRequest struct {
	Content string `json:"content"`
}

func (h *Handler) editSummary(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req editSummaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid request body",
			"code":  string(summarizer.KindValidation),
		})
		return
	}
	summary, err := h.recorder.AppendEdit(c.Request.Context(), id, req.Content)
	if err != nil {
		if errors.Is(err, recorder.ErrNotFound) {
			errorResponse(c, err)
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
			"code":  string(summarizer.KindValidation),
		})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *Handler) listTranscriptSummaries(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if _, err := h.recorder.GetTranscript(c.Request.Context(), id); err != nil {
		errorResponse(c, err)
		return
	}
	summaries, err := h.recorder.ListTranscriptSummaries(c.Request.Context(), id)
	if err != nil {
		errorResponse(c, err)
		return
	}
	if summaries == nil {
		summaries = make([]*models.Summary, 0)
	}
	c.JSON(http.StatusOK, gin.H{"summaries": summaries})
}

func (h *Handler) listSessionSummaries(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "invalid limit",
				"code":  string(summarizer.KindValidation),
			})
			return
		}
		limit = parsed
	}
	summaries, err := h.recorder.ListSessionSummaries(c.Request.Context(), id, limit)
	if err != nil {
		errorResponse(c, err)
		return
	}
	if summaries == nil {
		summaries = make([]*models.Summary, 0)
	}
	c.JSON(http.StatusOK, gin.H{"summaries": summaries})
}

func (h *Handler) getFallbackStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.pipeline.Stats())
}

func (h *Handler) resetFallbackStats(c *gin.Context) {
	h.pipeline.ResetStats()
	c.JSON(http.StatusOK, gin.H{"reset": true})
}

func (h *Handler) getFallbackConfig(c *gin.Context) {
	c.JSON(http.StatusOK, h.pipeline.ConfigSnapshot())
}
