package summarizer

import (
	"context"
	"fmt"
	"strings"

	"meetsumgo/internal/config"
	"meetsumgo/internal/models"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"
)

// CompletionResult is one successful round trip to a completion backend.
type CompletionResult struct {
	Content      string
	InputTokens  int
	OutputTokens int
	ModelName    string
}

// Completer abstracts one completion call for a chosen tier. The orchestrator
// owns retries; implementations must not retry internally.
type Completer interface {
	Complete(ctx context.Context, tier models.ModelTier, pkg *models.PromptPackage) (*CompletionResult, error)
}

type tierModel struct {
	chat model.BaseChatModel
	cfg  config.ModelConfig
}

// Invoker holds one eino chat model per tier and translates transport
// failures into the pipeline error taxonomy.
type Invoker struct {
	tiers map[models.ModelTier]tierModel
}

// NewInvoker builds chat models for both tiers from config.
func NewInvoker(ctx context.Context, cfg *config.Config) (*Invoker, error) {
	primary, err := newChatModel(ctx, cfg, cfg.Models.Primary)
	if err != nil {
		return nil, fmt.Errorf("init primary model: %w", err)
	}
	fallback, err := newChatModel(ctx, cfg, cfg.Models.Fallback)
	if err != nil {
		return nil, fmt.Errorf("init fallback model: %w", err)
	}
	return &Invoker{
		tiers: map[models.ModelTier]tierModel{
			models.TierPrimary:  {chat: primary, cfg: cfg.Models.Primary},
			models.TierFallback: {chat: fallback, cfg: cfg.Models.Fallback},
		},
	}, nil
}

func newChatModel(ctx context.Context, cfg *config.Config, mc config.ModelConfig) (model.BaseChatModel, error) {
	provCfg, ok := cfg.Providers[mc.Provider]
	if !ok {
		return nil, fmt.Errorf("provider %s not configured", mc.Provider)
	}

	switch mc.Provider {
	case "openai":
		return openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL: provCfg.BaseURL,
			Model:   mc.Model,
			APIKey:  provCfg.APIKey,
		})
	case "gemini":
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey: provCfg.APIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("new gemini client: %w", err)
		}
		return gemini.NewChatModel(ctx, &gemini.Config{
			Client: client,
			Model:  mc.Model,
		})
	case "claude":
		var baseURLPtr *string
		if provCfg.BaseURL != "" {
			baseURLPtr = &provCfg.BaseURL
		}
		return claude.NewChatModel(ctx, &claude.Config{
			APIKey:    provCfg.APIKey,
			Model:     mc.Model,
			BaseURL:   baseURLPtr,
			MaxTokens: mc.MaxOutputTokens,
		})
	}
	return nil, fmt.Errorf("invalid provider: %s", mc.Provider)
}

// Complete performs one request/response unit against the tier's backend.
// Empty completion content is rejected as EMPTY_RESPONSE even on transport
// success.
func (inv *Invoker) Complete(ctx context.Context, tier models.ModelTier, pkg *models.PromptPackage) (*CompletionResult, error) {
	tm, ok := inv.tiers[tier]
	if !ok {
		return nil, NewError(KindValidation, "unknown model tier %q", tier)
	}

	resp, err := tm.chat.Generate(ctx, toSchemaMessages(pkg.Messages),
		model.WithMaxTokens(pkg.MaxOutputTokens),
		model.WithTemperature(pkg.Temperature),
	)
	if err != nil {
		return nil, Classify(err)
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return nil, NewError(KindEmptyResponse, "model %s returned empty content", tm.cfg.Model)
	}

	result := &CompletionResult{
		Content:   resp.Content,
		ModelName: tm.cfg.Model,
	}
	if resp.ResponseMeta != nil && resp.ResponseMeta.Usage != nil {
		result.InputTokens = resp.ResponseMeta.Usage.PromptTokens
		result.OutputTokens = resp.ResponseMeta.Usage.CompletionTokens
	}
	if result.InputTokens == 0 {
		result.InputTokens = pkg.EstimatedInputTokens
	}
	if result.OutputTokens == 0 {
		result.OutputTokens = EstimateTokens(resp.Content)
	}
	return result, nil
}

// ModelConfigFor returns the tier's model config (for cost accounting).
func (inv *Invoker) ModelConfigFor(tier models.ModelTier) config.ModelConfig {
	return inv.tiers[tier].cfg
}

func toSchemaMessages(messages []models.PromptMessage) []*schema.Message {
	out := make([]*schema.Message, 0, len(messages))
	for _, msg := range messages {
		var role schema.RoleType
		switch msg.Role {
		case models.RoleUser:
			role = schema.User
		case models.RoleAssistant:
			role = schema.Assistant
		case models.RoleSystem:
			role = schema.System
		default:
			role = schema.User
		}
		out = append(out, &schema.Message{Role: role, Content: msg.Content})
	}
	return out
}
