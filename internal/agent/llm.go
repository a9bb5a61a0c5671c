// ABOUTME: LLMInvoker adapts a langchaingo llms.Model to the Invoker contract
// ABOUTME: Prepends the system prompt, maps roles, and classifies failures

package agent

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
)

// DefaultSystemPrompt is used when no system prompt is configured.
const DefaultSystemPrompt = "You are a helpful and friendly Minecraft assistant. " +
	"Your goal is to answer questions about Minecraft gameplay, items, blocks, mobs, crafting recipes, and " +
	"mechanics to help make playing Minecraft more enjoyable. " +
	"When you are not sure about something, say so rather than guessing. " +
	"Prioritize information from official sources like minecraft.wiki."

// LLMOptions tune a single GenerateContent call.
type LLMOptions struct {
	SystemPrompt string
	MaxTokens    int
	Temperature  float64
	Timeout      time.Duration
}

// LLMInvoker forwards history to a langchaingo model.
type LLMInvoker struct {
	model        llms.Model
	systemPrompt string
	callOpts     []llms.CallOption
	timeout      time.Duration
	logger       *slog.Logger
}

// NewLLMInvoker wraps model. An empty SystemPrompt falls back to DefaultSystemPrompt.
func NewLLMInvoker(model llms.Model, opts LLMOptions, logger *slog.Logger) *LLMInvoker {
	if logger == nil {
		logger = slog.Default()
	}

	prompt := opts.SystemPrompt
	if strings.TrimSpace(prompt) == "" {
		prompt = DefaultSystemPrompt
	}

	var callOpts []llms.CallOption
	if opts.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(opts.MaxTokens))
	}
	if opts.Temperature > 0 {
		callOpts = append(callOpts, llms.WithTemperature(opts.Temperature))
	}

	return &LLMInvoker{
		model:        model,
		systemPrompt: prompt,
		callOpts:     callOpts,
		timeout:      opts.Timeout,
		logger:       logger,
	}
}

// Invoke sends the system prompt followed by history and returns the first choice.
func (l *LLMInvoker) Invoke(ctx context.Context, history []Turn) Result {
	if l.model == nil {
		return Fail(KindNotConfigured, errors.New("no model"))
	}

	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := l.model.GenerateContent(ctx, toMessageContent(l.systemPrompt, history), l.callOpts...)
	if err != nil {
		l.logger.Warn("model call failed",
			"turns", len(history),
			"duration", time.Since(start),
			"error", err,
		)
		return Fail(KindUpstream, err)
	}

	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return Fail(KindEmptyReply, errors.New("model returned no choices"))
	}

	text := strings.TrimSpace(resp.Choices[0].Content)
	if text == "" {
		return Fail(KindEmptyReply, errors.New("model returned an empty reply"))
	}

	l.logger.Debug("model call complete",
		"turns", len(history),
		"duration", time.Since(start),
		"stop_reason", resp.Choices[0].StopReason,
	)
	return Ok(text)
}

// toMessageContent builds a fresh slice; history is only read.
func toMessageContent(systemPrompt string, history []Turn) []llms.MessageContent {
	msgs := make([]llms.MessageContent, 0, len(history)+1)
	if systemPrompt != "" {
		msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt))
	}
	for _, turn := range history {
		role := llms.ChatMessageTypeHuman
		if turn.Role == RoleAssistant {
			role = llms.ChatMessageTypeAI
		}
		msgs = append(msgs, llms.TextParts(role, turn.Content))
	}
	return msgs
}
