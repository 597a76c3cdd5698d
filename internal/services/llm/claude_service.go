package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/docharvest/internal/common"
	"github.com/ternarybob/docharvest/internal/interfaces"
)

// ClaudeService implements interfaces.LLMService using the Anthropic API.
// There is no operator-selectable cloud/offline mode here: this system
// only ever classifies PDFs against the Anthropic API or falls back to
// the filename heuristic, so no Embed/GetMode surface is needed.
type ClaudeService struct {
	config    common.ClassifierConfig
	logger    arbor.ILogger
	client    *anthropic.Client
	maxTokens int
}

const defaultClassifierModel = "claude-haiku-3-5-20241022"

// NewClaudeService builds a Claude-backed LLMService from Classifier
// config. The API key comes from config (itself populated from
// LLM_API_KEY by internal/common.LoadFromFiles).
func NewClaudeService(cfg common.ClassifierConfig, logger arbor.ILogger) (*ClaudeService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("classifier API key is required (set LLM_API_KEY or classifier.api_key)")
	}
	if cfg.Model == "" {
		cfg.Model = defaultClassifierModel
	}

	client := anthropic.NewClient(option.WithAPIKey(cfg.APIKey))

	logger.Debug().
		Str("model", cfg.Model).
		Dur("timeout", cfg.Timeout).
		Msg("Claude classifier service initialized")

	return &ClaudeService{config: cfg, logger: logger, client: client, maxTokens: 1024}, nil
}

// Chat sends messages to Claude and returns the assistant's text response.
func (s *ClaudeService) Chat(ctx context.Context, messages []interfaces.Message) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("messages cannot be empty for chat completion")
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	return s.generateCompletion(timeoutCtx, messages)
}

// HealthCheck exercises the Claude client with a minimal probe.
func (s *ClaudeService) HealthCheck(ctx context.Context) error {
	if s.client == nil {
		return fmt.Errorf("Claude client is not initialized")
	}

	healthCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	response, err := s.generateCompletion(healthCtx, []interfaces.Message{{Role: "user", Content: "ping"}})
	if err != nil {
		return fmt.Errorf("Claude health check failed: %w", err)
	}
	if len(strings.TrimSpace(response)) == 0 {
		return fmt.Errorf("Claude probe returned empty response")
	}
	return nil
}

// Close releases resources held by the service.
func (s *ClaudeService) Close() error {
	s.client = nil
	return nil
}

func (s *ClaudeService) generateCompletion(ctx context.Context, messages []interfaces.Message) (string, error) {
	claudeMessages, systemText, err := convertMessagesToClaude(messages)
	if err != nil {
		return "", fmt.Errorf("failed to convert messages to Claude format: %w", err)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(s.config.Model),
		MaxTokens: int64(s.maxTokens),
		Messages:  claudeMessages,
	}
	if systemText != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemText}}
	}

	resp, err := s.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("Claude API call failed: %w", err)
	}

	var response strings.Builder
	for _, block := range resp.Content {
		if block.Type == anthropic.ContentBlockTypeText {
			response.WriteString(block.Text)
		}
	}
	if response.Len() == 0 {
		return "", fmt.Errorf("no response generated from Claude API")
	}
	return response.String(), nil
}

// convertMessagesToClaude converts []interfaces.Message to Claude's
// MessageParam format, extracting any system message for the System
// parameter and preserving chronological order of the rest.
func convertMessagesToClaude(messages []interfaces.Message) ([]anthropic.MessageParam, string, error) {
	if len(messages) == 0 {
		return nil, "", fmt.Errorf("messages cannot be empty")
	}

	hasUserMessage := false
	for _, msg := range messages {
		if msg.Role == "user" {
			hasUserMessage = true
			break
		}
	}
	if !hasUserMessage {
		return nil, "", fmt.Errorf("at least one message must have role 'user'")
	}

	claudeMessages := make([]anthropic.MessageParam, 0, len(messages))
	var systemText string
	for _, msg := range messages {
		if msg.Role == "system" {
			if systemText == "" {
				systemText = msg.Content
			}
			continue
		}
		switch msg.Role {
		case "assistant":
			claudeMessages = append(claudeMessages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			claudeMessages = append(claudeMessages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	return claudeMessages, systemText, nil
}
