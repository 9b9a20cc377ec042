package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/ob1hnk/triolingo/domain/entities"
	"github.com/ob1hnk/triolingo/domain/repositories"
)

const (
	defaultModel           = "gemini-2.0-flash"
	defaultTemperature     = 0.7
	defaultTopP            = 0.95
	defaultTopK            = 40
	defaultMaxTokens       = 1024
	defaultTimeoutSeconds  = 60
	defaultRetryAttempts   = 3
	defaultRetryBaseDelay  = time.Second
	defaultRetryMaxDelay   = 10 * time.Second
	transcriptionPromptFmt = "Transcribe the speech in this audio exactly as spoken. The expected language is %q. Respond with the transcript only and no commentary."
)

// GeminiConfig holds the Gemini backend settings. Zero values fall back to defaults.
type GeminiConfig struct {
	APIKey          string
	Model           string
	AudioModel      string
	Temperature     float32
	TopP            float32
	TopK            float32
	MaxOutputTokens int
	TimeoutSeconds  int
}

// ValidateGeminiConfig validates the GeminiConfig
func ValidateGeminiConfig(config GeminiConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("%w: Gemini API key is required", entities.ErrValidation)
	}
	if config.Temperature < 0 || config.Temperature > 2 {
		return fmt.Errorf("%w: temperature must be between 0 and 2, got %f", entities.ErrValidation, config.Temperature)
	}
	if config.TopP < 0 || config.TopP > 1 {
		return fmt.Errorf("%w: topP must be between 0 and 1, got %f", entities.ErrValidation, config.TopP)
	}
	if config.TopK < 0 {
		return fmt.Errorf("%w: topK must be positive, got %f", entities.ErrValidation, config.TopK)
	}
	if config.TimeoutSeconds < 0 {
		return fmt.Errorf("%w: timeout must be positive, got %d", entities.ErrValidation, config.TimeoutSeconds)
	}
	return nil
}

// GeminiLLM implements the LargeLanguageModel interface using Google's Gemini API
type GeminiLLM struct {
	client          *genai.Client
	logger          *zap.Logger
	model           string
	audioModel      string
	temperature     float32
	topP            float32
	topK            float32
	maxOutputTokens int
	timeout         time.Duration
	safetySettings  []*genai.SafetySetting
	retry           retryPolicy
}

// NewGeminiLLM creates a new Gemini LLM instance
func NewGeminiLLM(ctx context.Context, config GeminiConfig, logger *zap.Logger) (*GeminiLLM, error) {
	if err := ValidateGeminiConfig(config); err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	g := &GeminiLLM{
		client:          client,
		logger:          logger,
		model:           config.Model,
		audioModel:      config.AudioModel,
		temperature:     config.Temperature,
		topP:            config.TopP,
		topK:            config.TopK,
		maxOutputTokens: config.MaxOutputTokens,
		timeout:         time.Duration(config.TimeoutSeconds) * time.Second,
		safetySettings:  defaultSafetySettings,
		retry:           retryPolicy{attempts: defaultRetryAttempts, baseDelay: defaultRetryBaseDelay, maxDelay: defaultRetryMaxDelay},
	}

	if g.model == "" {
		g.model = defaultModel
		logger.Info("Using default model", zap.String("model", g.model))
	}
	if g.audioModel == "" {
		g.audioModel = g.model
	}
	if g.temperature == 0 {
		g.temperature = defaultTemperature
	}
	if g.topP == 0 {
		g.topP = defaultTopP
	}
	if g.topK == 0 {
		g.topK = defaultTopK
	}
	if g.maxOutputTokens == 0 {
		g.maxOutputTokens = defaultMaxTokens
	}
	if g.timeout == 0 {
		g.timeout = defaultTimeoutSeconds * time.Second
	}

	return g, nil
}

var defaultSafetySettings = []*genai.SafetySetting{
	{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
	{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
	{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdBlockLowAndAbove},
	{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
}

// Complete implements repositories.LargeLanguageModel
func (g *GeminiLLM) Complete(ctx context.Context, req repositories.CompletionRequest) (string, error) {
	model := req.Model
	if model == "" {
		model = g.model
	}

	system, contents := toGeminiContents(req.Messages)
	if len(contents) == 0 {
		return "", fmt.Errorf("%w: no messages to send", entities.ErrGeneration)
	}

	temperature := g.temperature
	if req.Temperature > 0 {
		temperature = req.Temperature
	}
	maxTokens := g.maxOutputTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}

	config := &genai.GenerateContentConfig{
		SafetySettings:  g.safetySettings,
		Temperature:     genai.Ptr(temperature),
		TopP:            genai.Ptr(g.topP),
		TopK:            genai.Ptr(g.topK),
		MaxOutputTokens: int32(maxTokens),
	}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	text, err := g.generate(ctx, model, contents, config)
	if err != nil {
		return "", fmt.Errorf("%w: %w", entities.ErrGeneration, err)
	}
	return text, nil
}

// Transcribe implements repositories.LargeLanguageModel
func (g *GeminiLLM) Transcribe(ctx context.Context, req repositories.TranscriptionRequest) (string, error) {
	model := req.Model
	if model == "" {
		model = g.audioModel
	}

	prompt := req.Prompt
	if prompt == "" {
		prompt = fmt.Sprintf(transcriptionPromptFmt, req.Language)
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(prompt),
			genai.NewPartFromBytes(req.Audio.Data(), req.Audio.MIMEType()),
		}, genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(0)),
		MaxOutputTokens: int32(g.maxOutputTokens),
	}

	text, err := g.generate(ctx, model, contents, config)
	if err != nil {
		return "", fmt.Errorf("%w: %w", entities.ErrTranscription, err)
	}
	return text, nil
}

func (g *GeminiLLM) generate(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var response *genai.GenerateContentResponse
	err := g.retry.do(ctx, g.logger, func(ctx context.Context) error {
		var err error
		response, err = g.client.Models.GenerateContent(ctx, model, contents, config)
		return err
	})
	if err != nil {
		g.logger.Error("Failed to generate content", zap.String("model", model), zap.Error(err))
		return "", err
	}

	text := extractText(response)
	if text == "" {
		return "", fmt.Errorf("empty response from model %s", model)
	}

	g.logger.Debug("Content generated",
		zap.String("model", model),
		zap.String("responsePreview", preview(text, 50)))
	return text, nil
}

func extractText(response *genai.GenerateContentResponse) string {
	if response == nil || len(response.Candidates) == 0 || response.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range response.Candidates[0].Content.Parts {
		if part.Text != "" {
			b.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(b.String())
}

// toGeminiContents folds system messages into one instruction string since
// Gemini only accepts user and model roles in contents.
func toGeminiContents(messages []repositories.ChatMessage) (string, []*genai.Content) {
	var system []string
	var contents []*genai.Content

	for _, msg := range messages {
		if msg.Role == entities.MessageRoleSystem {
			if msg.Content != "" {
				system = append(system, msg.Content)
			}
			continue
		}

		role := genai.Role(genai.RoleUser)
		if msg.Role == entities.MessageRoleAssistant {
			role = genai.RoleModel
		}

		var parts []*genai.Part
		if msg.Content != "" {
			parts = append(parts, genai.NewPartFromText(msg.Content))
		}
		if msg.Audio != nil && msg.Audio.Len() > 0 {
			parts = append(parts, genai.NewPartFromBytes(msg.Audio.Data(), msg.Audio.MIMEType()))
		}
		if len(parts) == 0 {
			continue
		}
		contents = append(contents, genai.NewContentFromParts(parts, role))
	}

	return strings.Join(system, "\n\n"), contents
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
