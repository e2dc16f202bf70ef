package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cleanscore-server/models"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

var (
	ErrAnalyzerDisabled = errors.New("analyzer: no API key configured")
	ErrMalformedReport  = errors.New("analyzer: malformed report")
)

const (
	reportFunctionName = "get_cleanliness_report"
	cleanlinessPrompt  = "Analyze this image: is the natural environment clean? Is any trash visible? " +
		"Rate the cleanliness on a scale from 1 to 10."
)

// Analyzer scores an image for environmental cleanliness.
type Analyzer interface {
	Analyze(ctx context.Context, image []byte, contentType string) (models.CleanlinessReport, error)
}

type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	MaxRetries int
	HTTPClient *http.Client
}

// OpenAIAnalyzer asks a vision chat model for a forced function call whose
// arguments carry the cleanliness report.
type OpenAIAnalyzer struct {
	client  openai.Client
	model   string
	timeout time.Duration
}

// NewAnalyzer returns an OpenAI-backed analyzer, or a DisabledAnalyzer when
// no API key is configured.
func NewAnalyzer(cfg OpenAIConfig) Analyzer {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return DisabledAnalyzer{}
	}
	return NewOpenAIAnalyzer(cfg)
}

func NewOpenAIAnalyzer(cfg OpenAIConfig) *OpenAIAnalyzer {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	model := cfg.Model
	if model == "" {
		model = string(openai.ChatModelGPT4o)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OpenAIAnalyzer{
		client:  openai.NewClient(opts...),
		model:   model,
		timeout: timeout,
	}
}

func (a *OpenAIAnalyzer) Analyze(ctx context.Context, image []byte, contentType string) (models.CleanlinessReport, error) {
	if len(image) == 0 {
		return models.CleanlinessReport{}, fmt.Errorf("analyzer: empty image")
	}
	if contentType == "" {
		contentType = "image/jpeg"
	}
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	dataURL := "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(image)
	completion, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(a.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(cleanlinessPrompt),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL}),
			}),
		},
		Tools: []openai.ChatCompletionToolParam{{
			Function: openai.FunctionDefinitionParam{
				Name:        reportFunctionName,
				Description: openai.String("Provides a detailed report on the cleanliness of the environment in the image."),
				Parameters:  reportSchema,
			},
		}},
		ToolChoice: openai.ChatCompletionToolChoiceOptionUnionParam{
			OfChatCompletionNamedToolChoice: &openai.ChatCompletionNamedToolChoiceParam{
				Function: openai.ChatCompletionNamedToolChoiceFunctionParam{Name: reportFunctionName},
			},
		},
	})
	if err != nil {
		return models.CleanlinessReport{}, fmt.Errorf("analyzer: chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return models.CleanlinessReport{}, fmt.Errorf("%w: no choices", ErrMalformedReport)
	}
	for _, call := range completion.Choices[0].Message.ToolCalls {
		if call.Function.Name == reportFunctionName {
			return ParseReport(call.Function.Arguments)
		}
	}
	return models.CleanlinessReport{}, fmt.Errorf("%w: no %s call", ErrMalformedReport, reportFunctionName)
}

var reportSchema = openai.FunctionParameters{
	"type": "object",
	"properties": map[string]any{
		"cleanliness_score": map[string]any{
			"type":        "integer",
			"description": "A score from 1 to 10 indicating the cleanliness of the environment.",
		},
		"trash_present": map[string]any{
			"type":        "boolean",
			"description": "Indicates whether trash is present in the image.",
		},
		"details": map[string]any{
			"type":        "string",
			"description": "Additional details about the cleanliness and any observed trash.",
		},
	},
	"required": []string{"cleanliness_score", "trash_present", "details"},
}

// ParseReport decodes function-call arguments. The score must be present
// and within 1..10.
func ParseReport(arguments string) (models.CleanlinessReport, error) {
	var raw struct {
		Score        *json.Number `json:"cleanliness_score"`
		TrashPresent bool         `json:"trash_present"`
		Details      string       `json:"details"`
	}
	if err := json.Unmarshal([]byte(arguments), &raw); err != nil {
		return models.CleanlinessReport{}, fmt.Errorf("%w: %v", ErrMalformedReport, err)
	}
	if raw.Score == nil {
		return models.CleanlinessReport{}, fmt.Errorf("%w: missing cleanliness_score", ErrMalformedReport)
	}
	score, err := raw.Score.Int64()
	if err != nil {
		return models.CleanlinessReport{}, fmt.Errorf("%w: cleanliness_score %q is not an integer", ErrMalformedReport, raw.Score.String())
	}
	if score < models.MinCleanlinessScore || score > models.MaxCleanlinessScore {
		return models.CleanlinessReport{}, fmt.Errorf("%w: cleanliness_score %d out of range", ErrMalformedReport, score)
	}
	return models.CleanlinessReport{
		Score:        int(score),
		TrashPresent: raw.TrashPresent,
		Details:      strings.TrimSpace(raw.Details),
	}, nil
}

// DisabledAnalyzer fails every call; posts are stored without a score.
type DisabledAnalyzer struct{}

func (DisabledAnalyzer) Analyze(context.Context, []byte, string) (models.CleanlinessReport, error) {
	return models.CleanlinessReport{}, ErrAnalyzerDisabled
}
