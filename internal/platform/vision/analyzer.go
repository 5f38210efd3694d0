package vision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/satpugnet/shopify-visiontags-ai/internal/analysis"
	"github.com/satpugnet/shopify-visiontags-ai/internal/config"
)

// analysisPrompt instructs the model to return structured suggestions for a
// single product image.
const analysisPrompt = `You are a product catalog assistant. Analyze the
attached product image and respond with a single JSON object of the form
{"fields": {"<attribute>": "<value>", ...}, "labels": ["<tag>", ...]}.
Fields should cover visible attributes such as color, material, pattern, and
style. Labels are short lowercase tags a merchant would use, most relevant
first, at most 15. Respond with JSON only.`

// suggestionSchema is the JSON shape the model is asked to produce.
type suggestionSchema struct {
	Fields map[string]string `json:"fields"`
	Labels []string          `json:"labels"`
}

// Analyzer implements analysis.Analyzer using the Gemini API.
type Analyzer struct {
	logger  *slog.Logger
	config  config.VisionConfig
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewAnalyzer creates an Analyzer with the provided configuration.
func NewAnalyzer(ctx context.Context, logger *slog.Logger, cfg config.VisionConfig) (*Analyzer, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", analysis.ErrInvalidConfig)
	}

	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", analysis.ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", analysis.ErrInvalidConfig, err)
	}

	return &Analyzer{
		logger:  logger,
		config:  cfg,
		client:  client,
		model:   cfg.ModelName,
		timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
	}, nil
}

// Analyze sends the image and prompt to Gemini and parses the suggestion.
// The call is bounded by the configured timeout. Retrying is the caller's
// responsibility; this method only classifies failures.
func (a *Analyzer) Analyze(ctx context.Context, imageRef string) (*analysis.Suggestion, error) {
	if imageRef == "" {
		return nil, fmt.Errorf("%w: empty image reference", analysis.ErrImageRejected)
	}

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(analysisPrompt),
			genai.NewPartFromURI(imageRef, mimeTypeForRef(imageRef)),
		}, genai.RoleUser),
	}

	genConfig := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	}

	a.logger.DebugContext(ctx, "calling vision model",
		"model", a.model,
		"image_ref", imageRef)

	resp, err := a.client.Models.GenerateContent(callCtx, a.model, contents, genConfig)
	if err != nil {
		return nil, a.classifyAPIError(ctx, err)
	}

	return a.parseResponse(ctx, resp)
}

// classifyAPIError maps a Gemini transport/API failure onto the analysis
// error taxonomy.
func (a *Analyzer) classifyAPIError(ctx context.Context, err error) error {
	a.logger.ErrorContext(ctx, "vision model call failed", "error", err)

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: call timed out", analysis.ErrTransient)
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 429:
			return fmt.Errorf("%w: %v", analysis.ErrRateLimited, err)
		case apiErr.Code >= 500:
			return fmt.Errorf("%w: %v", analysis.ErrUnavailable, err)
		case apiErr.Code >= 400:
			// The model could not use this input; retrying the same image
			// cannot succeed.
			return fmt.Errorf("%w: %v", analysis.ErrImageRejected, err)
		}
	}

	// Unrecognized failures are assumed transient (network interruptions,
	// connection resets) and left to the queue's retry budget.
	return fmt.Errorf("%w: %v", analysis.ErrTransient, err)
}

// parseResponse validates the model output and extracts the suggestion.
func (a *Analyzer) parseResponse(ctx context.Context, resp *genai.GenerateContentResponse) (*analysis.Suggestion, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("%w: no candidates returned", analysis.ErrInvalidResponse)
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return nil, fmt.Errorf("%w: finish reason safety", analysis.ErrContentBlocked)
	}
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return nil, fmt.Errorf("%w: empty content", analysis.ErrInvalidResponse)
	}

	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		text.WriteString(part.Text)
	}

	var parsed suggestionSchema
	if err := json.Unmarshal([]byte(text.String()), &parsed); err != nil {
		return nil, fmt.Errorf("%w: failed to parse JSON output: %v", analysis.ErrInvalidResponse, err)
	}

	if len(parsed.Fields) == 0 && len(parsed.Labels) == 0 {
		return nil, fmt.Errorf("%w: no suggestions in output", analysis.ErrInvalidResponse)
	}

	a.logger.DebugContext(ctx, "vision model response parsed",
		"field_count", len(parsed.Fields),
		"label_count", len(parsed.Labels))

	return &analysis.Suggestion{
		Fields: parsed.Fields,
		Labels: parsed.Labels,
	}, nil
}

// mimeTypeForRef guesses the image MIME type from the reference's extension,
// defaulting to JPEG, which is what the catalog CDN serves for products.
func mimeTypeForRef(ref string) string {
	lower := strings.ToLower(ref)
	// CDN URLs carry query suffixes like "?v=123".
	if i := strings.IndexByte(lower, '?'); i >= 0 {
		lower = lower[:i]
	}

	switch {
	case strings.HasSuffix(lower, ".png"):
		return "image/png"
	case strings.HasSuffix(lower, ".webp"):
		return "image/webp"
	case strings.HasSuffix(lower, ".gif"):
		return "image/gif"
	default:
		return "image/jpeg"
	}
}
