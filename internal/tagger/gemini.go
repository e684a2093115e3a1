package tagger

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/sorenlabs/archtagger/pkg/pipeline/core"
	"google.golang.org/genai"
)

type Config struct {
	APIKey string
	Model  string

	// BaseURL overrides the Gemini API base URL. Useful for proxies/testing.
	BaseURL string
}

// Classifier sends one image plus the tagging prompt to a Gemini vision
// model and interprets the response as a tag list.
type Classifier struct {
	client *genai.Client
	model  string
}

func NewClassifier(ctx context.Context, cfg Config) (*Classifier, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("model name is required")
	}

	cc := &genai.ClientConfig{
		APIKey:  strings.TrimSpace(cfg.APIKey),
		Backend: genai.BackendGeminiAPI,
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		cc.HTTPOptions.BaseURL = strings.TrimSpace(cfg.BaseURL)
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, err
	}
	return &Classifier{client: client, model: strings.TrimSpace(cfg.Model)}, nil
}

func (c *Classifier) Model() string {
	return c.model
}

// generationConfig keeps tagging output terse and deterministic.
var generationConfig = &genai.GenerateContentConfig{
	Temperature:      genai.Ptr[float32](0.1),
	TopP:             genai.Ptr[float32](0.95),
	TopK:             genai.Ptr[float32](40),
	MaxOutputTokens:  2048,
	CandidateCount:   1,
	ResponseMIMEType: "application/json",
	SafetySettings: []*genai.SafetySetting{
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
	},
}

// Classify submits the image and prompt, returning the extracted tag list.
// A blocked response (no candidates) or unparseable output yields empty tags
// with no error: those are per-item degradations, never run failures.
func (c *Classifier) Classify(ctx context.Context, prompt string, image []byte, mimeType string) ([]string, error) {
	contents := []*genai.Content{{
		Role: genai.RoleUser,
		Parts: []*genai.Part{
			{InlineData: &genai.Blob{MIMEType: mimeType, Data: image}},
			{Text: prompt},
		},
	}}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, generationConfig)
	if err != nil {
		return nil, classifyErr(err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, nil
	}

	tags, ok := ExtractTagArray(resp.Text())
	if !ok {
		return nil, nil
	}
	return tags, nil
}

// classifyErr maps Gemini API failures onto the retry taxonomy: 429 waits
// out the rate limit window, 5xx and network timeouts replay, everything
// else is permanent.
func classifyErr(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 429:
			return &core.RateLimitError{Err: err}
		case apiErr.Code/100 == 5:
			return &core.TransientError{Err: err}
		default:
			return err
		}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &core.TransientError{Err: err}
	}
	return err
}
