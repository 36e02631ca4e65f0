package backdrop

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/nightlifeflyers/flyerstudio/internal/mood"
	"github.com/nightlifeflyers/flyerstudio/internal/raster"
)

// DefaultModel is the Gemini image model used when none is configured.
const DefaultModel = "gemini-2.5-flash-image"

// ContentGenerator is the subset of *genai.Models used here.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// SignalSource extracts mood signals from reference images.
type SignalSource interface {
	Extract(ctx context.Context, src string) *mood.Signal
}

// Request describes one background generation.
type Request struct {
	Prompt          string `json:"prompt"`
	ReferenceSource string `json:"referenceSource,omitempty"`
	AspectRatio     string `json:"aspectRatio,omitempty"`
	Seed            *int64 `json:"seed,omitempty"`
}

// Image is a generated background.
type Image struct {
	Data        []byte
	MimeType    string
	UsedSeed    int64
	StylePrompt string
}

// DataURI encodes the image as a base64 data URI.
func (img *Image) DataURI() string {
	return "data:" + img.MimeType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

// Generator produces backgrounds through a ContentGenerator.
type Generator struct {
	models  ContentGenerator
	model   string
	signals SignalSource
}

// NewGenerator wraps an existing content generator. signals may be nil.
func NewGenerator(models ContentGenerator, model string, signals SignalSource) *Generator {
	if model == "" {
		model = DefaultModel
	}
	return &Generator{models: models, model: model, signals: signals}
}

// NewGeminiGenerator creates a generator backed by the Gemini API.
func NewGeminiGenerator(ctx context.Context, apiKey, model string, signals SignalSource) (*Generator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return NewGenerator(client.Models, model, signals), nil
}

// Generate runs one request. A reference that cannot be analysed only loses
// its style hints; it never fails the request.
func (g *Generator) Generate(ctx context.Context, req Request) (*Image, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, fmt.Errorf("prompt is required")
	}
	aspect := req.AspectRatio
	if aspect == "" {
		aspect = DefaultAspectRatio
	}
	if err := ValidateAspectRatio(aspect); err != nil {
		return nil, err
	}
	if req.Seed != nil {
		if err := ValidateSeed(*req.Seed); err != nil {
			return nil, err
		}
	}

	var sig *mood.Signal
	if req.ReferenceSource != "" && g.signals != nil {
		sig = g.signals.Extract(ctx, req.ReferenceSource)
	}

	prompt := BuildPrompt(req.Prompt, aspect, sig)
	parts := []*genai.Part{genai.NewPartFromText(prompt)}
	if sig != nil && sig.BlurredReference != nil {
		if part := referencePart(*sig.BlurredReference); part != nil {
			parts = append(parts, part)
		}
	}

	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
		ImageConfig:        &genai.ImageConfig{AspectRatio: aspect},
	}
	var seed int64
	if req.Seed != nil {
		s := int32(*req.Seed)
		config.Seed = &s
		seed = int64(s)
	}

	slog.Info("Generating backdrop", "model", g.model, "aspect", aspect,
		"reference", sig != nil, "parts", len(parts))

	resp, err := g.models.GenerateContent(ctx, g.model,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, config)
	if err != nil {
		return nil, fmt.Errorf("failed to generate backdrop: %w", err)
	}

	img, err := parseResponse(resp)
	if err != nil {
		return nil, err
	}
	img.UsedSeed = seed
	if sig != nil {
		img.StylePrompt = sig.StylePrompt
	}
	return img, nil
}

// referencePart turns a thumbnail data URI into an inline image part.
func referencePart(uri string) *genai.Part {
	mime, data, err := raster.DecodeDataURI(uri)
	if err != nil {
		slog.Warn("Dropping unreadable reference thumbnail", "error", err)
		return nil
	}
	return &genai.Part{InlineData: &genai.Blob{MIMEType: mime, Data: data}}
}

// parseResponse returns the first inline image of the first candidate.
func parseResponse(resp *genai.GenerateContentResponse) (*Image, error) {
	if resp == nil {
		return nil, fmt.Errorf("empty response from image model")
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return nil, fmt.Errorf("prompt blocked: %s %s", resp.PromptFeedback.BlockReason, resp.PromptFeedback.BlockReasonMessage)
	}
	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("image model returned no candidates")
	}

	candidate := resp.Candidates[0]
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return &Image{Data: part.InlineData.Data, MimeType: part.InlineData.MIMEType}, nil
			}
		}
	}

	if candidate.FinishReason != genai.FinishReasonUnspecified && candidate.FinishReason != genai.FinishReasonStop {
		return nil, fmt.Errorf("generation stopped abnormally (finish reason: %s)", candidate.FinishReason)
	}
	return nil, fmt.Errorf("image model returned no image data")
}
