package gcp

import (
	"context"
	"fmt"

	"cloud.google.com/go/vertexai/genai"
)

// --- OCR Model Prompts ---
const OCRSystemPrompt = "You are an optical character recognition engine. You transcribe the text visible in a scanned document page exactly as written. You never summarize, translate, correct, or describe the page."

// OCRUserPrompt is formatted with the language code of the page.
const OCRUserPrompt = `Transcribe all text on the provided page image. The page is written in the language with ISO 639-2 code "%s".

Follow these rules precisely:
1.  Reproduce the text in natural reading order. Separate lines with a newline.
2.  Do not add headings, markdown, commentary, or descriptions of images.
3.  If the page contains no legible text, return an empty string.
4.  Estimate how certain you are of the transcription as a number between 0.0 (pure guess) and 1.0 (certain).

Output a single JSON object with exactly two keys:
    - "text": the transcription as a string.
    - "confidence": the certainty as a number.`

// DefaultOCRModel is used when no model name is configured.
const DefaultOCRModel = "gemini-1.5-pro"

// VertexClient holds the pre-configured generative models for the app.
type VertexClient struct {
	OCRModel   *genai.GenerativeModel
	baseClient *genai.Client
}

// NewVertexClient creates a new client holding the OCR model.
func NewVertexClient(ctx context.Context, projectID, region, modelName string) (*VertexClient, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("NewVertexClient: projectID and region cannot be empty")
	}
	if modelName == "" {
		modelName = DefaultOCRModel
	}

	baseClient, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	ocrModel := baseClient.GenerativeModel(modelName)
	ocrModel.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(OCRSystemPrompt)},
	}
	ocrModel.GenerationConfig = genai.GenerationConfig{
		// Force JSON output so the confidence can be parsed reliably.
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"text":       {Type: genai.TypeString},
				"confidence": {Type: genai.TypeNumber},
			},
			Required: []string{"text", "confidence"},
		},
		Temperature: genai.Ptr[float32](0.0), // deterministic transcription
	}
	ocrModel.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockNone},
	}

	return &VertexClient{
		OCRModel:   ocrModel,
		baseClient: baseClient,
	}, nil
}

func (c *VertexClient) Close() error {
	if c.baseClient != nil {
		return c.baseClient.Close()
	}
	return nil
}
