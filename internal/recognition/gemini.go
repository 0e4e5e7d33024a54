package recognition

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"github.com/Lllllllleong/documentocr/internal/gcp"
	"github.com/Lllllllleong/documentocr/internal/models"
)

// refusalPhrases mark a model answer that is an apology instead of a
// transcription.
var refusalPhrases = []string{
	"i am unable to",
	"i cannot fulfill",
	"i cannot answer",
	"i cannot provide",
	"as a large language model",
}

// Gemini transcribes page images with a Vertex AI multimodal model. The model
// must be configured for JSON output (see gcp.NewVertexClient).
type Gemini struct {
	model *genai.GenerativeModel
}

func NewGemini(model *genai.GenerativeModel) *Gemini {
	return &Gemini{model: model}
}

func (g *Gemini) Name() string { return EngineGemini }

func (g *Gemini) Recognize(ctx context.Context, img *models.PageImage, language string) (Result, error) {
	data, err := encodePNG(img)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", models.ErrRecognitionFailure, err)
	}
	prompt := genai.Text(fmt.Sprintf(gcp.OCRUserPrompt, language))

	resp, err := g.model.GenerateContent(ctx, genai.ImageData("png", data), prompt)
	if err != nil {
		return Result{}, fmt.Errorf("%w: generate content for page %d: %v", models.ErrRecognitionFailure, img.Page, err)
	}
	return parseTranscription(responseText(resp))
}

// responseText concatenates the text parts of the first candidate and strips
// code fences the model sometimes adds around JSON.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	s := strings.TrimSpace(b.String())
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

type transcription struct {
	Text       string   `json:"text"`
	Confidence *float64 `json:"confidence"`
}

func parseTranscription(raw string) (Result, error) {
	if raw == "" {
		return Result{}, fmt.Errorf("%w: empty model response", models.ErrRecognitionFailure)
	}
	var t transcription
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		return Result{}, fmt.Errorf("%w: decode model response: %v", models.ErrRecognitionFailure, err)
	}
	lower := strings.ToLower(t.Text)
	for _, phrase := range refusalPhrases {
		if strings.Contains(lower, phrase) {
			return Result{}, fmt.Errorf("%w: model refused to transcribe", models.ErrRecognitionFailure)
		}
	}
	if t.Confidence == nil {
		return Result{}, fmt.Errorf("%w: model response has no confidence", models.ErrRecognitionFailure)
	}
	return Result{Text: t.Text, Confidence: clamp(*t.Confidence)}, nil
}
