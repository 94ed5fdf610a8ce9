package refine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"sidequest/internal/domain"
)

const defaultGeminiModel = "gemini-1.5-flash"

// Gemini refines drafts through the Gemini API, asking for a strict JSON
// answer matching RefineResult.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini builds a Gemini refiner.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	if model == "" {
		model = defaultGeminiModel
	}
	return &Gemini{client: client, model: model}, nil
}

func (g *Gemini) Close() error {
	return g.client.Close()
}

func (g *Gemini) Refine(ctx context.Context, req Request) (domain.RefineResult, error) {
	model := g.client.GenerativeModel(g.model)
	model.SetTemperature(0.1)
	model.ResponseMIMEType = "application/json"

	prompt := buildPrompt(req)
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return domain.RefineResult{}, fmt.Errorf("generate refinement: %w", err)
	}
	text, err := extractText(resp)
	if err != nil {
		return domain.RefineResult{}, err
	}

	var result domain.RefineResult
	if err := json.Unmarshal([]byte(cleanJSONBlock(text)), &result); err != nil {
		return domain.RefineResult{}, fmt.Errorf("parse refinement: %w", err)
	}
	return result, nil
}

func buildPrompt(req Request) string {
	var b strings.Builder
	b.WriteString("Sei un assistente per un marketplace di piccole missioni locali.\n")
	b.WriteString("Migliora titolo e descrizione della missione e stima un compenso equo in euro.\n")
	b.WriteString("Rispondi SOLO con JSON: {\"category\",\"refined_title\",\"refined_description\",")
	b.WriteString("\"suggested_range\":{\"min\",\"max\",\"avg\"},\"estimated_duration\",\"missing\":[]}\n\n")
	fmt.Fprintf(&b, "Titolo: %s\n", req.Title)
	fmt.Fprintf(&b, "Descrizione: %s\n", req.Description)
	fmt.Fprintf(&b, "Tag: %s\n", strings.Join(req.Tags, ", "))
	if req.Location.Mode == domain.LocationRemote {
		b.WriteString("Luogo: remoto\n")
	} else {
		fmt.Fprintf(&b, "Luogo: %s\n", req.Location.Address)
	}
	return b.String()
}

func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("empty response")
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("no text in response")
	}
	return b.String(), nil
}

func cleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
