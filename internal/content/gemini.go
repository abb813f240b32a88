// internal/content/gemini.go
package content

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"google.golang.org/genai"
)

// models is the part of *genai.Models the generator uses.
type models interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini asks a hosted model for the notification text and validates the
// structured answer.
type Gemini struct {
	models models
	model  string
}

func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Gemini{models: client.Models, model: model}, nil
}

var prompt = template.Must(template.New("prompt").Parse(`Eres el asistente de notificaciones del sistema de préstamos de material de la universidad.
Redacta un correo breve y cordial en español para {{.RecipientName}}.
Tipo de aviso: {{.Type}}.
Material: {{.MaterialName}}.
{{- if not .DueDate.IsZero}}
Fecha de devolución: {{.DueDate.Format "02/01/2006"}}.
{{- end}}
Días: {{.Days}}.
{{- if not .Amount.IsZero}}
Monto: ${{.Amount.StringFixed 2}}.
{{- end}}
El cuerpo debe ser HTML mínimo y bien formado (solo p, strong y br), debe mencionar el nombre del destinatario y el dato determinante (los días o el monto).
Responde solo con JSON con los campos "subject" y "htmlBody".`))

var responseSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"subject":  {Type: genai.TypeString},
		"htmlBody": {Type: genai.TypeString},
	},
	Required: []string{"subject", "htmlBody"},
}

func (g *Gemini) Generate(ctx context.Context, facts Facts) (Content, error) {
	var buf bytes.Buffer
	if err := prompt.Execute(&buf, facts); err != nil {
		return Content{}, fmt.Errorf("render prompt: %w", err)
	}

	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(buf.String()), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   responseSchema,
	})
	if err != nil {
		return Content{}, fmt.Errorf("generate %s: %w", facts.Type, err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return Content{}, ErrEmptyContent
	}
	var out Content
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return Content{}, fmt.Errorf("decode model output: %w", err)
	}
	if out.Empty() {
		return Content{}, ErrEmptyContent
	}
	if err := Validate(out, facts); err != nil {
		return Content{}, err
	}
	return out, nil
}
