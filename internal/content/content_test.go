// internal/content/content_test.go
package content

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"prestamos/internal/inbox"
)

func TestTemplateDueSoonMentionsDaysAndMaterial(t *testing.T) {
	c, err := Generate(context.Background(), TemplateGenerator{}, Facts{
		Type:          inbox.TypeDueSoon,
		RecipientName: "Ana López",
		MaterialName:  "Multímetro Fluke",
		DueDate:       time.Date(2024, 5, 12, 0, 0, 0, 0, time.UTC),
		Days:          2,
	})
	require.NoError(t, err)
	assert.Contains(t, c.HTMLBody, "2 días")
	assert.Contains(t, c.HTMLBody, "Multímetro Fluke")
	assert.Contains(t, c.HTMLBody, "Ana López")
	assert.Contains(t, c.HTMLBody, "12/05/2024")
}

func TestTemplateEscapesNames(t *testing.T) {
	c, err := TemplateGenerator{}.Generate(context.Background(), Facts{
		Type:          inbox.TypeOverdue,
		RecipientName: "<script>x</script>",
		MaterialName:  "Cautín",
		Days:          1,
	})
	require.NoError(t, err)
	assert.NotContains(t, c.HTMLBody, "<script>")
	assert.Contains(t, c.HTMLBody, "1 día.")
}

func TestTemplateDebtShowsAmount(t *testing.T) {
	c, err := TemplateGenerator{}.Generate(context.Background(), Facts{
		Type:          inbox.TypeNewDebt,
		RecipientName: "Luis",
		MaterialName:  "Osciloscopio",
		Amount:        decimal.RequireFromString("1299.5"),
	})
	require.NoError(t, err)
	assert.Contains(t, c.HTMLBody, "$1299.50")
	assert.Equal(t, "Nuevo adeudo registrado", c.Subject)
}

func TestTemplateUnknownType(t *testing.T) {
	_, err := TemplateGenerator{}.Generate(context.Background(), Facts{Type: "otro"})
	assert.Error(t, err)
}

func TestGenerateMapsBlankToEmpty(t *testing.T) {
	_, err := Generate(context.Background(), blank{}, Facts{})
	assert.ErrorIs(t, err, ErrEmptyContent)
}

type fakeModels struct {
	text string
	err  error

	gotModel  string
	gotConfig *genai.GenerateContentConfig
	gotPrompt string
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.gotModel = model
	f.gotConfig = config
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		f.gotPrompt = contents[0].Parts[0].Text
	}
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: f.text}}},
		}},
	}, nil
}

func TestGeminiDecodesStructuredOutput(t *testing.T) {
	fake := &fakeModels{text: `{"subject":"Aviso","htmlBody":"<p>Hola Ana, faltan 2 días</p>"}`}
	g := &Gemini{models: fake, model: "gemini-2.5-flash"}

	c, err := g.Generate(context.Background(), Facts{
		Type:          inbox.TypeDueSoon,
		RecipientName: "Ana",
		MaterialName:  "Cautín",
		Days:          2,
	})
	require.NoError(t, err)
	assert.Equal(t, "Aviso", c.Subject)
	assert.Equal(t, "gemini-2.5-flash", fake.gotModel)
	assert.Equal(t, "application/json", fake.gotConfig.ResponseMIMEType)
	assert.Contains(t, fake.gotPrompt, "Ana")
	assert.Contains(t, fake.gotPrompt, "Cautín")
}

func TestGeminiFailures(t *testing.T) {
	ctx := context.Background()
	facts := Facts{Type: inbox.TypeOverdue, RecipientName: "Ana"}

	_, err := (&Gemini{models: &fakeModels{text: ""}}).Generate(ctx, facts)
	assert.ErrorIs(t, err, ErrEmptyContent)

	_, err = (&Gemini{models: &fakeModels{text: `{"subject":"","htmlBody":""}`}}).Generate(ctx, facts)
	assert.ErrorIs(t, err, ErrEmptyContent)

	_, err = (&Gemini{models: &fakeModels{text: "no json"}}).Generate(ctx, facts)
	assert.Error(t, err)

	boom := errors.New("quota exceeded")
	_, err = (&Gemini{models: &fakeModels{err: boom}}).Generate(ctx, facts)
	assert.ErrorIs(t, err, boom)
}

type blank struct{}

func (blank) Generate(context.Context, Facts) (Content, error) {
	return Content{Subject: " ", HTMLBody: "<p>x</p>"}, nil
}

func TestGeminiRejectsContentBreakingTheContract(t *testing.T) {
	ctx := context.Background()
	facts := Facts{Type: inbox.TypeDueSoon, RecipientName: "Ana López", MaterialName: "Cautín", Days: 2}

	cases := map[string]string{
		"script":      `<p>Hola Ana López, faltan 2 días</p><script>alert(1)</script>`,
		"attribute":   `<p onclick="x()">Hola Ana López, faltan 2 días</p>`,
		"link":        `<p>Hola Ana López, faltan 2 días <a href="http://x">aquí</a></p>`,
		"no name":     `<p>Hola, faltan 2 días</p>`,
		"no days":     `<p>Hola Ana López, devuelve pronto tu material</p>`,
		"image":       `<img src="x"><p>Hola Ana López, faltan 2 días</p>`,
		"style block": `<style>p{}</style><p>Hola Ana López, faltan 2 días</p>`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			raw, err := json.Marshal(Content{Subject: "Aviso", HTMLBody: body})
			require.NoError(t, err)
			_, err = (&Gemini{models: &fakeModels{text: string(raw)}}).Generate(ctx, facts)
			assert.ErrorIs(t, err, ErrInvalidContent)
		})
	}
}

func TestValidateAcceptsMinimalHTML(t *testing.T) {
	due := Facts{Type: inbox.TypeDueSoon, RecipientName: "Ana López", Days: 2}
	assert.NoError(t, Validate(Content{HTMLBody: "<p>Hola <strong>ana lópez</strong>,<br>faltan 2 días.</p>"}, due))

	debt := Facts{Type: inbox.TypeNewDebt, RecipientName: "Luis", Amount: decimal.RequireFromString("1299.5")}
	assert.NoError(t, Validate(Content{HTMLBody: "<p>Luis, tu adeudo es de $1299.50</p>"}, debt))
	assert.ErrorIs(t, Validate(Content{HTMLBody: "<p>Luis, tienes un adeudo</p>"}, debt), ErrInvalidContent)

	reminder := Facts{Type: inbox.TypeDebtReminder, RecipientName: "Luis", Days: 8, Amount: decimal.NewFromInt(90)}
	assert.NoError(t, Validate(Content{HTMLBody: "<p>Luis, debes $90.00</p>"}, reminder))
}
