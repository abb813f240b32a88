// internal/content/template.go
package content

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"prestamos/internal/inbox"
)

type message struct {
	subject string
	body    *template.Template
}

var layout = `<!DOCTYPE html><html><body style="font-family:sans-serif">{{template "body" .}}<p>Coordinación de Préstamos de Material</p></body></html>`

func mustMessage(subject, body string) message {
	t := template.Must(template.New("layout").Funcs(funcs).Parse(layout))
	template.Must(t.New("body").Parse(body))
	return message{subject: subject, body: t}
}

var funcs = template.FuncMap{
	"dias": func(n int) string {
		if n == 1 {
			return "1 día"
		}
		return fmt.Sprintf("%d días", n)
	},
	"fecha": func(f Facts) string {
		if f.DueDate.IsZero() {
			return ""
		}
		return f.DueDate.Format("02/01/2006")
	},
}

var messages = map[inbox.Type]message{
	inbox.TypeDueSoon: mustMessage("Tu préstamo vence pronto",
		`<p>Hola {{.RecipientName}},</p><p>Tu préstamo de <strong>{{.MaterialName}}</strong> vence en {{dias .Days}} ({{fecha .}}). Recuerda devolverlo a tiempo.</p>`),
	inbox.TypeOverdue: mustMessage("Préstamo vencido",
		`<p>Hola {{.RecipientName}},</p><p>Tu préstamo de <strong>{{.MaterialName}}</strong> venció hace {{dias .Days}}. Devuélvelo lo antes posible para evitar un adeudo.</p>`),
	inbox.TypeNewDebt: mustMessage("Nuevo adeudo registrado",
		`<p>Hola {{.RecipientName}},</p><p>Se registró un adeudo de <strong>${{.Amount.StringFixed 2}}</strong> por el material <strong>{{.MaterialName}}</strong>, que no fue devuelto.</p>`),
	inbox.TypeDebtReminder: mustMessage("Recordatorio de adeudo",
		`<p>Hola {{.RecipientName}},</p><p>Tienes un adeudo pendiente de <strong>${{.Amount.StringFixed 2}}</strong> por <strong>{{.MaterialName}}</strong> desde hace {{dias .Days}}.</p>`),
}

// TemplateGenerator renders fixed Spanish templates. It needs no network
// and is used when no language model is configured.
type TemplateGenerator struct{}

func (TemplateGenerator) Generate(_ context.Context, facts Facts) (Content, error) {
	m, ok := messages[facts.Type]
	if !ok {
		return Content{}, fmt.Errorf("no template for notification type %q", facts.Type)
	}
	var buf bytes.Buffer
	if err := m.body.Execute(&buf, facts); err != nil {
		return Content{}, fmt.Errorf("render %s: %w", facts.Type, err)
	}
	return Content{Subject: m.subject, HTMLBody: buf.String()}, nil
}
