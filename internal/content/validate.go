// internal/content/validate.go
package content

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"prestamos/internal/inbox"
)

var ErrInvalidContent = errors.New("generated content is not a valid notification")

var allowedTags = map[atom.Atom]bool{
	atom.P:      true,
	atom.Br:     true,
	atom.Strong: true,
	atom.B:      true,
	atom.Em:     true,
	atom.I:      true,
	atom.Ul:     true,
	atom.Ol:     true,
	atom.Li:     true,
}

// Validate checks that generated content is attribute-free HTML built from
// a small tag allowlist, and that its text names the recipient and states
// the determining fact (the day count or the amount).
func Validate(c Content, facts Facts) error {
	nodes, err := html.ParseFragment(strings.NewReader(c.HTMLBody), &html.Node{
		Type:     html.ElementNode,
		Data:     "body",
		DataAtom: atom.Body,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidContent, err)
	}

	var text strings.Builder
	for _, n := range nodes {
		if err := walk(n, &text); err != nil {
			return err
		}
	}
	body := strings.ToLower(text.String())

	if name := strings.ToLower(strings.TrimSpace(facts.RecipientName)); name != "" && !strings.Contains(body, name) {
		return fmt.Errorf("%w: recipient name missing", ErrInvalidContent)
	}
	if wants := determiningFacts(facts); len(wants) > 0 {
		for _, w := range wants {
			if strings.Contains(body, w) {
				return nil
			}
		}
		return fmt.Errorf("%w: none of %v mentioned", ErrInvalidContent, wants)
	}
	return nil
}

func walk(n *html.Node, text *strings.Builder) error {
	switch n.Type {
	case html.TextNode:
		text.WriteString(n.Data)
		text.WriteByte(' ')
	case html.ElementNode:
		if !allowedTags[n.DataAtom] {
			return fmt.Errorf("%w: tag <%s> not allowed", ErrInvalidContent, n.Data)
		}
		if len(n.Attr) > 0 {
			return fmt.Errorf("%w: attributes on <%s> not allowed", ErrInvalidContent, n.Data)
		}
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if err := walk(child, text); err != nil {
			return err
		}
	}
	return nil
}

func determiningFacts(facts Facts) []string {
	var wants []string
	if facts.Type != inbox.TypeNewDebt {
		wants = append(wants, strconv.Itoa(facts.Days))
	}
	if !facts.Amount.IsZero() {
		wants = append(wants, facts.Amount.StringFixed(2), facts.Amount.String())
	}
	return wants
}
