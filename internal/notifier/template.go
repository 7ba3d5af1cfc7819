package notifier

import (
	"bytes"
	"fmt"
	"html"
	"html/template"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

const fallbackSenderName = "Someone"

var mentionTemplate = template.Must(template.New("mention").Parse(`<div style="font-family:Arial,sans-serif;background:#f7f9fc;padding:20px;">
  <div style="max-width:600px;margin:auto;background:#fff;border:1px solid #e5e7eb;border-radius:12px;padding:20px;">
    <div style="text-align:center;font-size:22px;"><span style="color:#10b981;font-weight:700;">{{.Brand}}</span></div>
    <h3 style="color:#111827;">You were mentioned</h3>
    <p style="color:#374151;">{{.SenderName}} mentioned you in a community chat.</p>
    <blockquote style="margin:12px 0;padding:12px;background:#f3f4f6;border-radius:8px;color:#111827;">{{.Excerpt}}</blockquote>
    <a href="{{.Link}}" style="display:inline-block;margin-top:8px;background:#10b981;color:#fff;padding:10px 14px;border-radius:8px;text-decoration:none;">Open {{.Brand}}</a>
    <p style="color:#6b7280;margin-top:16px;">With care,<br/>{{.Brand}} Team</p>
  </div>
</div>`))

type mentionView struct {
	Brand      string
	SenderName string
	Excerpt    string
	Link       string
}

var textPolicy = bluemonday.StrictPolicy()

func subject(brand string) string {
	return fmt.Sprintf("You were mentioned in a %s chat", brand)
}

func renderHTML(v mentionView) (string, error) {
	var buf bytes.Buffer
	if err := mentionTemplate.Execute(&buf, v); err != nil {
		return "", fmt.Errorf("failed to render mention e-mail: %w", err)
	}
	return buf.String(), nil
}

// plainText derives the text/plain alternative from the rendered HTML.
func plainText(htmlBody string) string {
	stripped := html.UnescapeString(textPolicy.Sanitize(htmlBody))
	return strings.Join(strings.Fields(stripped), " ")
}

// excerpt caps text at max runes, marking the cut with an ellipsis.
func excerpt(text string, max int) string {
	if max <= 0 || utf8.RuneCountInString(text) <= max {
		return text
	}
	runes := []rune(text)
	return strings.TrimRight(string(runes[:max]), " \t\n") + "…"
}
