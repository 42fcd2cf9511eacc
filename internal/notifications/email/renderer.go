package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"

	"policyportal/internal/types"
)

//go:embed templates/layout.html
var templateFS embed.FS

// layoutData is what the HTML layout sees. html/template escapes every field;
// URL is additionally filtered to safe schemes.
type layoutData struct {
	Subject    string
	Label      string
	Accent     string
	Paragraphs []string
	URL        string
	FromName   string
}

var labels = map[types.NotificationCategory]string{
	types.CategoryEscalation: "Escalation",
	types.CategoryReminder:   "Reminder",
	types.CategoryInfo:       "Notice",
}

var accents = map[types.Priority]string{
	types.PriorityHigh:   "#cf222e",
	types.PriorityNormal: "#bf8700",
	types.PriorityLow:    "#0969da",
}

// Renderer wraps plain-text notification bodies in the embedded HTML layout.
type Renderer struct {
	layout   *template.Template
	fromName string
}

// NewRenderer parses the embedded layout.
func NewRenderer(fromName string) (*Renderer, error) {
	raw, err := templateFS.ReadFile("templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("renderer: failed to read layout.html: %w", err)
	}
	layout, err := template.New("layout").Parse(string(raw))
	if err != nil {
		return nil, fmt.Errorf("renderer: failed to parse layout.html: %w", err)
	}
	return &Renderer{layout: layout, fromName: fromName}, nil
}

// RenderHTML produces the HTML part for a rendered notification. Blank lines
// in body separate paragraphs.
func (r *Renderer) RenderHTML(subject, body, url string, priority types.Priority, category types.NotificationCategory) (string, error) {
	data := layoutData{
		Subject:    subject,
		Label:      labels[category],
		Accent:     accents[priority],
		Paragraphs: paragraphs(body),
		URL:        url,
		FromName:   r.fromName,
	}
	if data.Label == "" {
		data.Label = labels[types.CategoryInfo]
	}
	if data.Accent == "" {
		data.Accent = accents[types.PriorityLow]
	}

	var buf bytes.Buffer
	if err := r.layout.Execute(&buf, data); err != nil {
		return "", types.NewAppError(types.ErrCodeInternalTemplate, "failed to render email layout", err)
	}
	return buf.String(), nil
}

// paragraphs splits on blank lines and folds single newlines into spaces.
// A trailing "Open it here: <url>" paragraph is dropped since the layout
// renders its own button.
func paragraphs(body string) []string {
	var out []string
	for _, block := range strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n\n") {
		p := strings.Join(strings.Fields(block), " ")
		if p == "" || strings.HasPrefix(p, "Open it here: ") {
			continue
		}
		out = append(out, p)
	}
	return out
}
