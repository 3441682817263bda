package mailer

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	htmltmpl "html/template"
	"io/fs"
	"path"
	"strings"
	texttmpl "text/template"
)

//go:embed templates/*.txt templates/*.gohtml
var templateFS embed.FS

var (
	ErrNoRecipients    = errors.New("mailer: message has no recipients")
	ErrEmptyMessage    = errors.New("mailer: message has no content")
	ErrUnknownTemplate = errors.New("mailer: unknown template")
)

// contextData is what every template sees.
type contextData struct {
	AppName     string
	FrontendURL string
	Data        map[string]string
}

// Renderer renders the embedded email templates. Each name has a .txt part
// defining "subject" and "content" and an optional .gohtml part defining "content".
type Renderer struct {
	appName     string
	frontendURL string
	text        map[string]*texttmpl.Template
	html        map[string]*htmltmpl.Template
}

// NewRenderer parses every embedded template once.
func NewRenderer(appName, frontendURL string) (*Renderer, error) {
	r := &Renderer{
		appName:     appName,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		text:        make(map[string]*texttmpl.Template),
		html:        make(map[string]*htmltmpl.Template),
	}

	entries, err := fs.ReadDir(templateFS, "templates")
	if err != nil {
		return nil, fmt.Errorf("mailer: read templates: %w", err)
	}
	for _, e := range entries {
		fname := e.Name()
		if strings.HasPrefix(fname, "_") {
			continue
		}
		ext := path.Ext(fname)
		name := strings.TrimSuffix(fname, ext)
		switch ext {
		case ".txt":
			tmpl, err := texttmpl.New(name).Option("missingkey=error").
				ParseFS(templateFS, "templates/_base.txt", "templates/"+fname)
			if err != nil {
				return nil, fmt.Errorf("mailer: parse %s: %w", fname, err)
			}
			r.text[name] = tmpl
		case ".gohtml":
			tmpl, err := htmltmpl.New(name).Option("missingkey=error").
				ParseFS(templateFS, "templates/_base.gohtml", "templates/"+fname)
			if err != nil {
				return nil, fmt.Errorf("mailer: parse %s: %w", fname, err)
			}
			r.html[name] = tmpl
		}
	}
	return r, nil
}

// Has reports whether name is a known template.
func (r *Renderer) Has(name string) bool {
	_, ok := r.text[name]
	return ok
}

// Render fills msg.Subject, TextContent and HTMLContent from msg.TemplateName.
// Fields already set are kept.
func (r *Renderer) Render(msg *Message) error {
	textTmpl, ok := r.text[msg.TemplateName]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTemplate, msg.TemplateName)
	}
	data := contextData{AppName: r.appName, FrontendURL: r.frontendURL, Data: msg.TemplateData}
	if data.Data == nil {
		data.Data = map[string]string{}
	}

	var buf bytes.Buffer
	if msg.Subject == "" {
		if err := textTmpl.ExecuteTemplate(&buf, "subject", data); err != nil {
			return fmt.Errorf("mailer: render %s subject: %w", msg.TemplateName, err)
		}
		msg.Subject = strings.TrimSpace(buf.String())
		buf.Reset()
	}
	if msg.TextContent == "" {
		if err := textTmpl.ExecuteTemplate(&buf, "base", data); err != nil {
			return fmt.Errorf("mailer: render %s text: %w", msg.TemplateName, err)
		}
		msg.TextContent = strings.TrimSpace(buf.String())
		buf.Reset()
	}
	if htmlTmpl, ok := r.html[msg.TemplateName]; ok && msg.HTMLContent == "" {
		if err := htmlTmpl.ExecuteTemplate(&buf, "base", data); err != nil {
			return fmt.Errorf("mailer: render %s html: %w", msg.TemplateName, err)
		}
		msg.HTMLContent = buf.String()
	}
	return nil
}
