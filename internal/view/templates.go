package view

import (
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"time"

	"github.com/guildledger/ledgerboard/internal/shared"
	"github.com/guildledger/ledgerboard/web"
)

// Engine renders HTML templates.
type Engine struct {
	templates *template.Template
}

// TemplateData contains values shared across full pages.
type TemplateData struct {
	Title       string
	CSRFToken   string
	Flash       *shared.FlashMessage
	CurrentPath string
	Data        any
}

// NewEngine parses the embedded templates.
func NewEngine() (*Engine, error) {
	funcMap := template.FuncMap{
		"formatDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("02 Jan 2006 15:04")
		},
		"monthName": func(m int) string {
			if m < 1 || m > 12 {
				return ""
			}
			return time.Month(m).String()
		},
		"queryWith": QueryWith,
		"disabled": func(off bool) template.HTMLAttr {
			if off {
				return "disabled"
			}
			return ""
		},
	}
	tpl, err := template.New("root").Funcs(funcMap).ParseFS(web.Templates, "templates/layouts/*.html", "templates/partials/*.html", "templates/pages/*.html")
	if err != nil {
		return nil, err
	}
	return &Engine{templates: tpl}, nil
}

// Render executes a page template with TemplateData.
func (e *Engine) Render(w http.ResponseWriter, name string, data TemplateData) error {
	return e.RenderStatus(w, http.StatusOK, name, data)
}

// RenderStatus executes a page template with an explicit status code.
func (e *Engine) RenderStatus(w http.ResponseWriter, status int, name string, data TemplateData) error {
	return e.RenderPartial(w, status, name, data)
}

// RenderPartial executes any named template, typically a fragment swapped
// into an existing page.
func (e *Engine) RenderPartial(w http.ResponseWriter, status int, name string, data any) error {
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}
	tpl := e.templates.Lookup(name)
	if tpl == nil {
		return fmt.Errorf("template %q not found", name)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	return tpl.Execute(w, data)
}

// QueryWith returns path?query with key replaced by value. Pairs of further
// key/value arguments are applied in order; an empty value removes the key.
func QueryWith(path, query string, kv ...string) string {
	values, err := url.ParseQuery(query)
	if err != nil {
		values = url.Values{}
	}
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i+1] == "" {
			values.Del(kv[i])
			continue
		}
		values.Set(kv[i], kv[i+1])
	}
	if encoded := values.Encode(); encoded != "" {
		return path + "?" + encoded
	}
	return path
}
