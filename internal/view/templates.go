package view

import (
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/cleancity/wastetrack/internal/rbac"
	"github.com/cleancity/wastetrack/internal/shared"
	"github.com/cleancity/wastetrack/web"
)

// Engine renders HTML templates.
type Engine struct {
	templates *template.Template
}

// TemplateData contains values shared across templates.
type TemplateData struct {
	Title       string
	CSRFToken   string
	Flash       *shared.FlashMessage
	CurrentPath string
	Principal   rbac.Principal
	Data        any
}

var titleCaser = cases.Title(language.English)

// Label turns a stored enum value such as "in_progress" into "In Progress".
func Label(v string) string {
	return titleCaser.String(strings.ReplaceAll(v, "_", " "))
}

func formatTime(v any) string {
	var t time.Time
	switch tv := v.(type) {
	case time.Time:
		t = tv
	case *time.Time:
		if tv == nil {
			return ""
		}
		t = *tv
	default:
		return ""
	}
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("02 Jan 2006 15:04")
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

// NewEngine parses templates at build-time.
func NewEngine() (*Engine, error) {
	funcMap := template.FuncMap{
		"formatDate": formatTime,
		"label":      func(v any) string { return Label(fmt.Sprint(v)) },
		"deref":      deref,
		"hasRole":    func(p rbac.Principal, role string) bool { return p.Has(rbac.Role(role)) },
	}
	tpl, err := template.New("root").Funcs(funcMap).ParseFS(web.Templates, "templates/layouts/*.html", "templates/partials/*.html", "templates/pages/*.html")
	if err != nil {
		return nil, err
	}
	return &Engine{templates: tpl}, nil
}

// Render executes a named template with TemplateData.
func (e *Engine) Render(w http.ResponseWriter, name string, data TemplateData) error {
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return e.templates.ExecuteTemplate(w, name, data)
}
