// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package webui renders the application screens.
package webui

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Pages are the screen names, each backed by templates/<name>.html.
var Pages = []string{"signing_in", "needs_sign_in", "needs_container_selection", "viewing"}

// PageData is passed to every page.
type PageData struct {
	Title      string
	Screen     string
	User       string
	Alert      string
	IModelName string
	ProjectID  string
	IModelID   string
	ViewID     string
}

// Renderer holds one parsed template per page.
type Renderer struct {
	pages map[string]*template.Template
}

// Load parses the base layout and every page.
func Load() (*Renderer, error) {
	base, err := template.ParseFS(templatesFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parse base template: %w", err)
	}
	r := &Renderer{pages: make(map[string]*template.Template, len(Pages))}
	for _, name := range Pages {
		tmpl, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("clone template: %w", err)
		}
		if _, err := tmpl.ParseFS(templatesFS, "templates/"+name+".html"); err != nil {
			return nil, fmt.Errorf("parse page template %s: %w", name, err)
		}
		r.pages[name] = tmpl
	}
	return r, nil
}

// Render writes page with status. The page is rendered to a buffer first so a
// template error never produces a half-written response.
func (r *Renderer) Render(w http.ResponseWriter, status int, page string, data PageData) error {
	tmpl, ok := r.pages[page]
	if !ok {
		return fmt.Errorf("unknown page %q", page)
	}
	if data.Screen == "" {
		data.Screen = page
	}
	if data.Title == "" {
		data.Title = "iModel.js Viewer"
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", data); err != nil {
		return fmt.Errorf("render %s: %w", page, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}
