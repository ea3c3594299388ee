// Package web embeds the page templates and static assets.
package web

import "embed"

// TemplatesFS holds the pages and the htmx partials.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS holds the stylesheet and the gesture adapter scripts.
//
//go:embed static/*
var StaticFS embed.FS
