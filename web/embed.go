// Package web embeds the chat page templates and static assets.
package web

import "embed"

// TemplatesFS holds the server-side HTML templates.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS holds css and js served under /static/.
//
//go:embed static/*
var StaticFS embed.FS
