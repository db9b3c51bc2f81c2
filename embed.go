package chatwidget

import "embed"

// TemplateFS contains the embedded HTML templates used for rendering the browser widget. These templates
// are organized in a directory structure that separates layouts, pages, and partial views.
//
//go:embed templates/*
var TemplateFS embed.FS

// StaticFS contains the embedded static assets, the widget script and its stylesheet.
//
//go:embed static/*
var StaticFS embed.FS
