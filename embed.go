package alx

import "embed"

// TemplateFS contains the embedded HTML templates used for rendering the web interface. These templates
// are organized in a directory structure that separates layouts, pages, and partial views.
//
//go:embed templates/*
var TemplateFS embed.FS

// StaticFS contains the embedded static assets such as JavaScript and CSS files required for the
// chat surface's behaviour and styling.
//
//go:embed static/*
var StaticFS embed.FS

// PromptFS contains the instructional templates that are prepended to every dispatched prompt. Each
// file under prompts/ is one variant, named after its file name without the extension.
//
//go:embed prompts/*.md
var PromptFS embed.FS
