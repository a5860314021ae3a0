package llamachat

import "embed"

// TemplateFS contains the embedded HTML templates of the chat widget page.
//
//go:embed templates/*
var TemplateFS embed.FS

// StaticFS contains the embedded script and stylesheet that drive the widget in the browser.
//
//go:embed static/*
var StaticFS embed.FS
