package web

import (
	_ "embed"
	"html/template"
)

//go:embed static/index.html.tmpl
var indexTemplate string

var pageTemplate = template.Must(template.New("index").Parse(indexTemplate))
