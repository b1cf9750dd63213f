package site

import (
	"bytes"
	"embed"
	"encoding/json"
	"strings"
	"text/template"
)

//go:embed templates
var templatesFS embed.FS

var templates = template.Must(
	template.New("").
		Funcs(template.FuncMap{"join": strings.Join}).
		ParseFS(templatesFS, "templates/*.tmpl"),
)

func execute(name string, data any) (string, error) {
	buf := new(bytes.Buffer)
	if err := templates.ExecuteTemplate(buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

type BuildPromptParams struct {
	Brief  string
	Checks []string
	Names  []string
}

// BuildPrompt renders the prompt asking for a new site.
func BuildPrompt(params *BuildPromptParams) (string, error) {
	return execute("build_prompt.txt.tmpl", params)
}

type RevisePromptParams struct {
	Brief   string
	Checks  []string
	Names   []string
	Current FileSet
}

// RevisePrompt renders the prompt asking to modify the current site.
// The current files are embedded as indented JSON.
func RevisePrompt(params *RevisePromptParams) (string, error) {
	current := new(bytes.Buffer)
	enc := json.NewEncoder(current)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(params.Current); err != nil {
		return "", err
	}

	return execute("revise_prompt.txt.tmpl", struct {
		Brief   string
		Checks  []string
		Names   []string
		Current string
	}{
		Brief:   params.Brief,
		Checks:  params.Checks,
		Names:   params.Names,
		Current: strings.TrimSuffix(current.String(), "\n"),
	})
}

type LicenseParams struct {
	Year   int
	Holder string
}

// License renders the MIT license.
func License(params *LicenseParams) (string, error) {
	return execute("LICENSE.tmpl", params)
}

type ReadmeParams struct {
	Task     string
	Brief    string
	Checks   []string
	Names    []string
	PagesURL string
	Branch   string
}

func Readme(params *ReadmeParams) (string, error) {
	return execute("README.md.tmpl", params)
}
