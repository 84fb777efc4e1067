// Package prompt manages the model prompt templates used by the router,
// planner and synthesizer. Defaults ship in-process; deployments may override
// individual prompts from a YAML file with a top-level "prompts" mapping.
package prompt

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"sync"
	"text/template"

	"gopkg.in/yaml.v3"
)

// Well-known prompt keys.
const (
	KeyIntent     = "intent_classification"
	KeyPlan       = "plan_generation"
	KeyReplan     = "plan_revision"
	KeySynthesize = "answer_synthesis"
)

// Library resolves prompt templates by key. Safe for concurrent use; the
// template set is immutable after construction/Load.
type Library struct {
	mu        sync.RWMutex
	templates map[string]*template.Template
}

// NewLibrary returns a library preloaded with the built-in defaults.
func NewLibrary() *Library {
	l := &Library{templates: map[string]*template.Template{}}
	for key, text := range defaults {
		l.templates[key] = mustParse(key, text)
	}
	return l
}

// Load merges prompt overrides from a YAML file shaped as:
//
//	prompts:
//	  intent_classification: |
//	    ...template text...
//
// Unknown keys are accepted so one file can serve multiple services.
func (l *Library) Load(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read prompt file: %w", err)
	}
	var doc struct {
		Prompts map[string]string `yaml:"prompts"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parse prompt file: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for key, text := range doc.Prompts {
		tmpl, err := parse(key, text)
		if err != nil {
			return fmt.Errorf("prompt %q: %w", key, err)
		}
		l.templates[key] = tmpl
	}
	return nil
}

// Render executes the template registered under key with the given data.
func (l *Library) Render(key string, data any) (string, error) {
	l.mu.RLock()
	tmpl, ok := l.templates[key]
	l.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("unknown prompt key %q", key)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render prompt %q: %w", key, err)
	}
	return buf.String(), nil
}

func parse(key, text string) (*template.Template, error) {
	return template.New(key).Funcs(template.FuncMap{
		"join":  strings.Join,
		"upper": strings.ToUpper,
		"lower": strings.ToLower,
	}).Parse(text)
}

func mustParse(key, text string) *template.Template {
	tmpl, err := parse(key, text)
	if err != nil {
		panic(fmt.Sprintf("built-in prompt %q: %v", key, err))
	}
	return tmpl
}
