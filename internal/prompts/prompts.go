// Package prompts loads the instructional templates that steer the provider toward checker-compliant
// solutions. Templates are embedded in the binary and never change at runtime.
package prompts

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"

	"github.com/MegaGrindStone/alx"
)

// Template is a named instructional text sent as the system prompt of every dispatch.
type Template struct {
	Name string
	Text string
}

// Default is the template used when the configuration names none. It covers both standard and legacy
// checkers.
const Default = "checker"

// Custom is the name given to a template built from configuration text instead of an embedded file.
const Custom = "custom"

// ErrUnknownTemplate is returned when no embedded template carries the requested name.
var ErrUnknownTemplate = errors.New("unknown prompt template")

const promptDir = "prompts"

// Load returns the embedded template with the given name.
func Load(name string) (Template, error) {
	if name == "" {
		name = Default
	}

	b, err := fs.ReadFile(alx.PromptFS, path.Join(promptDir, name+".md"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Template{}, fmt.Errorf("%w: %s", ErrUnknownTemplate, name)
		}
		return Template{}, fmt.Errorf("failed to read template %s: %w", name, err)
	}

	return Template{
		Name: name,
		Text: string(b),
	}, nil
}

// FromText wraps an arbitrary instruction text, typically configured by the operator, as a template.
func FromText(text string) Template {
	return Template{
		Name: Custom,
		Text: text,
	}
}

// Names lists the embedded template names in lexical order.
func Names() ([]string, error) {
	entries, err := fs.ReadDir(alx.PromptFS, promptDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".md" {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".md"))
	}
	slices.Sort(names)
	return names, nil
}
