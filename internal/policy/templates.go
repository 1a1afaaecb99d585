package policy

import (
	"bytes"
	"embed"
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/mtlprog/taskgate/internal/domain"
	"gopkg.in/yaml.v3"
)

//go:embed templates/*.yaml
var embedTemplates embed.FS

// TemplateNames lists the built-in policy templates.
func TemplateNames() []string {
	entries, err := embedTemplates.ReadDir("templates")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), path.Ext(e.Name())))
	}
	slices.Sort(names)
	return names
}

// Template parses a built-in policy template. The result has no project ID.
func Template(name string) (*domain.Policy, error) {
	if !slices.Contains(TemplateNames(), name) {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownTemplate, name)
	}

	data, err := embedTemplates.ReadFile("templates/" + name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("read template %s: %w", name, err)
	}

	var p domain.Policy
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("parse template %s: %w", name, err)
	}

	if p.Rules == nil {
		p.Rules = []domain.Rule{}
	}
	if p.RequireApprovalForTaskTypes == nil {
		p.RequireApprovalForTaskTypes = []domain.TaskType{}
	}
	return &p, nil
}

// ApplyTemplate returns a copy of the named template bound to the project.
func ApplyTemplate(projectID, name string) (*domain.Policy, error) {
	p, err := Template(name)
	if err != nil {
		return nil, err
	}
	p.ProjectID = projectID
	if err := Validate(p); err != nil {
		return nil, fmt.Errorf("template %s: %w", name, err)
	}
	return p, nil
}
