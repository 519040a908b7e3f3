package pipeline

import (
	"context"
	_ "embed"
	"fmt"
	"os"

	"github.com/dvloznov/actual-categoriser/internal/gcs"
)

//go:embed prompts/system.md
var defaultTemplate string

// DefaultTemplate returns the embedded system prompt template.
func DefaultTemplate() string {
	return defaultTemplate
}

// TemplateSource provides the system prompt template for one run.
type TemplateSource interface {
	LoadTemplate(ctx context.Context) (string, error)
}

// TemplateLoader reads the template from a local path or a gs:// URI, or
// returns the embedded default when Location is empty. It reads on every
// call so template edits apply to the next run.
type TemplateLoader struct {
	Location string
	Objects  gcs.ObjectFetcher
}

// LoadTemplate implements TemplateSource.
func (l *TemplateLoader) LoadTemplate(ctx context.Context) (string, error) {
	switch {
	case l.Location == "":
		return defaultTemplate, nil
	case gcs.IsURI(l.Location):
		if l.Objects == nil {
			return "", fmt.Errorf("LoadTemplate: %s: no storage client configured", l.Location)
		}
		data, err := l.Objects.FetchObject(ctx, l.Location)
		if err != nil {
			return "", fmt.Errorf("LoadTemplate: %w", err)
		}
		return string(data), nil
	default:
		data, err := os.ReadFile(l.Location)
		if err != nil {
			return "", fmt.Errorf("LoadTemplate: %w", err)
		}
		return string(data), nil
	}
}

// StaticTemplate is a TemplateSource with a fixed text.
type StaticTemplate string

// LoadTemplate implements TemplateSource.
func (s StaticTemplate) LoadTemplate(ctx context.Context) (string, error) {
	return string(s), nil
}
