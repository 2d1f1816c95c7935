package generator

import (
	"os"
	"strings"
	"text/template"

	"github.com/mir00r/haproxy-gen/internal/domain"
	"github.com/mir00r/haproxy-gen/internal/errors"
)

// preambleData is the template context for the static preamble. The listening
// port is its only recognized placeholder.
type preambleData struct {
	ExposedPort int
}

// renderPreamble reads and renders the static preamble template. The file is
// re-read on every generation; a missing or unreadable template is fatal to
// the invocation, there is no retry layer.
func (g *Generator) renderPreamble() (string, error) {
	raw, err := os.ReadFile(g.settings.TemplatePath)
	if err != nil {
		return "", errors.NewTemplateReadError(g.settings.TemplatePath, err)
	}

	tmpl, err := template.New("preamble").Parse(string(raw))
	if err != nil {
		return "", errors.WrapError(err, errors.ErrCodeTemplateRender, "assembler", "Failed to parse preamble template")
	}

	var buf strings.Builder
	if err := tmpl.Execute(&buf, preambleData{ExposedPort: g.settings.ExposedPort}); err != nil {
		return "", errors.WrapError(err, errors.ErrCodeTemplateRender, "assembler", "Failed to render preamble template")
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

// Assemble produces the complete configuration document for the given
// routing spec: preamble, then frontend section, then backend section, keyed
// by the fixed in-container config path. Generation is a pure function of
// the endpoint snapshots plus one template read, so identical snapshots
// yield byte-identical documents.
func (g *Generator) Assemble(spec domain.RoutingSpec, balance string) (domain.ConfigDocument, error) {
	services := spec.Services()
	if len(services) == 0 {
		return nil, errors.NewNoServicesError()
	}

	preamble, err := g.renderPreamble()
	if err != nil {
		return nil, err
	}

	frontend, err := g.RenderFrontend(spec)
	if err != nil {
		return nil, err
	}

	backends, err := g.RenderBackends(g.BuildBackends(services, balance))
	if err != nil {
		return nil, err
	}

	g.logger.WithField("services", len(services)).Debug("Assembled proxy configuration")

	return domain.ConfigDocument{
		g.settings.ConfigPath: preamble + "\n" + frontend + "\n" + backends,
	}, nil
}
