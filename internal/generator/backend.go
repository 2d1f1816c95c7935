package generator

import (
	"strings"
	"text/template"

	"github.com/mir00r/haproxy-gen/internal/config"
	"github.com/mir00r/haproxy-gen/internal/domain"
	"github.com/mir00r/haproxy-gen/internal/errors"
	"github.com/mir00r/haproxy-gen/pkg/logger"
)

// backendsTemplate renders every backend block in one pass. Server lines
// delegate address resolution to the dns resolvers section declared in the
// preamble, so haproxy re-resolves endpoints periodically instead of caching
// a one-time lookup. Rescheduled replicas come back without a regeneration.
const backendsTemplate = `{{range .Backends}}
backend {{.Name}}
    balance {{.Balance}}
    cookie {{$.CookieName}} insert indirect nocache
{{- range .Servers}}
    server {{.ID}} {{.Address}}:{{.Port}} check resolvers dns cookie {{.ID}}
{{- end}}
{{end -}}`

// Generator synthesizes haproxy configuration text from a routing spec.
// It holds no state across calls; every invocation re-reads the endpoint
// snapshots and produces a full, self-contained document.
type Generator struct {
	settings config.ProxySettings
	logger   *logger.Logger

	backendsTmpl *template.Template
	frontendTmpl *template.Template
}

// New creates a Generator bound to the given proxy settings.
func New(settings config.ProxySettings, log *logger.Logger) *Generator {
	return &Generator{
		settings:     settings,
		logger:       log.GeneratorLogger(),
		backendsTmpl: template.Must(template.New("backends").Parse(backendsTemplate)),
		frontendTmpl: template.Must(template.New("frontend").Parse(frontendTemplate)),
	}
}

// BuildBackends derives one backend descriptor per service, in input order.
// The balance token is forwarded verbatim; tokens haproxy does not support
// are rejected by haproxy at load time, not here. A service with an empty
// endpoint snapshot yields a backend with no server lines.
func (g *Generator) BuildBackends(services []domain.Service, balance string) []domain.BackendDescriptor {
	descriptors := make([]domain.BackendDescriptor, len(services))
	for i, svc := range services {
		endpoints := svc.Endpoints()
		servers := make([]domain.ServerEntry, len(endpoints))
		for j, addr := range endpoints {
			servers[j] = domain.ServerEntry{
				ID:      domain.ServerID(svc.Name(), j),
				Address: addr,
				Port:    g.settings.InternalPort,
			}
		}
		descriptors[i] = domain.BackendDescriptor{
			Name:    svc.Name(),
			Balance: balance,
			Servers: servers,
		}
	}
	return descriptors
}

// backendsData is the template context for the backend section.
type backendsData struct {
	CookieName string
	Backends   []domain.BackendDescriptor
}

// RenderBackends renders the backend section from its descriptors.
func (g *Generator) RenderBackends(descriptors []domain.BackendDescriptor) (string, error) {
	var buf strings.Builder
	data := backendsData{
		CookieName: g.settings.CookieName,
		Backends:   descriptors,
	}
	if err := g.backendsTmpl.Execute(&buf, data); err != nil {
		return "", errors.WrapError(err, errors.ErrCodeTemplateRender, "backend", "Failed to render backend section")
	}
	return buf.String(), nil
}
