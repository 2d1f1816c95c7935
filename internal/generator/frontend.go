package generator

import (
	"strings"

	"github.com/mir00r/haproxy-gen/internal/domain"
	"github.com/mir00r/haproxy-gen/internal/errors"
)

// frontendTemplate renders the frontend section. In multi-target mode every
// acl declaration is emitted before any use_backend directive, because the
// grammar requires declarations before use. Rule order follows the caller's
// route order so regenerated output stays diffable.
const frontendTemplate = `{{- if .Default}}
    default_backend {{.Default}}
{{- else}}
{{- range .Rules}}
    acl {{.MatchID}} hdr(host) -i {{.Domain}}
{{- end}}
{{- range .Rules}}
    use_backend {{.BackendName}} if {{.MatchID}}
{{- end}}
{{- end}}`

// frontendData is the template context for the frontend section. Exactly one
// of Default and Rules is set.
type frontendData struct {
	Default string
	Rules   []domain.FrontendRule
}

// BuildRoutingRules derives the ordered host-match rules for a multi-target
// spec. Duplicate domain keys are rejected here: reproducing them would
// generate two match rules for the same literal domain test, whose behavior
// depends on the consuming proxy's evaluation order.
func BuildRoutingRules(routes []domain.DomainRoute) ([]domain.FrontendRule, error) {
	seen := make(map[string]bool, len(routes))
	rules := make([]domain.FrontendRule, len(routes))
	for i, route := range routes {
		if seen[route.Domain] {
			return nil, errors.NewDuplicateDomainError(route.Domain)
		}
		seen[route.Domain] = true

		name := route.Service.Name()
		rules[i] = domain.FrontendRule{
			MatchID:     domain.MatchID(name),
			Domain:      escapeDomain(route.Domain),
			BackendName: name,
		}
	}
	return rules, nil
}

// RenderFrontend renders the frontend section for the given routing spec:
// one unconditional default_backend directive in single-target mode, or the
// acl/use_backend pairs in multi-target mode.
func (g *Generator) RenderFrontend(spec domain.RoutingSpec) (string, error) {
	var data frontendData
	if spec.IsSingle() {
		data.Default = spec.Single().Name()
	} else {
		rules, err := BuildRoutingRules(spec.Routes())
		if err != nil {
			return "", err
		}
		data.Rules = rules
	}

	var buf strings.Builder
	if err := g.frontendTmpl.Execute(&buf, data); err != nil {
		return "", errors.WrapError(err, errors.ErrCodeTemplateRender, "frontend", "Failed to render frontend section")
	}
	return strings.Trim(buf.String(), "\n"), nil
}

// escapeDomain escapes characters that would terminate an acl argument.
// Domains are caller-supplied; escaping centrally keeps the match literal
// intact no matter which call site produced the route.
func escapeDomain(raw string) string {
	raw = strings.ReplaceAll(raw, `\`, `\\`)
	return strings.ReplaceAll(raw, " ", `\ `)
}
