package generator

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mir00r/haproxy-gen/internal/config"
	"github.com/mir00r/haproxy-gen/internal/domain"
	"github.com/mir00r/haproxy-gen/internal/errors"
	"github.com/mir00r/haproxy-gen/internal/repository"
	"github.com/mir00r/haproxy-gen/pkg/logger"
)

const testPreamble = `frontend http-in
    bind *:{{.ExposedPort}}
`

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "json", Output: "stderr"})
	require.NoError(t, err)
	return log
}

func testSettings(t *testing.T) config.ProxySettings {
	t.Helper()
	path := filepath.Join(t.TempDir(), "haproxy.cfg.tmpl")
	require.NoError(t, os.WriteFile(path, []byte(testPreamble), 0644))

	settings := config.DefaultSettings().Proxy
	settings.TemplatePath = path
	return settings
}

func newTestGenerator(t *testing.T) *Generator {
	t.Helper()
	return New(testSettings(t), testLogger(t))
}

func TestBuildBackends(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		services []domain.Service
		balance  string
		expected []domain.BackendDescriptor
	}{
		{
			name: "two services in input order",
			services: []domain.Service{
				repository.NewStaticService("web", []string{"10.0.0.1", "10.0.0.2"}),
				repository.NewStaticService("api", []string{"10.0.1.1"}),
			},
			balance: "roundrobin",
			expected: []domain.BackendDescriptor{
				{
					Name:    "web",
					Balance: "roundrobin",
					Servers: []domain.ServerEntry{
						{ID: "web-0", Address: "10.0.0.1", Port: 80},
						{ID: "web-1", Address: "10.0.0.2", Port: 80},
					},
				},
				{
					Name:    "api",
					Balance: "roundrobin",
					Servers: []domain.ServerEntry{
						{ID: "api-0", Address: "10.0.1.1", Port: 80},
					},
				},
			},
		},
		{
			name: "empty endpoint snapshot yields backend with no servers",
			services: []domain.Service{
				repository.NewStaticService("idle", nil),
			},
			balance: "leastconn",
			expected: []domain.BackendDescriptor{
				{Name: "idle", Balance: "leastconn", Servers: []domain.ServerEntry{}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := newTestGenerator(t)
			descriptors := gen.BuildBackends(tt.services, tt.balance)
			assert.Equal(t, tt.expected, descriptors)
		})
	}
}

func TestBuildBackends_OpaqueBalanceToken(t *testing.T) {
	t.Parallel()

	gen := newTestGenerator(t)
	descriptors := gen.BuildBackends([]domain.Service{
		repository.NewStaticService("web", []string{"10.0.0.1"}),
	}, "definitely-not-a-real-algorithm")

	// The token is forwarded verbatim; rejecting it is haproxy's job.
	assert.Equal(t, "definitely-not-a-real-algorithm", descriptors[0].Balance)
}

func TestRenderBackends_SingleServiceScenario(t *testing.T) {
	t.Parallel()

	gen := newTestGenerator(t)
	web := repository.NewStaticService("web", []string{"10.0.0.1", "10.0.0.2"})

	out, err := gen.RenderBackends(gen.BuildBackends([]domain.Service{web}, "roundrobin"))
	require.NoError(t, err)

	expected := `
backend web
    balance roundrobin
    cookie SERVERID insert indirect nocache
    server web-0 10.0.0.1:80 check resolvers dns cookie web-0
    server web-1 10.0.0.2:80 check resolvers dns cookie web-1
`
	assert.Equal(t, expected, out)
}

func TestRenderFrontend_SingleTarget(t *testing.T) {
	t.Parallel()

	gen := newTestGenerator(t)
	spec := domain.NewSingleTarget(repository.NewStaticService("web", []string{"10.0.0.1"}))

	out, err := gen.RenderFrontend(spec)
	require.NoError(t, err)

	assert.Equal(t, "    default_backend web", out)
	assert.Equal(t, 1, strings.Count(out, "default_backend"))
	assert.NotContains(t, out, "acl ")
	assert.NotContains(t, out, "use_backend")
}

func TestRenderFrontend_HostRouting(t *testing.T) {
	t.Parallel()

	gen := newTestGenerator(t)
	svcA := repository.NewStaticService("svcA", []string{"10.0.0.1"})
	svcB := repository.NewStaticService("svcB", []string{"10.0.0.2"})
	spec := domain.NewMultiTarget([]domain.DomainRoute{
		{Domain: "a.com", Service: svcA},
		{Domain: "b.com", Service: svcB},
	})

	out, err := gen.RenderFrontend(spec)
	require.NoError(t, err)

	expected := strings.Join([]string{
		"    acl svcA_req hdr(host) -i a.com",
		"    acl svcB_req hdr(host) -i b.com",
		"    use_backend svcA if svcA_req",
		"    use_backend svcB if svcB_req",
	}, "\n")
	assert.Equal(t, expected, out)

	// Declarations come before any use, and rule order follows route order.
	assert.Less(t, strings.Index(out, "acl svcB_req"), strings.Index(out, "use_backend svcA"))
}

func TestBuildRoutingRules_DuplicateDomain(t *testing.T) {
	t.Parallel()

	svcA := repository.NewStaticService("svcA", nil)
	svcB := repository.NewStaticService("svcB", nil)

	_, err := BuildRoutingRules([]domain.DomainRoute{
		{Domain: "a.com", Service: svcA},
		{Domain: "a.com", Service: svcB},
	})

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeDuplicateDomain, errors.GetErrorCode(err))
}

func TestBuildRoutingRules_EscapesDomains(t *testing.T) {
	t.Parallel()

	rules, err := BuildRoutingRules([]domain.DomainRoute{
		{Domain: "a b.com", Service: repository.NewStaticService("svcA", nil)},
	})
	require.NoError(t, err)
	assert.Equal(t, `a\ b.com`, rules[0].Domain)
}

func TestAssemble_SingleTarget(t *testing.T) {
	t.Parallel()

	gen := newTestGenerator(t)
	web := repository.NewStaticService("web", []string{"10.0.0.1", "10.0.0.2"})

	doc, err := gen.Assemble(domain.NewSingleTarget(web), "roundrobin")
	require.NoError(t, err)
	require.Len(t, doc, 1)

	content, ok := doc[config.DefaultConfigPath]
	require.True(t, ok, "document must be keyed by the fixed config path")

	expected := `frontend http-in
    bind *:80
    default_backend web

backend web
    balance roundrobin
    cookie SERVERID insert indirect nocache
    server web-0 10.0.0.1:80 check resolvers dns cookie web-0
    server web-1 10.0.0.2:80 check resolvers dns cookie web-1
`
	assert.Equal(t, expected, content)
}

func TestAssemble_Idempotent(t *testing.T) {
	t.Parallel()

	gen := newTestGenerator(t)
	spec := domain.NewMultiTarget([]domain.DomainRoute{
		{Domain: "a.com", Service: repository.NewStaticService("svcA", []string{"10.0.0.1"})},
		{Domain: "b.com", Service: repository.NewStaticService("svcB", []string{"10.0.0.2"})},
	})

	first, err := gen.Assemble(spec, "roundrobin")
	require.NoError(t, err)
	second, err := gen.Assemble(spec, "roundrobin")
	require.NoError(t, err)

	assert.Equal(t, first, second, "identical snapshots must produce byte-identical documents")
}

func TestAssemble_EndpointGrowthAppendsOneServerLine(t *testing.T) {
	t.Parallel()

	gen := newTestGenerator(t)
	web := repository.NewStaticService("web", []string{"10.0.0.1"})
	api := repository.NewStaticService("api", []string{"10.0.1.1"})
	spec := domain.NewMultiTarget([]domain.DomainRoute{
		{Domain: "web.example.com", Service: web},
		{Domain: "api.example.com", Service: api},
	})

	before, err := gen.Assemble(spec, "roundrobin")
	require.NoError(t, err)

	web.SetEndpoints([]string{"10.0.0.1", "10.0.0.9"})

	after, err := gen.Assemble(spec, "roundrobin")
	require.NoError(t, err)

	added := "    server web-1 10.0.0.9:80 check resolvers dns cookie web-1\n"
	beforeText := before[config.DefaultConfigPath]
	afterText := after[config.DefaultConfigPath]

	assert.NotContains(t, beforeText, "web-1")
	assert.Contains(t, afterText, added)
	// Removing the appended line restores the previous document; nothing
	// else may change.
	assert.Equal(t, beforeText, strings.Replace(afterText, added, "", 1))
}

func TestAssemble_SharedServiceDeduplicated(t *testing.T) {
	t.Parallel()

	gen := newTestGenerator(t)
	shared := repository.NewStaticService("shared", []string{"10.0.0.1"})
	spec := domain.NewMultiTarget([]domain.DomainRoute{
		{Domain: "a.com", Service: shared},
		{Domain: "b.com", Service: shared},
	})

	doc, err := gen.Assemble(spec, "roundrobin")
	require.NoError(t, err)
	content := doc[config.DefaultConfigPath]

	assert.Equal(t, 1, strings.Count(content, "\nbackend shared\n"))
	assert.Equal(t, 2, strings.Count(content, "use_backend shared if"))
	assert.Contains(t, content, "acl shared_req hdr(host) -i a.com")
	assert.Contains(t, content, "acl shared_req hdr(host) -i b.com")
}

func TestAssemble_NoServices(t *testing.T) {
	t.Parallel()

	gen := newTestGenerator(t)

	_, err := gen.Assemble(domain.NewMultiTarget(nil), "roundrobin")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeNoServices, errors.GetErrorCode(err))
}

func TestAssemble_MissingTemplate(t *testing.T) {
	t.Parallel()

	settings := config.DefaultSettings().Proxy
	settings.TemplatePath = filepath.Join(t.TempDir(), "does-not-exist.tmpl")
	gen := New(settings, testLogger(t))

	_, err := gen.Assemble(domain.NewSingleTarget(repository.NewStaticService("web", nil)), "roundrobin")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeTemplateRead, errors.GetErrorCode(err))
}

func TestAssemble_EmptyEndpointsStillEmitsBackend(t *testing.T) {
	t.Parallel()

	gen := newTestGenerator(t)
	idle := repository.NewStaticService("idle", nil)

	doc, err := gen.Assemble(domain.NewSingleTarget(idle), "roundrobin")
	require.NoError(t, err)
	content := doc[config.DefaultConfigPath]

	assert.Contains(t, content, "backend idle\n")
	assert.Contains(t, content, "cookie SERVERID insert indirect nocache")
	assert.NotContains(t, content, "server ")
}
