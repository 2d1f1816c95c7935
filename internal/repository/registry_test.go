package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticServiceSnapshots(t *testing.T) {
	t.Parallel()

	svc := NewStaticService("web", []string{"10.0.0.1"})
	assert.Equal(t, "web", svc.Name())

	snapshot := svc.Endpoints()
	assert.Equal(t, []string{"10.0.0.1"}, snapshot)

	// Mutating a returned snapshot must not leak into the service.
	snapshot[0] = "changed"
	assert.Equal(t, []string{"10.0.0.1"}, svc.Endpoints())

	svc.SetEndpoints([]string{"10.0.0.1", "10.0.0.2"})
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, svc.Endpoints())
	// The old snapshot is unaffected by the update.
	assert.Equal(t, []string{"changed"}, snapshot)
}

func TestRegistryRegisterAndGet(t *testing.T) {
	t.Parallel()

	registry := NewInMemoryServiceRegistry()
	web := NewStaticService("web", nil)

	require.NoError(t, registry.Register(web))

	got, err := registry.Get("web")
	require.NoError(t, err)
	assert.Equal(t, "web", got.Name())

	_, err = registry.Get("ghost")
	assert.Error(t, err)
}

func TestRegistryRejectsDuplicatesAndNil(t *testing.T) {
	t.Parallel()

	registry := NewInMemoryServiceRegistry()
	require.NoError(t, registry.Register(NewStaticService("web", nil)))

	assert.Error(t, registry.Register(NewStaticService("web", nil)))
	assert.Error(t, registry.Register(nil))
	assert.Error(t, registry.Register(NewStaticService("", nil)))
}

func TestRegistryListKeepsRegistrationOrder(t *testing.T) {
	t.Parallel()

	registry := NewInMemoryServiceRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, registry.Register(NewStaticService(name, nil)))
	}

	services := registry.List()
	require.Len(t, services, 3)

	names := make([]string, len(services))
	for i, svc := range services {
		names[i] = svc.Name()
	}
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, names)
}
