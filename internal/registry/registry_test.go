package registry

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"api-gateway-go/internal/config"
)

func testEntries() []config.ServiceConfig {
	return []config.ServiceConfig{
		{Name: "users", BaseURL: "https://users.example.com/usersservice"},
		{Name: "channels", BaseURL: "https://channel-api.example.com"},
		{Name: "files", BaseURL: "http://files.example.com"},
	}
}

func TestFromServices_Resolve(t *testing.T) {
	r, err := FromServices(testEntries())
	require.NoError(t, err)

	u, err := r.Resolve("users")
	require.NoError(t, err)
	assert.Equal(t, "https://users.example.com/usersservice", u.String())

	_, err = r.Resolve("nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrServiceNotFound))
	assert.Contains(t, err.Error(), `"nope"`)
}

func TestResolve_ReturnsCopy(t *testing.T) {
	r, err := FromServices(testEntries())
	require.NoError(t, err)

	u, err := r.Resolve("channels")
	require.NoError(t, err)
	u.Path = "/mutated"

	again, err := r.Resolve("channels")
	require.NoError(t, err)
	assert.Equal(t, "https://channel-api.example.com", again.String())
}

func TestNames_PreservesOrder(t *testing.T) {
	r, err := FromServices(testEntries())
	require.NoError(t, err)

	assert.Equal(t, []string{"users", "channels", "files"}, r.Names())
	assert.True(t, r.Has("files"))
	assert.False(t, r.Has("wikipedia"))

	all := r.All()
	require.Len(t, all, 3)
	assert.Equal(t, "files", all[2].Name)
}

func TestFromServices_Errors(t *testing.T) {
	tests := []struct {
		name    string
		entries []config.ServiceConfig
	}{
		{"duplicate", []config.ServiceConfig{{Name: "a", BaseURL: "http://a"}, {Name: "a", BaseURL: "http://b"}}},
		{"relative", []config.ServiceConfig{{Name: "a", BaseURL: "/a"}}},
		{"unparseable", []config.ServiceConfig{{Name: "a", BaseURL: "http://[::1"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromServices(tt.entries)
			assert.Error(t, err)
		})
	}
}

func TestNew_FromConfig(t *testing.T) {
	r, err := New(&config.Config{Services: testEntries()})
	require.NoError(t, err)
	assert.Len(t, r.Names(), 3)
}

func TestResolve_ConcurrentReaders(t *testing.T) {
	r, err := FromServices(testEntries())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for n := 0; n < 32; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, name := range r.Names() {
				if _, err := r.Resolve(name); err != nil {
					t.Errorf("Resolve(%q) error = %v", name, err)
				}
			}
		}()
	}
	wg.Wait()
}
