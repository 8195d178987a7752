package scraper

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func validSource(name string) Source {
	return Source{
		Name:              name,
		BaseURL:           "https://" + name + ".test",
		MaxPagesPerTarget: 5,
		Targets:           []Target{{Name: "cdmx", Path: "/cdmx"}},
		BuildPageURL: func(baseURL string, _ Target, _ int) string {
			return baseURL
		},
		Parse: func([]byte, Target) (ParsePage, error) {
			return ParsePage{}, nil
		},
	}
}

func TestSourceValidate(t *testing.T) {
	require.NoError(t, validSource("alpha").Validate())

	s := validSource("alpha")
	s.Name = ""
	require.Error(t, s.Validate())

	s = validSource("alpha")
	s.BaseURL = ""
	require.Error(t, s.Validate())

	s = validSource("alpha")
	s.Targets = nil
	require.Error(t, s.Validate())

	s = validSource("alpha")
	s.MaxPagesPerTarget = 0
	require.Error(t, s.Validate())

	s = validSource("alpha")
	s.Parse = nil
	require.Error(t, s.Validate())
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(validSource("beta")))
	require.NoError(t, r.Register(validSource("alpha")))

	// Duplicates and invalid sources are rejected.
	require.Error(t, r.Register(validSource("alpha")))
	bad := validSource("gamma")
	bad.BaseURL = ""
	require.Error(t, r.Register(bad))

	got, ok := r.Get("alpha")
	require.True(t, ok)
	require.Equal(t, "alpha", got.Name)

	_, ok = r.Get("gamma")
	require.False(t, ok)

	require.Equal(t, []string{"alpha", "beta"}, r.Names())
}
