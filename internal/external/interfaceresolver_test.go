package external

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInterfaceResolverNoRegexReturnsAllInterfaces(t *testing.T) {
	r := NewInterfaceResolver()
	names, err := r.ResolveInterfaces("", "")
	require.NoError(t, err)
	require.NotEmpty(t, names, "every host has at least a loopback interface")
}

func TestInterfaceResolverRejectsInvalidRegex(t *testing.T) {
	r := NewInterfaceResolver()
	_, err := r.ResolveInterfaces("", "[")
	require.Error(t, err)
}

func TestInterfaceResolverFiltersByRegex(t *testing.T) {
	r := NewInterfaceResolver()
	names, err := r.ResolveInterfaces("", "^this-name-will-never-match-any-nic$")
	require.NoError(t, err)
	require.Empty(t, names)
}
