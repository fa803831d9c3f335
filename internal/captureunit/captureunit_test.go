package captureunit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeLister struct {
	namespaces []string
}

func (f fakeLister) ListNamespaces() ([]string, error) { return f.namespaces, nil }

func TestEnumerateDefaultsToSingleRootUnit(t *testing.T) {
	units, err := Enumerate(nil, "", nil)
	require.NoError(t, err)
	require.Equal(t, []Unit{{Interface: "", Namespace: ""}}, units)
}

func TestEnumerateOneUnitPerInterface(t *testing.T) {
	units, err := Enumerate([]string{"eth0", "eth1"}, "", nil)
	require.NoError(t, err)
	require.Equal(t, []Unit{{Interface: "eth0"}, {Interface: "eth1"}}, units)
}

func TestEnumerateAppendsSortedExtraNamespaces(t *testing.T) {
	lister := fakeLister{namespaces: []string{"ns-b", "ns-a", "other"}}
	units, err := Enumerate([]string{"eth0"}, "^ns-", lister)
	require.NoError(t, err)
	require.Equal(t, []Unit{
		{Interface: "eth0"},
		{Interface: "", Namespace: "ns-a"},
		{Interface: "", Namespace: "ns-b"},
	}, units)
}

func TestEnumerateRejectsInvalidRegex(t *testing.T) {
	_, err := Enumerate(nil, "(unterminated", fakeLister{})
	require.Error(t, err)
}
