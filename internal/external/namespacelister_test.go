package external

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNamespaceListerDoesNotError(t *testing.T) {
	l := NewNamespaceLister()
	_, err := l.ListNamespaces()
	require.NoError(t, err)
}
