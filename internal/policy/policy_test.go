package policy

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewClampsToAtLeastOneShard(t *testing.T) {
	p := New(0)
	require.Equal(t, 1, p.ShardCount())
}

func TestNewBuildsRequestedShardCount(t *testing.T) {
	p := New(4)
	require.Equal(t, 4, p.ShardCount())
}

func TestOnFlowACLUpdatePropagatesToAllShards(t *testing.T) {
	p := New(3)
	p.OnFlowACLUpdate([]byte("deny all"))
	for _, key := range []string{"10.0.0.1:80", "10.0.0.2:443", "192.168.1.1:22"} {
		require.True(t, p.ShardFor(key).Match(key))
	}
}

func TestShardForIsStableForSameKey(t *testing.T) {
	p := New(5)
	p.OnFlowACLUpdate([]byte("x"))
	first := p.ShardFor("stable-key")
	second := p.ShardFor("stable-key")
	require.Same(t, first, second)
}
