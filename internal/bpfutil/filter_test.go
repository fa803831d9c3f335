package bpfutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildIPv4Expression(t *testing.T) {
	d := Build(false, 4789, 20035, 30035, 40035)
	require.Contains(t, d.Expression, "ip and not")
	require.Contains(t, d.Expression, "port 4789")
	require.Contains(t, d.Expression, "port 40035")
}

func TestBuildIPv6Expression(t *testing.T) {
	d := Build(true, 4789, 20035, 30035, 40035)
	require.Contains(t, d.Expression, "ip6 and not")
}
