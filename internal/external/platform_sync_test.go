package external

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPlatformSynchronizerStartStopIsClean(t *testing.T) {
	libvirt := NewLibvirtXmlExtractor("")
	p := NewPlatformSynchronizer(5*time.Millisecond, libvirt)
	require.NoError(t, p.Start())
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, p.Stop())
}

func TestPlatformSynchronizerToleratesNilExtractor(t *testing.T) {
	p := NewPlatformSynchronizer(5*time.Millisecond, nil)
	require.NoError(t, p.Start())
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, p.Stop())
}
