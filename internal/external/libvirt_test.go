package external

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleDomainXML = `<domain type="kvm">
  <name>vm-1</name>
  <devices>
    <interface type="bridge">
      <mac address="52:54:00:aa:bb:cc"/>
    </interface>
  </devices>
</domain>`

func TestLibvirtExtractorParsesDomainXML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vm-1.xml"), []byte(sampleDomainXML), 0o644))

	e := NewLibvirtXmlExtractor(dir)
	require.NoError(t, e.Start())

	domains := e.Domains()
	require.Len(t, domains, 1)
	require.Equal(t, "vm-1", domains[0].Name)
	require.Equal(t, []string{"52:54:00:aa:bb:cc"}, domains[0].MACs)
}

func TestLibvirtExtractorIgnoresMissingDir(t *testing.T) {
	e := NewLibvirtXmlExtractor(filepath.Join(t.TempDir(), "does-not-exist"))
	require.NoError(t, e.Start())
	require.Empty(t, e.Domains())
}

func TestLibvirtExtractorEmptyDirConfiguresNoOp(t *testing.T) {
	e := NewLibvirtXmlExtractor("")
	require.NoError(t, e.Start())
	require.Empty(t, e.Domains())
}
