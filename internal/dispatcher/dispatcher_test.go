package dispatcher

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"deepflow.io/agent/internal/component"
	"deepflow.io/agent/internal/config"
)

func TestBuilderRequiresUnitName(t *testing.T) {
	_, _, err := NewBuilder("").Build()
	require.Error(t, err)
}

func TestStartStopIdempotent(t *testing.T) {
	d, _, err := NewBuilder("eth0").Build()
	require.NoError(t, err)

	require.NoError(t, d.Start())
	require.NoError(t, d.Start())
	require.NoError(t, d.Stop())
	require.NoError(t, d.Stop())
}

type fakeResolver struct {
	calls int
}

func (f *fakeResolver) ResolveInterfaces(namespace, regex string) ([]string, error) {
	f.calls++
	if namespace == "broken" {
		return nil, fmt.Errorf("resolution failed")
	}
	return []string{"veth0"}, nil
}

func TestApplyHotConfigLocalRootNamespace(t *testing.T) {
	var pushed []component.DispatcherUpdate
	l := &component.DispatcherListener{
		Kind: component.ListenerLocal,
		Push: func(u component.DispatcherUpdate) { pushed = append(pushed, u) },
	}
	resolver := &fakeResolver{}
	ApplyHotConfig(l, resolver, []string{"eth0", "eth1"}, "", component.DispatcherUpdate{VMMacAddrs: []string{"aa:bb"}}, nil)

	require.Len(t, pushed, 2)
	require.Equal(t, []string{"eth0", "eth1"}, pushed[0].Interfaces)
	require.Equal(t, []string{"aa:bb"}, pushed[1].VMMacAddrs)
	require.Equal(t, 0, resolver.calls, "root namespace must not re-resolve")
}

func TestApplyHotConfigLocalNamespaceResolves(t *testing.T) {
	var pushed []component.DispatcherUpdate
	l := &component.DispatcherListener{
		Kind:      component.ListenerLocal,
		Namespace: "ns-a",
		Push:      func(u component.DispatcherUpdate) { pushed = append(pushed, u) },
	}
	resolver := &fakeResolver{}
	ApplyHotConfig(l, resolver, nil, "", component.DispatcherUpdate{}, nil)
	require.Equal(t, []string{"veth0"}, pushed[0].Interfaces)
	require.Equal(t, 1, resolver.calls)
}

func TestApplyHotConfigLocalNamespaceResolutionErrorIsNotFatal(t *testing.T) {
	var pushed []component.DispatcherUpdate
	l := &component.DispatcherListener{
		Kind:      component.ListenerLocal,
		Namespace: "broken",
		Push:      func(u component.DispatcherUpdate) { pushed = append(pushed, u) },
	}
	ApplyHotConfig(l, &fakeResolver{}, []string{"fallback"}, "", component.DispatcherUpdate{}, nil)
	require.Nil(t, pushed[0].Interfaces, "on resolution error, update.Interfaces stays whatever was set (zero value here)")
}

func TestApplyHotConfigMirrorPushesEmptyInterfaces(t *testing.T) {
	var pushed []component.DispatcherUpdate
	l := &component.DispatcherListener{
		Kind: component.ListenerMirror,
		Push: func(u component.DispatcherUpdate) { pushed = append(pushed, u) },
	}
	ApplyHotConfig(l, nil, []string{"eth0"}, "", component.DispatcherUpdate{}, nil)
	require.Nil(t, pushed[0].Interfaces)
	require.Equal(t, component.IfMacSourceIfMac, pushed[0].MacSource)
}

func TestApplyHotConfigAnalyzerDiffsTapTypes(t *testing.T) {
	var pushed []component.DispatcherUpdate
	l := &component.DispatcherListener{
		Kind: component.ListenerAnalyzer,
		Push: func(u component.DispatcherUpdate) { pushed = append(pushed, u) },
	}
	newTapTypes := []config.TapType{{ID: 1, Name: "t1"}}
	got := ApplyHotConfig(l, nil, nil, "", component.DispatcherUpdate{TapTypes: newTapTypes}, nil)

	require.Equal(t, newTapTypes, got)
	require.Len(t, pushed, 3, "iface push, vmmac push, and tap-type push")
}

func TestApplyHotConfigAnalyzerSkipsPushWhenTapTypesUnchanged(t *testing.T) {
	var pushed []component.DispatcherUpdate
	l := &component.DispatcherListener{
		Kind: component.ListenerAnalyzer,
		Push: func(u component.DispatcherUpdate) { pushed = append(pushed, u) },
	}
	same := []config.TapType{{ID: 1, Name: "t1"}}
	got := ApplyHotConfig(l, nil, nil, "", component.DispatcherUpdate{TapTypes: same}, same)

	require.Equal(t, same, got)
	require.Len(t, pushed, 2, "no tap-type push when unchanged")
}
