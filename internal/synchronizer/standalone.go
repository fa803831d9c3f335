package synchronizer

import (
	"context"
	"net"

	"deepflow.io/agent/internal/config"
	"deepflow.io/agent/internal/exception"
	"deepflow.io/agent/internal/state"
)

// standaloneSynchronizer posts exactly one ConfigChanged snapshot at Start,
// built from the boot RuntimeConfig already loaded from disk (an empty
// RuntimeConfig when boot is nil), and never talks to
// a controller. ResetSession is a no-op since there is no controller
// address set to resolve.
type standaloneSynchronizer struct {
	base
	static *config.StaticConfig
	boot   *config.RuntimeConfig
}

func newStandalone(static *config.StaticConfig, boot *config.RuntimeConfig, bus *exception.Bus) *standaloneSynchronizer {
	return &standaloneSynchronizer{base: newBase(bus), static: static, boot: boot}
}

func (s *standaloneSynchronizer) Start(ctx context.Context, cell *state.Cell) error {
	runtimeCfg := config.RuntimeConfig{}
	if s.boot != nil {
		runtimeCfg = *s.boot
	}
	cell.Post(state.Snapshot{
		Phase:   state.ConfigChanged,
		Payload: &config.ChangedConfig{Runtime: runtimeCfg},
	})
	return nil
}

func (s *standaloneSynchronizer) Stop() {}

func (s *standaloneSynchronizer) ResetSession(ips []string, ctrlIP net.IP, ctrlMAC net.HardwareAddr) error {
	return nil
}
