package graph

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"syscall"

	"github.com/sirupsen/logrus"

	"deepflow.io/agent/internal/config"
	"deepflow.io/agent/internal/exception"
	"deepflow.io/agent/internal/external"
)

const minFreeDiskMB = 256

// checkAgentUnique verifies no other instance already owns the PID file,
// refusing to build a second PipelineInstance on the same host.
func checkAgentUnique(pidFile string) error {
	if pidFile == "" {
		return nil
	}
	data, err := os.ReadFile(pidFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("environment: reading pid file %s: %w", pidFile, err)
	}
	pid, err := strconv.Atoi(string(data))
	if err != nil {
		return nil // stale/corrupt pid file, treat as not running
	}
	if processAlive(pid) {
		return fmt.Errorf("environment: agent already running as pid %d (%s)", pid, pidFile)
	}
	return nil
}

func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

// checkControllerIPSanity rejects an empty or unparsable controller address
// list before anything downstream dereferences ControllerIPs[0].
func checkControllerIPSanity(ips []string) error {
	if len(ips) == 0 {
		return fmt.Errorf("environment: no controller IPs configured")
	}
	if net.ParseIP(ips[0]) == nil {
		return fmt.Errorf("environment: controller IP %q does not parse", ips[0])
	}
	return nil
}

// checkFreeDisk enforces the minimum free-disk gate against dataDir.
func checkFreeDisk(dataDir string, bus *exception.Bus) error {
	freeMB, err := external.Current.FreeDiskMB(dataDir)
	if err != nil {
		logrus.WithError(err).Warn("environment: free disk check failed, proceeding")
		return nil
	}
	if freeMB < minFreeDiskMB {
		bus.Set(exception.FreeDiskLow)
		return fmt.Errorf("environment: free disk %dMB below minimum %dMB", freeMB, minFreeDiskMB)
	}
	return nil
}

// checkKernelVersion enforces the kernel-version gate required in
// Analyzer/Mirror capture modes.
func checkKernelVersion(mode config.CaptureMode, bus *exception.Bus) error {
	if mode != config.CaptureAnalyzer && mode != config.CaptureMirror {
		return nil
	}
	ok, release := external.Current.KernelSupported()
	if !ok {
		bus.Set(exception.KernelVersionUnsupported)
		return fmt.Errorf("environment: kernel %s unsupported for capture mode %s", release, mode)
	}
	return nil
}

// checkSourceInterfacesExist enforces Analyzer mode's extra requirement that
// every configured source interface actually exists on the host.
func checkSourceInterfacesExist(mode config.CaptureMode, ifaces []string, bus *exception.Bus) error {
	if mode != config.CaptureAnalyzer {
		return nil
	}
	for _, name := range ifaces {
		if _, err := net.InterfaceByName(name); err != nil {
			bus.Set(exception.InterfaceMissing)
			return fmt.Errorf("environment: source interface %q not found: %w", name, err)
		}
	}
	bus.Clear(exception.InterfaceMissing)
	return nil
}
