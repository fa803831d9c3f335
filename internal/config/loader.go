package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// ErrInvalidYAML is returned by Load when the primary config file exists but
// fails to parse; the caller (Load itself) uses this to decide whether to
// fall back to the legacy path.
var ErrInvalidYAML = errors.New("config: invalid yaml")

// fallbackPath returns the platform legacy config location consulted when
// the primary path yields ErrInvalidYAML.
func fallbackPath() string {
	if runtime.GOOS == "windows" {
		return `C:\DeepFlow\trident\trident-windows.yaml`
	}
	return "/etc/trident.yaml"
}

// k8sNodeIPEnv names an environment variable whose value Load uses as the
// sole controller IP when the config file lists none; a configured
// controller_ips list takes precedence over it.
const k8sNodeIPEnv = "K8S_NODE_IP_FOR_DEEPFLOW"

// Load loads configuration from path, retrying the platform fallback path
// when the primary file is present but invalid YAML. In Managed mode the
// full StaticConfig is read; in Standalone mode only RuntimeConfig is read
// and a StaticConfig is synthesized.
func Load(path string, mode RunningMode) (*StaticConfig, *RuntimeConfig, error) {
	static, runtimeCfg, err := loadOnce(path, mode)
	if err != nil {
		if errors.Is(err, ErrInvalidYAML) {
			static, runtimeCfg, err = loadOnce(fallbackPath(), mode)
		}
		if err != nil {
			return nil, nil, err
		}
	}

	if mode == Standalone {
		static = &StaticConfig{
			ControllerIPs: []string{"127.0.0.1"},
			AgentMode:     Standalone,
			Log:           static.Log,
			DataDir:       static.DataDir,
			ControlSocket: static.ControlSocket,
			PIDFile:       static.PIDFile,
		}
	} else {
		static.AgentMode = Managed
	}

	return static, runtimeCfg, nil
}

func loadOnce(path string, mode RunningMode) (*StaticConfig, *RuntimeConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		return nil, nil, fmt.Errorf("%w: %s: %v", ErrInvalidYAML, path, err)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	var root struct {
		Agent struct {
			StaticConfig  `mapstructure:",squash"`
			RuntimeConfig RuntimeConfig `mapstructure:"runtime"`
		} `mapstructure:"agent"`
	}
	if err := v.Unmarshal(&root); err != nil {
		return nil, nil, fmt.Errorf("%w: %s: unmarshal: %v", ErrInvalidYAML, path, err)
	}

	static := root.Agent.StaticConfig
	runtimeCfg := root.Agent.RuntimeConfig

	if ip := os.Getenv(k8sNodeIPEnv); ip != "" && len(static.ControllerIPs) == 0 {
		static.ControllerIPs = []string{ip}
	}

	if mode == Standalone {
		// Standalone loads RuntimeConfig only; StaticConfig fields other than
		// Log/DataDir/ControlSocket/PIDFile are discarded by the caller.
	}

	return &static, &runtimeCfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("agent.control_socket", "/var/run/deepflow-agent.sock")
	v.SetDefault("agent.pid_file", "/var/run/deepflow-agent.pid")
	v.SetDefault("agent.data_dir", "/var/lib/deepflow-agent")

	v.SetDefault("agent.log.level", "info")
	v.SetDefault("agent.log.format", "json")
	v.SetDefault("agent.log.file_path", "/var/log/deepflow-agent/agent.log")
	v.SetDefault("agent.log.max_size_mb", 100)
	v.SetDefault("agent.log.max_backups", 7)
	v.SetDefault("agent.log.max_age_days", 7)
	v.SetDefault("agent.log.compress", true)

	v.SetDefault("agent.runtime.capture_mode", string(CaptureLocal))
	v.SetDefault("agent.runtime.metrics_type", string(MetricsBoth))
	v.SetDefault("agent.runtime.packet_delay", "1s")
	v.SetDefault("agent.runtime.flush_interval", "1s")
	v.SetDefault("agent.runtime.second_flow_extra_delay", "0s")
	v.SetDefault("agent.runtime.yaml_config.quadruple_queue_size", 65536)
	v.SetDefault("agent.runtime.yaml_config.flow_queue_size", 65536)
	v.SetDefault("agent.runtime.yaml_config.log_queue_size", 65536)
	v.SetDefault("agent.runtime.yaml_config.packet_sequence_queue_size", 65536)
	v.SetDefault("agent.runtime.yaml_config.l4_flow_aggr_queue_size", 65536)
	v.SetDefault("agent.runtime.yaml_config.metrics_queue_size", 65536)
	v.SetDefault("agent.runtime.yaml_config.proto_log_queue_size", 65536)
	v.SetDefault("agent.runtime.yaml_config.hash_slots", 1024)
}
