// Package config loads and represents agent configuration.
//
// Two generations of settings are modeled: a StaticConfig read once at boot
// (controller addresses, logging, control-socket paths) and a RuntimeConfig
// that arrives inside every ChangedConfig payload and may be hot-applied or
// force a restart depending on whether its YamlConfig subset changed.
package config

import "time"

// RunningMode selects whether the agent is driven by a remote controller
// (Managed) or is authoritative from its local config file alone (Standalone).
type RunningMode int

const (
	Managed RunningMode = iota
	Standalone
)

func (m RunningMode) String() string {
	if m == Standalone {
		return "standalone"
	}
	return "managed"
}

// CaptureMode selects the packet-ingress strategy (GLOSSARY "Tap mode").
type CaptureMode string

const (
	CaptureLocal    CaptureMode = "local"
	CaptureMirror   CaptureMode = "mirror"
	CaptureAnalyzer CaptureMode = "analyzer"
)

// MetricsType selects which Collector levels a CollectorPipeline instantiates.
type MetricsType string

const (
	MetricsSecond MetricsType = "second"
	MetricsMinute MetricsType = "minute"
	MetricsBoth   MetricsType = "both"
)

// StaticConfig is the subset of configuration read once at boot and never
// hot-reloaded in place; a change to any of its topology-affecting fields is
// carried instead inside RuntimeConfig.YamlConfig.
type StaticConfig struct {
	ControllerIPs []string    `mapstructure:"controller_ips"`
	AgentMode     RunningMode `mapstructure:"-"`
	Log           LogConfig   `mapstructure:"log"`
	DataDir       string      `mapstructure:"data_dir"`
	ControlSocket string      `mapstructure:"control_socket"`
	PIDFile       string      `mapstructure:"pid_file"`
}

// LogConfig configures the logging subsystem.
type LogConfig struct {
	Level           string `mapstructure:"level"`
	Format          string `mapstructure:"format"`
	FilePath        string `mapstructure:"file_path"`
	MaxSizeMB       int    `mapstructure:"max_size_mb"`
	MaxBackups      int    `mapstructure:"max_backups"`
	MaxAgeDays      int    `mapstructure:"max_age_days"`
	Compress        bool   `mapstructure:"compress"`
	RemoteEnabled   bool   `mapstructure:"remote_enabled"`
	RemoteLevel     string `mapstructure:"remote_level"`
	RemoteHostname  string `mapstructure:"remote_hostname"`
	IngesterAddr    string `mapstructure:"ingester_addr"`
}

// YamlConfig is the topology-affecting subset of RuntimeConfig: immutable for
// the life of a PipelineInstance, a change forces a restart rather than a
// hot-apply. Keep this struct comparable with == — no maps/slices of
// pointers.
type YamlConfig struct {
	QuadrupleQueueSize      int `mapstructure:"quadruple_queue_size"`
	FlowQueueSize           int `mapstructure:"flow_queue_size"`
	LogQueueSize            int `mapstructure:"log_queue_size"`
	PacketSequenceQueueSize int `mapstructure:"packet_sequence_queue_size"`
	L4FlowAggrQueueSize     int `mapstructure:"l4_flow_aggr_queue_size"`
	MetricsQueueSize        int `mapstructure:"metrics_queue_size"`
	ProtoLogQueueSize       int `mapstructure:"proto_log_queue_size"`
	HashSlots               int `mapstructure:"hash_slots"`
}

// Equal reports whether two YamlConfig snapshots are topologically identical.
func (y YamlConfig) Equal(other YamlConfig) bool {
	return y == other
}

// RuntimeConfig is the live-tunable settings carried by every ConfigChanged
// event.
type RuntimeConfig struct {
	CaptureMode         CaptureMode       `mapstructure:"capture_mode"`
	SourceInterfaces    []string          `mapstructure:"source_interfaces"`
	InterfaceRegex      string            `mapstructure:"interface_regex"`
	ExtraNetnsRegex     string            `mapstructure:"extra_netns_regex"`
	ControllerEndpoints []string          `mapstructure:"controller_endpoints"`
	EnabledSinks        []string          `mapstructure:"enabled_sinks"`
	FeatureFlags        map[string]bool   `mapstructure:"feature_flags"`
	GlobalPPSThreshold  int               `mapstructure:"global_pps_threshold"` // 0 = unlimited, only meaningful outside Analyzer mode
	L7LogRateThreshold  int               `mapstructure:"l7_log_rate_threshold"`
	NPBBandwidthBps     int64             `mapstructure:"npb_bandwidth_bps"`
	MetricsType         MetricsType       `mapstructure:"metrics_type"`
	PacketDelay         time.Duration     `mapstructure:"packet_delay"`
	FlushInterval       time.Duration     `mapstructure:"flush_interval"`
	SecondFlowExtraDelay time.Duration    `mapstructure:"second_flow_extra_delay"`
	YamlConfig          YamlConfig        `mapstructure:"yaml_config"`
}

// TapType describes one analyzer tap source (GLOSSARY "Tap mode" / Analyzer).
type TapType struct {
	ID   uint16 `mapstructure:"id"`
	Name string `mapstructure:"name"`
}

// TapTypesEqual diffs two tap-type lists length-then-elementwise, as used by
// the Analyzer capture-mode branch to decide whether to rebuild tap filters.
func TapTypesEqual(a, b []TapType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ChangedConfig is the payload carried by the ConfigChanged agent state.
type ChangedConfig struct {
	Runtime             RuntimeConfig
	Blacklist           []string
	VMMacAddrs          []string
	KubernetesClusterID string
	TapTypes            []TapType
}
