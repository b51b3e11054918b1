// Package config loads and validates the EtherNet/IP simulator's YAML
// configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ServerConfig is the top-level server configuration document.
type ServerConfig struct {
	Server   ServerSection   `yaml:"server"`
	Identity IdentityConfig  `yaml:"identity"`
	Tags     TagConfig       `yaml:"tags"`
	Session  SessionConfig   `yaml:"session"`
	ENIP     ENIPConfig      `yaml:"enip,omitempty"`
	CIP      CIPPolicyConfig `yaml:"cip,omitempty"`
	Faults   FaultConfig     `yaml:"faults,omitempty"`
	Logging  LoggingConfig   `yaml:"logging,omitempty"`
	Metrics  MetricsConfig   `yaml:"metrics,omitempty"`
}

// ServerSection controls bind addresses and device bookkeeping.
type ServerSection struct {
	Name             string `yaml:"name"`
	ListenIP         string `yaml:"listen_ip"`
	TCPPort          int    `yaml:"tcp_port"`
	UDPPort          int    `yaml:"udp_port"`
	EnableUDP        bool   `yaml:"enable_udp"`
	DeviceSlotNumber uint8  `yaml:"device_slot_number,omitempty"`
	RNGSeed          int64  `yaml:"rng_seed,omitempty"`
}

// IdentityConfig fills the static CIP Identity Object / LIST_IDENTITY
// attributes (spec.md §3 "Device identity", §6).
type IdentityConfig struct {
	VendorID    uint16 `yaml:"vendor_id,omitempty"`
	DeviceType  uint16 `yaml:"device_type,omitempty"`
	ProductCode uint32 `yaml:"product_code,omitempty"`
	RevMajor    uint8  `yaml:"revision_major,omitempty"`
	RevMinor    uint8  `yaml:"revision_minor,omitempty"`
	Status      uint16 `yaml:"status,omitempty"`
	Serial      uint32 `yaml:"serial,omitempty"`
	ProductName string `yaml:"product_name,omitempty"`
}

// TagConfig controls how many symbolic tags are generated at startup.
type TagConfig struct {
	Count int `yaml:"count,omitempty"`
}

// SessionConfig controls session lifecycle and the supplemental session
// limits carried from the teacher (SPEC_FULL.md §12).
type SessionConfig struct {
	IdleTimeoutMs    int `yaml:"idle_timeout_ms,omitempty"`
	SweepIntervalMs  int `yaml:"sweep_interval_ms,omitempty"`
	MaxSessions      int `yaml:"max_sessions,omitempty"`
	MaxSessionsPerIP int `yaml:"max_sessions_per_ip,omitempty"`
}

// ENIPSupportConfig toggles which encapsulation commands are answered.
type ENIPSupportConfig struct {
	ListIdentity    *bool `yaml:"list_identity,omitempty"`
	ListServices    *bool `yaml:"list_services,omitempty"`
	RegisterSession *bool `yaml:"register_session,omitempty"`
	SendRRData      *bool `yaml:"send_rr_data,omitempty"`
}

// CPFConfig controls CPF item-list tolerance (spec.md §4.4).
type CPFConfig struct {
	AllowItemReorder *bool `yaml:"allow_item_reorder,omitempty"`
}

// ENIPConfig groups encapsulation-layer behavior knobs.
type ENIPConfig struct {
	Support ENIPSupportConfig `yaml:"support,omitempty"`
	CPF     CPFConfig         `yaml:"cpf,omitempty"`
}

// CIPRule matches a CIP service/class/instance/attribute combination.
type CIPRule struct {
	Service   uint8  `yaml:"service,omitempty"`
	Class     uint16 `yaml:"class,omitempty"`
	Instance  uint16 `yaml:"instance,omitempty"`
	Attribute uint16 `yaml:"attribute,omitempty"`
}

// CIPPolicyConfig is the optional allow/deny policy layer carried from the
// teacher (SPEC_FULL.md §12) plus the Unconnected Send wrapping escape
// hatch from SPEC_FULL.md §13.
type CIPPolicyConfig struct {
	Allow                       []CIPRule `yaml:"allow,omitempty"`
	Deny                        []CIPRule `yaml:"deny,omitempty"`
	WrapUnconnectedSendResponse bool      `yaml:"wrap_unconnected_send_response,omitempty"`
	UnconnectedSendMaxDepth     int       `yaml:"unconnected_send_max_depth,omitempty"`
}

// FaultLatencyConfig injects artificial response latency.
type FaultLatencyConfig struct {
	BaseDelayMs  int `yaml:"base_delay_ms,omitempty"`
	JitterMs     int `yaml:"jitter_ms,omitempty"`
	SpikeEveryN  int `yaml:"spike_every_n,omitempty"`
	SpikeDelayMs int `yaml:"spike_delay_ms,omitempty"`
}

// FaultReliabilityConfig drops or terminates responses/connections.
type FaultReliabilityConfig struct {
	DropResponseEveryN    int `yaml:"drop_response_every_n,omitempty"`
	CloseConnectionEveryN int `yaml:"close_connection_every_n,omitempty"`
}

// FaultTCPConfig fragments outgoing writes across multiple TCP segments.
type FaultTCPConfig struct {
	ChunkWrites       bool `yaml:"chunk_writes,omitempty"`
	ChunkMin          int  `yaml:"chunk_min,omitempty"`
	ChunkMax          int  `yaml:"chunk_max,omitempty"`
	InterChunkDelayMs int  `yaml:"inter_chunk_delay_ms,omitempty"`
}

// FaultConfig is the optional, default-off fault injection layer
// (SPEC_FULL.md §12) used to exercise the Stream Reassembler's resync
// behavior and client tolerance for partial writes.
type FaultConfig struct {
	Enable      bool                   `yaml:"enable,omitempty"`
	Latency     FaultLatencyConfig     `yaml:"latency,omitempty"`
	Reliability FaultReliabilityConfig `yaml:"reliability,omitempty"`
	TCP         FaultTCPConfig         `yaml:"tcp,omitempty"`
}

// LoggingConfig controls server log verbosity and format.
type LoggingConfig struct {
	Level          string `yaml:"level,omitempty"` // "error","info","verbose","debug"
	IncludeHexDump bool   `yaml:"include_hex_dump,omitempty"`
	LogFile        string `yaml:"log_file,omitempty"`
}

// MetricsConfig controls the optional Prometheus text endpoint.
type MetricsConfig struct {
	Enable   bool   `yaml:"enable,omitempty"`
	ListenIP string `yaml:"listen_ip,omitempty"`
	Port     int    `yaml:"port,omitempty"`
}

// CreateDefaultServerConfig returns the default configuration described in
// spec.md §6 "Configuration recognized at startup".
func CreateDefaultServerConfig() *ServerConfig {
	cfg := &ServerConfig{
		Server: ServerSection{
			Name:      "EtherNet/IP Simulator",
			ListenIP:  "0.0.0.0",
			TCPPort:   44818,
			UDPPort:   2222,
			EnableUDP: true,
		},
		Identity: IdentityConfig{
			VendorID:    1,
			DeviceType:  0x000C,
			ProductCode: 0x00000001,
			RevMajor:    1,
			RevMinor:    0,
			Status:      0x0001,
			Serial:      0x12345678,
			ProductName: "EtherNet/IP Simulator",
		},
		Tags: TagConfig{Count: 100},
		Session: SessionConfig{
			IdleTimeoutMs:    300_000,
			SweepIntervalMs:  60_000,
			MaxSessions:      256,
			MaxSessionsPerIP: 64,
		},
	}
	applyENIPDefaults(cfg)
	applyCIPDefaults(cfg)
	applyLoggingDefaults(cfg)
	return cfg
}

func applyENIPDefaults(cfg *ServerConfig) {
	t := true
	if cfg.ENIP.Support.ListIdentity == nil {
		cfg.ENIP.Support.ListIdentity = &t
	}
	if cfg.ENIP.Support.ListServices == nil {
		cfg.ENIP.Support.ListServices = &t
	}
	if cfg.ENIP.Support.RegisterSession == nil {
		cfg.ENIP.Support.RegisterSession = &t
	}
	if cfg.ENIP.Support.SendRRData == nil {
		cfg.ENIP.Support.SendRRData = &t
	}
	if cfg.ENIP.CPF.AllowItemReorder == nil {
		cfg.ENIP.CPF.AllowItemReorder = &t
	}
}

func applyCIPDefaults(cfg *ServerConfig) {
	if cfg.CIP.UnconnectedSendMaxDepth == 0 {
		cfg.CIP.UnconnectedSendMaxDepth = 4
	}
}

func applyLoggingDefaults(cfg *ServerConfig) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// WriteDefaultServerConfig writes the default configuration to path.
func WriteDefaultServerConfig(path string) error {
	cfg := CreateDefaultServerConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// LoadServerConfig loads a server configuration from a YAML file. If the
// file doesn't exist and autoCreate is true, a default config is written
// to path first and then loaded, matching the teacher's
// LoadClientConfig/autoCreate convenience (internal/config/config.go).
func LoadServerConfig(path string, autoCreate bool) (*ServerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && autoCreate {
			if err := WriteDefaultServerConfig(path); err != nil {
				return nil, err
			}
			data, err = os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("read newly created config: %w", err)
			}
		} else {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := CreateDefaultServerConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	applyENIPDefaults(cfg)
	applyCIPDefaults(cfg)
	applyLoggingDefaults(cfg)

	if err := ValidateServerConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ValidateServerConfig rejects configurations that can never be served.
func ValidateServerConfig(cfg *ServerConfig) error {
	if cfg.Server.TCPPort < 0 || cfg.Server.TCPPort > 65535 {
		return fmt.Errorf("server.tcp_port out of range: %d", cfg.Server.TCPPort)
	}
	if cfg.Server.UDPPort < 0 || cfg.Server.UDPPort > 65535 {
		return fmt.Errorf("server.udp_port out of range: %d", cfg.Server.UDPPort)
	}
	if cfg.Tags.Count < 0 {
		return fmt.Errorf("tags.count must be >= 0")
	}
	if cfg.Session.IdleTimeoutMs < 0 {
		return fmt.Errorf("session.idle_timeout_ms must be >= 0")
	}
	if cfg.Session.SweepIntervalMs < 0 {
		return fmt.Errorf("session.sweep_interval_ms must be >= 0")
	}
	if len(cfg.Identity.ProductName) > 32 {
		cfg.Identity.ProductName = cfg.Identity.ProductName[:32]
	}
	return nil
}

// BoolValue dereferences an optional bool with a default, mirroring the
// teacher's boolValue helper (internal/server/core/policy.go).
func BoolValue(value *bool, def bool) bool {
	if value == nil {
		return def
	}
	return *value
}
