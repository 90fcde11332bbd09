// Package config loads the cmcored configuration tree: server/security
// settings, the datalink catalog, client profiles, and policy rulesets.
package config

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// ServerConfig carries the north-bound and south-bound listener settings.
type ServerConfig struct {
	NorthBoundAddr   string `yaml:"north_bound_addr"`
	StreamSocketPath string `yaml:"stream_socket_path"`
	DatagramSocketPath string `yaml:"datagram_socket_path"`
	HeartbeatUDPAddr string `yaml:"heartbeat_udp_addr"`
	AdminWebAddr     string `yaml:"admin_web_addr"`
	MaxSessions      int    `yaml:"max_sessions"`
	MaxBearersPerLink int   `yaml:"max_bearers_per_link"`
}

// LoggingConfig mirrors internal/logger.Config for YAML unmarshaling.
type LoggingConfig struct {
	Path       string `yaml:"path"`
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// SecurityConfig holds the shared-credential and operator-auth settings.
type SecurityConfig struct {
	ClientCredentialHash string `yaml:"client_credential_hash"` // bcrypt hash, shared across clients
	JWTSigningKey        string `yaml:"jwt_signing_key"`
	JWTTokenTTLMinutes   int    `yaml:"jwt_token_ttl_minutes"`
}

// OperatorConfig declares one admin-dashboard login account.
type OperatorConfig struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"` // bcrypt
	Role         string `yaml:"role"`          // "admin" or "viewer"
}

// LivenessConfig tunes the Link Registry's heartbeat monitor.
type LivenessConfig struct {
	HeartbeatTimeoutSec int `yaml:"heartbeat_timeout_sec"` // default 30
	ScanIntervalSec     int `yaml:"scan_interval_sec"`     // default 5-10
}

// PushConfig tunes the Push Engine's storm suppression and ack tracking.
type PushConfig struct {
	MinIntervalSec     int     `yaml:"min_interval_sec"`
	ChangeThresholdPct float64 `yaml:"change_threshold_pct"`
	MNTRAckTimeoutSec  int     `yaml:"mntr_ack_timeout_sec"` // default 5
}

// ADIFConfig describes the aircraft position/flight-phase feed consumed by the policy engine.
type ADIFConfig struct {
	DegradedMode bool `yaml:"degraded_mode"`
}

// AuditConfig configures the optional accounting sink.
type AuditConfig struct {
	JSONLPath  string `yaml:"jsonl_path"`
	PostgresDSN string `yaml:"postgres_dsn"` // empty disables Postgres inserts
}

// CoverageBox is a lat/lon/alt(feet) bounding box used for coverage checks.
type CoverageBox struct {
	Enabled    bool    `yaml:"enabled"`
	MinLat     float64 `yaml:"min_lat"`
	MaxLat     float64 `yaml:"max_lat"`
	MinLon     float64 `yaml:"min_lon"`
	MaxLon     float64 `yaml:"max_lon"`
	MinAltFeet float64 `yaml:"min_alt_feet"`
	MaxAltFeet float64 `yaml:"max_alt_feet"`
}

// DatalinkConfig declares one entry of the configured datalink catalog (§3 Link Identity).
type DatalinkConfig struct {
	LinkName         string      `yaml:"link_name"`
	LinkType         string      `yaml:"link_type"`
	MaxBandwidthKbps uint32      `yaml:"max_bandwidth_kbps"`
	TypicalLatencyMs uint32      `yaml:"typical_latency_ms"`
	CostPerMB        float64     `yaml:"cost_per_mb"`
	SecurityLevel    uint8       `yaml:"security_level"`
	MTU              uint16      `yaml:"mtu"`
	IsAsymmetric     bool        `yaml:"is_asymmetric"`
	Coverage         CoverageBox `yaml:"coverage"`
}

// ClientProfileConfig declares one client's admission profile.
type ClientProfileConfig struct {
	ClientID        string   `yaml:"client_id"`
	Enabled         bool     `yaml:"enabled"`
	MaxBandwidthKbps uint32  `yaml:"max_bandwidth_kbps"`
	PreferredLink   string   `yaml:"preferred_link"`
	AllowedLinks    []string `yaml:"allowed_links"` // empty = all links allowed
}

// TrafficClassDefinition is one entry of the dynamic traffic-class resolution table (§4.3 step 4).
type TrafficClassDefinition struct {
	Name              string   `yaml:"name"`
	IsDefault         bool     `yaml:"is_default"`
	MatchPriorityClass []int   `yaml:"match_priority_class"`
	MatchQoSLevel     []int    `yaml:"match_qos_level"`
	MatchPatterns     []string `yaml:"match_patterns"` // glob over profile_name, case-insensitive
}

// PathPreference is one ranked link candidate within a policy rule.
type PathPreference struct {
	LinkName      string `yaml:"link_name"`
	Ranking       int    `yaml:"ranking"` // 1 = best
	Action        string `yaml:"action"`  // "PERMIT" or "PROHIBIT"
	MaxLatencyMs  uint32 `yaml:"max_latency_ms"`
	OnGroundOnly  bool   `yaml:"on_ground_only"`
	AirborneOnly  bool   `yaml:"airborne_only"`
}

// PolicyRule maps one traffic class to its ordered path preferences.
type PolicyRule struct {
	TrafficClass string           `yaml:"traffic_class"`
	Preferences  []PathPreference `yaml:"preferences"`
}

// PolicyRuleset is keyed by flight phase.
type PolicyRuleset struct {
	FlightPhase string       `yaml:"flight_phase"`
	Rules       []PolicyRule `yaml:"rules"`
}

// PolicyConfig tunes link-switch hysteresis and carries the rulesets/traffic classes.
type PolicyConfig struct {
	MinDwellTimeSec      int                      `yaml:"min_dwell_time_sec"`
	HysteresisPercentage float64                  `yaml:"hysteresis_percentage"`
	TrafficClasses       []TrafficClassDefinition `yaml:"traffic_classes"`
	Rulesets             []PolicyRuleset          `yaml:"rulesets"`
}

// Config is the full cmcored configuration tree.
type Config struct {
	Server   ServerConfig         `yaml:"server"`
	Logging  LoggingConfig        `yaml:"logging"`
	Security SecurityConfig       `yaml:"security"`
	Liveness LivenessConfig       `yaml:"liveness"`
	Push     PushConfig           `yaml:"push"`
	ADIF     ADIFConfig           `yaml:"adif"`
	Audit    AuditConfig          `yaml:"audit"`
	Datalinks []DatalinkConfig    `yaml:"datalinks"`
	ClientProfiles []ClientProfileConfig `yaml:"client_profiles"`
	Policy   PolicyConfig         `yaml:"policy"`
	Operators []OperatorConfig    `yaml:"operators"`
}

var (
	global   *Config
	globalMu sync.RWMutex
)

// Load reads and validates a Config from the given YAML file path, and installs it as the global instance.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config %s: %w", path, err)
	}

	globalMu.Lock()
	global = cfg
	globalMu.Unlock()

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.MaxSessions == 0 {
		cfg.Server.MaxSessions = 256
	}
	if cfg.Server.MaxBearersPerLink == 0 {
		cfg.Server.MaxBearersPerLink = 8
	}
	if cfg.Liveness.HeartbeatTimeoutSec == 0 {
		cfg.Liveness.HeartbeatTimeoutSec = 30
	}
	if cfg.Liveness.ScanIntervalSec == 0 {
		cfg.Liveness.ScanIntervalSec = 5
	}
	if cfg.Push.MinIntervalSec == 0 {
		cfg.Push.MinIntervalSec = 1
	}
	if cfg.Push.ChangeThresholdPct == 0 {
		cfg.Push.ChangeThresholdPct = 10
	}
	if cfg.Push.MNTRAckTimeoutSec == 0 {
		cfg.Push.MNTRAckTimeoutSec = 5
	}
	if cfg.Policy.MinDwellTimeSec == 0 {
		cfg.Policy.MinDwellTimeSec = 10
	}
}

// Validate enforces the invariants the rest of cmcored assumes hold.
func (c *Config) Validate() error {
	if len(c.Datalinks) == 0 {
		return fmt.Errorf("no datalinks declared in catalog")
	}
	seen := make(map[string]bool, len(c.Datalinks))
	for _, dl := range c.Datalinks {
		if dl.LinkName == "" {
			return fmt.Errorf("datalink entry missing link_name")
		}
		if seen[dl.LinkName] {
			return fmt.Errorf("duplicate datalink link_name %q", dl.LinkName)
		}
		seen[dl.LinkName] = true
	}
	if len(c.Policy.Rulesets) == 0 {
		return fmt.Errorf("no policy rulesets declared")
	}
	if c.Server.MaxSessions <= 0 {
		return fmt.Errorf("server.max_sessions must be positive")
	}
	return nil
}

// Get returns the installed global Config. Panics if Load was never called — cmcored has no sensible default.
func Get() *Config {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if global == nil {
		panic("config: Get called before Load")
	}
	return global
}

// Reload re-reads the same config file and swaps the global instance atomically.
func Reload(path string) (*Config, error) {
	return Load(path)
}

// FindDatalink looks up one catalog entry by link_name.
func (c *Config) FindDatalink(linkName string) (DatalinkConfig, bool) {
	for _, dl := range c.Datalinks {
		if dl.LinkName == linkName {
			return dl, true
		}
	}
	return DatalinkConfig{}, false
}

// FindClientProfile looks up one client profile by client_id.
func (c *Config) FindClientProfile(clientID string) (ClientProfileConfig, bool) {
	for _, p := range c.ClientProfiles {
		if p.ClientID == clientID {
			return p, true
		}
	}
	return ClientProfileConfig{}, false
}

// RulesetForPhase selects the ruleset matching flight_phase, falling back to the first ruleset.
func (c *Config) RulesetForPhase(flightPhase string) PolicyRuleset {
	for _, rs := range c.Policy.Rulesets {
		if rs.FlightPhase == flightPhase {
			return rs
		}
	}
	return c.Policy.Rulesets[0]
}
