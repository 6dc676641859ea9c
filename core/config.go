package core

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// WalkerType distinguishes the two supported Walker sub-types.
type WalkerType string

const (
	WalkerSTAR  WalkerType = "STAR"
	WalkerDELTA WalkerType = "DELTA"
)

// ConstellationConfig holds the (type, T, P, F) Walker parameters.
type ConstellationConfig struct {
	Type WalkerType `json:"type"`
	T    int        `json:"T"`
	P    int        `json:"P"`
	F    int        `json:"F"`
}

// WizardConfig holds the reference satellite's six classical elements.
type WizardConfig struct {
	AKm    float64 `json:"a"`
	E      float64 `json:"e"`
	FDeg   float64 `json:"f"`
	IDeg   float64 `json:"i"`
	WDeg   float64 `json:"w"`
	RAANDeg float64 `json:"RAAN"`
}

// DeviceConfig holds per-port optical parameters shared across every device
// the ConstellationBuilder creates.
type DeviceConfig struct {
	WavelengthNm     float64 `json:"lambda"`
	TxPowerDBm       float64 `json:"tx_power"`
	TxGainDB         float64 `json:"tx_gain"`
	RxGainDB         float64 `json:"rx_gain"`
	RxSensitivityDBm float64 `json:"rx_sensitivity"`
	DataRate         string  `json:"data_rate"`
	MTU              int     `json:"MTU"`
	DefaultMAC       string  `json:"mac"`
	ErrorRate        float64 `json:"error_rate"`
	Checksum         bool    `json:"checksum"`
	QueueCapacity    int     `json:"queue_capacity"`
}

// RuntimeConfig holds polar-region maintenance parameters.
type RuntimeConfig struct {
	LatLimitDeg        float64 `json:"lat_limit"`
	UpdateIntervalSecs float64 `json:"update_interval"`
}

// ObservabilityConfig holds logging/tracing/metrics knobs.
type ObservabilityConfig struct {
	LogLevel        string `json:"log_level"`
	LogFormat       string `json:"log_format"`
	TracingEnabled  bool   `json:"tracing_enabled"`
	TracingExporter string `json:"tracing_exporter"`
	MetricsAddr     string `json:"metrics_addr"`
}

// ScenarioConfig is the full JSON-decoded scenario shape.
type ScenarioConfig struct {
	Constellation ConstellationConfig `json:"constellation"`
	Wizard        WizardConfig        `json:"wizard"`
	Device        DeviceConfig        `json:"device"`
	Runtime       RuntimeConfig       `json:"runtime"`
	Observability ObservabilityConfig `json:"observability"`
}

// DefaultScenarioConfig mirrors the recognized-options defaults from the
// spec's external-interfaces table.
func DefaultScenarioConfig() ScenarioConfig {
	return ScenarioConfig{
		Constellation: ConstellationConfig{Type: WalkerSTAR, T: 66, P: 6, F: 1},
		Wizard:        WizardConfig{AKm: 7158.14, E: 0, FDeg: 0, IDeg: 86.4, WDeg: 0, RAANDeg: 0},
		Device: DeviceConfig{
			WavelengthNm:     1550,
			TxPowerDBm:       20,
			TxGainDB:         120,
			RxGainDB:         120,
			RxSensitivityDBm: -40,
			DataRate:         "1Gbps",
			MTU:              1500,
			DefaultMAC:       "ff:ff:ff:ff:ff:ff",
			QueueCapacity:    64,
		},
		Runtime: RuntimeConfig{LatLimitDeg: 60, UpdateIntervalSecs: 1},
		Observability: ObservabilityConfig{
			LogLevel:        "info",
			LogFormat:       "text",
			TracingExporter: "stdout",
		},
	}
}

// LoadScenarioConfig decodes a JSON scenario file over the defaults, so a
// partial config only overrides what it specifies.
func LoadScenarioConfig(r io.Reader) (ScenarioConfig, error) {
	cfg := DefaultScenarioConfig()
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return ScenarioConfig{}, fmt.Errorf("core: decode scenario config: %w", err)
	}
	if cfg.Constellation.Type != WalkerSTAR && cfg.Constellation.Type != WalkerDELTA {
		return ScenarioConfig{}, fmt.Errorf("core: unknown constellation type %q", cfg.Constellation.Type)
	}
	return cfg, nil
}

// ParseMAC parses a colon-separated hex MAC address, e.g. "ff:ff:ff:ff:ff:ff".
func ParseMAC(s string) (MACAddress, error) {
	var mac MACAddress
	parts := strings.Split(s, ":")
	if len(parts) != 6 {
		return mac, fmt.Errorf("core: malformed MAC address %q", s)
	}
	for i, p := range parts {
		v, err := strconv.ParseUint(p, 16, 8)
		if err != nil {
			return mac, fmt.Errorf("core: malformed MAC address %q: %w", s, err)
		}
		mac[i] = byte(v)
	}
	return mac, nil
}

// ParseDataRate parses a "<number>[Kk|Mm|Gg]bps" string into bits/second.
func ParseDataRate(s string) (float64, error) {
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)
	if !strings.HasSuffix(lower, "bps") {
		return 0, fmt.Errorf("core: malformed data rate %q", s)
	}
	numeric := strings.TrimSuffix(lower, "bps")
	multiplier := 1.0
	switch {
	case strings.HasSuffix(numeric, "g"):
		multiplier = 1e9
		numeric = strings.TrimSuffix(numeric, "g")
	case strings.HasSuffix(numeric, "m"):
		multiplier = 1e6
		numeric = strings.TrimSuffix(numeric, "m")
	case strings.HasSuffix(numeric, "k"):
		multiplier = 1e3
		numeric = strings.TrimSuffix(numeric, "k")
	}
	v, err := strconv.ParseFloat(numeric, 64)
	if err != nil {
		return 0, fmt.Errorf("core: malformed data rate %q: %w", s, err)
	}
	return v * multiplier, nil
}
