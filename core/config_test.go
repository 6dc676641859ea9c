package core

import (
	"strings"
	"testing"
)

func TestLoadScenarioConfigDefaultsWhenEmpty(t *testing.T) {
	cfg, err := LoadScenarioConfig(strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("LoadScenarioConfig: %v", err)
	}
	want := DefaultScenarioConfig()
	if cfg != want {
		t.Errorf("LoadScenarioConfig({}) = %+v, want defaults %+v", cfg, want)
	}
}

func TestLoadScenarioConfigOverridesPartially(t *testing.T) {
	cfg, err := LoadScenarioConfig(strings.NewReader(`{"constellation":{"type":"DELTA","T":40,"P":5,"F":2}}`))
	if err != nil {
		t.Fatalf("LoadScenarioConfig: %v", err)
	}
	if cfg.Constellation.Type != WalkerDELTA || cfg.Constellation.T != 40 || cfg.Constellation.P != 5 || cfg.Constellation.F != 2 {
		t.Errorf("constellation override not applied: %+v", cfg.Constellation)
	}
	if cfg.Device.DataRate != DefaultScenarioConfig().Device.DataRate {
		t.Errorf("unrelated defaults should survive a partial override: %+v", cfg.Device)
	}
}

func TestLoadScenarioConfigRejectsUnknownFields(t *testing.T) {
	_, err := LoadScenarioConfig(strings.NewReader(`{"bogus_field": true}`))
	if err == nil {
		t.Fatal("expected an error for an unknown top-level field")
	}
}

func TestLoadScenarioConfigRejectsUnknownWalkerType(t *testing.T) {
	_, err := LoadScenarioConfig(strings.NewReader(`{"constellation":{"type":"HYBRID","T":6,"P":2,"F":0}}`))
	if err == nil {
		t.Fatal("expected an error for an unrecognized Walker type")
	}
}

func TestParseMACRejectsMalformed(t *testing.T) {
	if _, err := ParseMAC("not-a-mac"); err == nil {
		t.Fatal("expected an error for a malformed MAC")
	}
}

func TestParseMACRoundTrip(t *testing.T) {
	mac, err := ParseMAC("01:23:45:67:89:ab")
	if err != nil {
		t.Fatalf("ParseMAC: %v", err)
	}
	if got := mac.String(); got != "01:23:45:67:89:ab" {
		t.Errorf("round trip = %q", got)
	}
}

func TestParseDataRate(t *testing.T) {
	cases := map[string]float64{
		"1Gbps":   1e9,
		"500Mbps": 500e6,
		"10Kbps":  10e3,
		"42bps":   42,
	}
	for in, want := range cases {
		got, err := ParseDataRate(in)
		if err != nil {
			t.Fatalf("ParseDataRate(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("ParseDataRate(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestParseDataRateRejectsMalformed(t *testing.T) {
	if _, err := ParseDataRate("fast"); err == nil {
		t.Fatal("expected an error for a malformed data rate")
	}
}
