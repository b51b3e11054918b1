package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCreateDefaultServerConfigFillsENIPAndCIPDefaults(t *testing.T) {
	cfg := CreateDefaultServerConfig()

	if cfg.CIP.UnconnectedSendMaxDepth != 4 {
		t.Errorf("UnconnectedSendMaxDepth = %d, want 4", cfg.CIP.UnconnectedSendMaxDepth)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want \"info\"", cfg.Logging.Level)
	}
	for name, v := range map[string]*bool{
		"ListIdentity":    cfg.ENIP.Support.ListIdentity,
		"ListServices":    cfg.ENIP.Support.ListServices,
		"RegisterSession": cfg.ENIP.Support.RegisterSession,
		"SendRRData":      cfg.ENIP.Support.SendRRData,
	} {
		if v == nil || !*v {
			t.Errorf("ENIP.Support.%s = %v, want true", name, v)
		}
	}
}

func TestValidateServerConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ServerConfig)
		wantErr bool
	}{
		{name: "default config is valid", mutate: func(*ServerConfig) {}, wantErr: false},
		{
			name:    "tcp port out of range",
			mutate:  func(c *ServerConfig) { c.Server.TCPPort = 70000 },
			wantErr: true,
		},
		{
			name:    "negative udp port",
			mutate:  func(c *ServerConfig) { c.Server.UDPPort = -1 },
			wantErr: true,
		},
		{
			name:    "negative tag count",
			mutate:  func(c *ServerConfig) { c.Tags.Count = -1 },
			wantErr: true,
		},
		{
			name:    "negative idle timeout",
			mutate:  func(c *ServerConfig) { c.Session.IdleTimeoutMs = -1 },
			wantErr: true,
		},
		{
			name: "overlong product name is truncated, not rejected",
			mutate: func(c *ServerConfig) {
				name := make([]byte, 40)
				for i := range name {
					name[i] = 'A'
				}
				c.Identity.ProductName = string(name)
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := CreateDefaultServerConfig()
			tt.mutate(cfg)
			err := ValidateServerConfig(cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateServerConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && len(cfg.Identity.ProductName) > 32 {
				t.Errorf("ProductName not truncated: len = %d", len(cfg.Identity.ProductName))
			}
		})
	}
}

func TestLoadServerConfigAutoCreatesDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "enipsimd.yaml")

	cfg, err := LoadServerConfig(path, true)
	if err != nil {
		t.Fatalf("LoadServerConfig: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config file to be created at %s: %v", path, err)
	}
	if cfg.Server.TCPPort != 44818 {
		t.Errorf("TCPPort = %d, want default 44818", cfg.Server.TCPPort)
	}
}

func TestLoadServerConfigMissingFileWithoutAutoCreate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "does-not-exist.yaml")

	if _, err := LoadServerConfig(path, false); err == nil {
		t.Fatal("expected an error when the config file is missing and autoCreate is false")
	}
}

func TestLoadServerConfigOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "enipsimd.yaml")
	contents := "server:\n  name: Custom\n  listen_ip: 127.0.0.1\n  tcp_port: 12345\n  udp_port: 2222\ntags:\n  count: 7\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := LoadServerConfig(path, false)
	if err != nil {
		t.Fatalf("LoadServerConfig: %v", err)
	}
	if cfg.Server.TCPPort != 12345 {
		t.Errorf("TCPPort = %d, want 12345", cfg.Server.TCPPort)
	}
	if cfg.Tags.Count != 7 {
		t.Errorf("Tags.Count = %d, want 7", cfg.Tags.Count)
	}
	// Defaults not present in the file must still be filled in.
	if cfg.CIP.UnconnectedSendMaxDepth != 4 {
		t.Errorf("UnconnectedSendMaxDepth = %d, want 4", cfg.CIP.UnconnectedSendMaxDepth)
	}
}

func TestBoolValue(t *testing.T) {
	truth := true
	falsehood := false
	if !BoolValue(&truth, false) {
		t.Error("BoolValue(&true, false) = false, want true")
	}
	if BoolValue(&falsehood, true) {
		t.Error("BoolValue(&false, true) = true, want false")
	}
	if !BoolValue(nil, true) {
		t.Error("BoolValue(nil, true) = false, want true (default)")
	}
}
