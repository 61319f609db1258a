package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Hundemeier/go-sacn/transport"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.FPS != transport.DefaultFPS || !cfg.Discovery || cfg.Bind.Port != 5568 {
		t.Errorf("Expected the defaults, got %+v", cfg)
	}
	if cfg, err := Load(""); err != nil || cfg == nil {
		t.Errorf("An empty path should return the defaults, got %v %v", cfg, err)
	}
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
source:
  name: desk
  cid: 6ba7b810-9dad-11d1-80b4-00c04fd430c8
bind:
  address: 127.0.0.1
backend: eventloop
fps: 44
discovery: false
universes:
  1:
    multicast: true
    ttl: 4
    data: [255, 0, 0]
  2:
    destination: 192.168.1.13
    priority: 150
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Source.Name != "desk" || cfg.FPS != 44 || cfg.Discovery || cfg.Bind.Address != "127.0.0.1" {
		t.Errorf("Wrong config: %+v", cfg)
	}
	if cfg.Bind.Port != 5568 {
		t.Errorf("Missing values should keep their default, port was %v", cfg.Bind.Port)
	}
	if backend, _ := cfg.TransportBackend(); backend != transport.EventLoop {
		t.Errorf("Wrong backend: %v", backend)
	}
	cid, err := cfg.CID()
	if err != nil {
		t.Fatal(err)
	}
	if cid[0] != 0x6b || cid[15] != 0xc8 {
		t.Errorf("Wrong cid: %x", cid)
	}
	u := cfg.Universes[1]
	if !u.Multicast || u.TTL != 4 || len(u.Data) != 3 || u.Data[0] != 255 {
		t.Errorf("Wrong universe 1: %+v", u)
	}
	if cfg.Universes[2].Destination != "192.168.1.13" || cfg.Universes[2].Priority != 150 {
		t.Errorf("Wrong universe 2: %+v", cfg.Universes[2])
	}
}

func TestLoadInvalid(t *testing.T) {
	for _, content := range []string{
		"backend: fibers",
		"source: {cid: nope}",
		"universes: {0: {}}",
		"universes: {1: {priority: 201}}",
		"fps: [1",
	} {
		if _, err := Load(writeConfig(t, content)); err == nil {
			t.Errorf("%q should be rejected", content)
		}
	}
}

func TestRandomCID(t *testing.T) {
	cfg := Default()
	first, _ := cfg.CID()
	second, _ := cfg.CID()
	if first == second {
		t.Error("Without a configured cid every call should return a new one")
	}
	if ifi, err := cfg.Interface(); ifi != nil || err != nil {
		t.Errorf("Without an interface name the interface should be nil, got %v %v", ifi, err)
	}
}
