//Package config reads the yaml configuration of the sacn command.
package config

import (
	"fmt"
	"net"
	"os"

	"github.com/Hundemeier/go-sacn/packets"
	"github.com/Hundemeier/go-sacn/transport"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

//Config holds the sacn command configuration. Flags of the commands override it.
type Config struct {
	Source    Source              `yaml:"source"`
	Bind      Bind                `yaml:"bind"`
	Backend   string              `yaml:"backend"`
	FPS       int                 `yaml:"fps"`
	Discovery bool                `yaml:"discovery"`
	Metrics   string              `yaml:"metrics"`
	Universes map[uint16]Universe `yaml:"universes"`
}

//Source identifies this program on the network.
type Source struct {
	Name string `yaml:"name"`
	//CID is a uuid, a random one is used if it is empty
	CID string `yaml:"cid"`
}

//Bind is the local side of the socket.
type Bind struct {
	Address   string `yaml:"address"`
	Port      int    `yaml:"port"`
	Interface string `yaml:"interface"`
}

//Universe holds the output settings of one universe.
type Universe struct {
	Multicast   bool   `yaml:"multicast"`
	Destination string `yaml:"destination"`
	TTL         int    `yaml:"ttl"`
	Priority    byte   `yaml:"priority"`
	Preview     bool   `yaml:"preview"`
	Sync        uint16 `yaml:"sync"`
	Data        []byte `yaml:"data"`
}

//Default returns the configuration that is used without a config file.
func Default() *Config {
	return &Config{
		Source:    Source{Name: "go-sacn"},
		Bind:      Bind{Port: packets.DefaultPort},
		Backend:   transport.Threaded.String(),
		FPS:       transport.DefaultFPS,
		Discovery: true,
		Universes: make(map[uint16]Universe),
	}
}

//Load reads the configuration from the given YAML file path.
//If the path is empty or the file does not exist, it returns the default Config with no error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config file %v: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %v: %w", path, err)
	}
	return cfg, nil
}

//Validate checks the values that can not be checked by the yaml decoder.
func (c *Config) Validate() error {
	if _, err := c.TransportBackend(); err != nil {
		return err
	}
	if _, err := c.CID(); err != nil {
		return err
	}
	if c.FPS < 0 {
		return fmt.Errorf("fps must not be negative: %v", c.FPS)
	}
	for univ, u := range c.Universes {
		if !packets.ValidUniverse(univ) {
			return fmt.Errorf("universe %v is not in range [%v-%v]", univ, packets.MinUniverse, packets.MaxUniverse)
		}
		if u.Priority > 200 {
			return fmt.Errorf("universe %v: priority %v is not in range [0-200]", univ, u.Priority)
		}
		if len(u.Data) > packets.MaxChannels {
			return fmt.Errorf("universe %v: %v channels exceed %v", univ, len(u.Data), packets.MaxChannels)
		}
	}
	return nil
}

//TransportBackend returns the backend named by Backend.
func (c *Config) TransportBackend() (transport.Backend, error) {
	switch c.Backend {
	case "", transport.Threaded.String():
		return transport.Threaded, nil
	case transport.EventLoop.String():
		return transport.EventLoop, nil
	}
	return 0, fmt.Errorf("unknown backend %q, use %q or %q", c.Backend, transport.Threaded, transport.EventLoop)
}

//CID returns the configured CID or a new random one.
func (c *Config) CID() ([16]byte, error) {
	if c.Source.CID == "" {
		return uuid.New(), nil
	}
	id, err := uuid.Parse(c.Source.CID)
	if err != nil {
		return [16]byte{}, fmt.Errorf("cid %q: %w", c.Source.CID, err)
	}
	return id, nil
}

//Interface returns the network interface used for multicast or nil.
func (c *Config) Interface() (*net.Interface, error) {
	if c.Bind.Interface == "" {
		return nil, nil
	}
	return net.InterfaceByName(c.Bind.Interface)
}
