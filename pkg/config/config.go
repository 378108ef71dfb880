package config

import (
	"fmt"
	"os"

	"github.com/docker/go-units"
	"github.com/NGIOproject/NORNS-sub002/pkg/types"
	"gopkg.in/yaml.v3"
)

// GlobalSettings is the global_settings section of spec.md §6.
type GlobalSettings struct {
	UseSyslog       bool   `yaml:"use_syslog"`
	LogFile         string `yaml:"log_file"`
	LogFileMaxSize  Bytes  `yaml:"log_file_max_size"`
	DryRun          bool   `yaml:"dry_run"`
	GlobalSocket    string `yaml:"global_socket"`
	ControlSocket   string `yaml:"control_socket"`
	BindAddress     string `yaml:"bind_address"`
	RemotePort      uint16 `yaml:"remote_port"`
	Pidfile         string `yaml:"pidfile"`
	Workers         uint   `yaml:"workers"`
	StagingDirectory string `yaml:"staging_directory"`
}

// NamespaceConfig is one entry of the namespaces section of spec.md §6.
type NamespaceConfig struct {
	NamespaceID   string      `yaml:"nsid"`
	TrackContents bool        `yaml:"track_contents"`
	MountPoint    string      `yaml:"mountpoint"`
	Type          types.BackendKind `yaml:"type"`
	Capacity      Bytes       `yaml:"capacity"`
	Visibility    string      `yaml:"visibility"`
}

// Config is the top-level parsed configuration file.
type Config struct {
	Global     GlobalSettings    `yaml:"global_settings"`
	Namespaces []NamespaceConfig `yaml:"namespaces"`
}

// Bytes is a byte count parsed from a human-readable suffix
// (K, KB, KiB, M, MB, MiB, G, GB, GiB, or a bare integer) per spec.md §6.
type Bytes uint64

// UnmarshalYAML accepts either a bare integer or a human-size string.
func (b *Bytes) UnmarshalYAML(value *yaml.Node) error {
	var n uint64
	if err := value.Decode(&n); err == nil {
		*b = Bytes(n)
		return nil
	}

	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("capacity must be an integer or a human size string: %w", err)
	}
	v, err := units.RAMInBytes(s)
	if err != nil {
		return fmt.Errorf("invalid capacity %q: %w", s, err)
	}
	*b = Bytes(v)
	return nil
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the structural invariants spec.md §6 requires of the
// config file: existing directories, non-empty socket paths, unique
// namespace ids.
func (c *Config) Validate() error {
	if c.Global.GlobalSocket == "" {
		return fmt.Errorf("global_settings.global_socket is required")
	}
	if c.Global.ControlSocket == "" {
		return fmt.Errorf("global_settings.control_socket is required")
	}
	if c.Global.Workers == 0 {
		c.Global.Workers = 4
	}
	if c.Global.StagingDirectory != "" {
		if err := mustExistDir(c.Global.StagingDirectory); err != nil {
			return fmt.Errorf("global_settings.staging_directory: %w", err)
		}
	}

	seen := make(map[string]struct{}, len(c.Namespaces))
	for _, ns := range c.Namespaces {
		if ns.NamespaceID == "" {
			return fmt.Errorf("namespaces: nsid must not be empty")
		}
		if _, dup := seen[ns.NamespaceID]; dup {
			return fmt.Errorf("namespaces: duplicate nsid %q", ns.NamespaceID)
		}
		seen[ns.NamespaceID] = struct{}{}

		switch ns.Type {
		case types.BackendLocalPosixPath, types.BackendSharedPosixPath:
			if err := mustExistDir(ns.MountPoint); err != nil {
				return fmt.Errorf("namespaces[%s].mountpoint: %w", ns.NamespaceID, err)
			}
		case types.BackendMemory, types.BackendRemote:
			// no mount point required
		default:
			return fmt.Errorf("namespaces[%s]: unrecognised type %q", ns.NamespaceID, ns.Type)
		}
	}
	return nil
}

func mustExistDir(path string) error {
	if path == "" {
		return fmt.Errorf("must not be empty")
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}
	return nil
}
