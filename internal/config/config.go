// Package config builds the dependency graph spec.md §6 names as the
// server's external configuration surface: listening address, log level,
// an Authenticator, and a root Filesystem (typically a Multiplex of
// Directory/Home mounts).
package config

import (
	"fmt"
	"os"

	"github.com/coredav/webdavd/webdav/auth"
	"github.com/coredav/webdavd/webdav/fs"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Mount describes one entry of the Multiplex namespace.
type Mount struct {
	Prefix   string `yaml:"prefix"`
	Kind     string `yaml:"kind"` // "dir" or "home"
	Path     string `yaml:"path,omitempty"`     // for kind: dir
	Pattern  string `yaml:"pattern,omitempty"`  // for kind: home, e.g. "/srv/homes/%u"
	Identity string `yaml:"identity,omitempty"` // "" (noop) or "unix"
	Policy   string `yaml:"policy,omitempty"`   // optional rego policy file name
}

// Config is the root configuration document.
type Config struct {
	Addr     string            `yaml:"addr"`
	LogLevel string            `yaml:"log_level"`
	Realm    string            `yaml:"realm"`
	Users    map[string]string `yaml:"users"`
	Mounts   []Mount           `yaml:"mounts"`
}

// Default returns a Config with the conventional defaults used when no
// file is supplied.
func Default() Config {
	return Config{
		Addr:     ":8080",
		LogLevel: "info",
		Realm:    "WebDav Auth",
	}
}

// Load reads and parses a YAML config file.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

// BuildAuthenticator turns Config.Users into a Static authenticator.
func (c Config) BuildAuthenticator() auth.Authenticator {
	return auth.NewStatic(c.Users)
}

// BuildFilesystem assembles the root Backend from Config.Mounts: a single
// backend directly if there is exactly one mount at prefix "", otherwise a
// Multiplex.
func (c Config) BuildFilesystem(log zerolog.Logger) (fs.Backend, error) {
	mounts := make(map[string]fs.Backend, len(c.Mounts))
	for _, m := range c.Mounts {
		backend, err := buildMount(m, log)
		if err != nil {
			return nil, fmt.Errorf("mount %q: %w", m.Prefix, err)
		}
		mounts[m.Prefix] = backend
	}
	if len(mounts) == 1 {
		for prefix, backend := range mounts {
			if prefix == "" {
				return backend, nil
			}
		}
	}
	return fs.NewMultiplex(mounts), nil
}

func buildMount(m Mount, log zerolog.Logger) (fs.Backend, error) {
	var operator fs.Operator = fs.NoopOperator{}
	if m.Identity == "unix" {
		operator = fs.NewUnixOperator(0)
	}

	var authz fs.Authorizer = fs.AllowAllAuthorizer{}

	switch m.Kind {
	case "dir":
		d, err := fs.NewDirectory(m.Path, log)
		if err != nil {
			return nil, err
		}
		d.Operator = operator
		if m.Policy != "" {
			authz = fs.NewRegoAuthorizer(m.Path, m.Policy)
		}
		d.Authz = authz
		return d, nil
	case "home":
		h := fs.NewHome(fs.PatternHomeResolver{Pattern: m.Pattern}, log)
		h.Operator = operator
		h.Authz = authz
		return h, nil
	default:
		return nil, fmt.Errorf("unknown mount kind %q", m.Kind)
	}
}

// ParseLogLevel maps the config's string level onto zerolog's.
func ParseLogLevel(level string) zerolog.Level {
	l, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return l
}
