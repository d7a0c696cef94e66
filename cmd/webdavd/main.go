// Command webdavd serves a multi-user WebDAV namespace over HTTP/1.1.
//
// Grounded on the pack's rclone webdav serve command
// (other_examples/.../rclone-rclone__cmd-serve-webdav-webdav.go.go) for
// the cobra command / Options-struct shape, and on
// original_source/orbit-webdavd.py's __main__ block for what gets wired
// together at startup: a root logger, an authenticator, and a root
// filesystem, handed to an HTTP server.
package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/coredav/webdavd/internal/config"
	"github.com/coredav/webdavd/webdav"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// serveOpts mirrors the rclone webdav serve command's Options/DefaultOpt
// pattern: flag-backed fields that, when set, override whatever a loaded
// config file says.
type serveOpts struct {
	configPath string
	addr       string
	logLevel   string
	mounts     []string // "prefix:dir:/local/path" or "prefix:home:/homes/%u"
}

func main() {
	opts := &serveOpts{}

	root := &cobra.Command{
		Use:   "webdavd",
		Short: "Multi-user WebDAV server",
	}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the WebDAV server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts)
		},
	}
	serve.Flags().StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file")
	serve.Flags().StringVar(&opts.addr, "addr", "", "listen address, e.g. :8080 (overrides config)")
	serve.Flags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
	serve.Flags().StringArrayVar(&opts.mounts, "mount", nil, "mount in prefix:kind:path form, e.g. vol:dir:/srv/vol or home:home:/srv/homes/%u; repeatable")

	root.AddCommand(serve)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(opts *serveOpts) error {
	cfg := config.Default()
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
	}

	if opts.addr != "" {
		cfg.Addr = opts.addr
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	for _, spec := range opts.mounts {
		m, err := parseMountFlag(spec)
		if err != nil {
			return err
		}
		cfg.Mounts = append(cfg.Mounts, m)
	}

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
		Level(config.ParseLogLevel(cfg.LogLevel)).
		With().Timestamp().Logger()

	root, err := cfg.BuildFilesystem(log)
	if err != nil {
		return fmt.Errorf("building filesystem: %w", err)
	}

	dispatcher := webdav.NewDispatcher(root, cfg.BuildAuthenticator(), log)

	log.Info().Str("addr", cfg.Addr).Msg("starting webdav server")
	return http.ListenAndServe(cfg.Addr, dispatcher)
}

// parseMountFlag parses "prefix:kind:path" into a config.Mount, routing
// path into Pattern for kind "home" and into Path otherwise.
func parseMountFlag(spec string) (config.Mount, error) {
	parts := strings.SplitN(spec, ":", 3)
	if len(parts) != 3 {
		return config.Mount{}, fmt.Errorf("--mount %q: want prefix:kind:path", spec)
	}
	m := config.Mount{Prefix: parts[0], Kind: parts[1]}
	if m.Kind == "home" {
		m.Pattern = parts[2]
	} else {
		m.Path = parts[2]
	}
	return m, nil
}
