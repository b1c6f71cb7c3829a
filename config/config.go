// Package config parses the flags cmd/aurmetad needs to wire up the
// harvester and the index store.
package config

import (
	"fmt"

	"github.com/spf13/pflag"
)

// Config holds everything the wiring shim needs to start a harvest
// cycle against one AUR-style git repository.
type Config struct {
	RepoURL string
	DBPath  string

	AuthUser  string
	AuthToken string

	DeltaCacheBytes int
	UserAgent       string
}

// Parse parses args (typically os.Args[1:]) into a Config.
func Parse(args []string) (Config, error) {
	fs := pflag.NewFlagSet("aurmetad", pflag.ContinueOnError)

	repoURL := fs.String("repo-url", "", "Smart-HTTP base URL of the AUR-style git repository to harvest.")
	dbPath := fs.String("db-path", "aurmetad.db", "Path to the SQLite index database.")
	authUser := fs.String("auth-user", "", "Username for HTTP basic auth against the upstream repository, if required.")
	authToken := fs.String("auth-token", "", "Bearer token or basic-auth password for the upstream repository.")
	deltaCacheBytes := fs.Int("delta-cache-bytes", 10*1024*1024, "Memory cap, in bytes, for the decoded-object delta cache.")
	userAgent := fs.String("user-agent", "", "Override the User-Agent sent on upload-pack requests.")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg := Config{
		RepoURL:         *repoURL,
		DBPath:          *dbPath,
		AuthUser:        *authUser,
		AuthToken:       *authToken,
		DeltaCacheBytes: *deltaCacheBytes,
		UserAgent:       *userAgent,
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.RepoURL == "" {
		return fmt.Errorf("config: --repo-url is required")
	}
	if c.DBPath == "" {
		return fmt.Errorf("config: --db-path must not be empty")
	}
	if c.DeltaCacheBytes <= 0 {
		return fmt.Errorf("config: --delta-cache-bytes must be positive")
	}
	return nil
}
