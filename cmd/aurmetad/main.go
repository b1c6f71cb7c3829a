// Command aurmetad wires the harvester and index store together into a
// single refresh run. Scheduling repeated runs, serving the resulting
// index over HTTP, and fetching the popularity/maintainer supplement
// snapshot are the responsibility of other processes; this binary only
// demonstrates the wiring.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/ArcticLampyrid/aurmetad/config"
	"github.com/ArcticLampyrid/aurmetad/harvest"
	aurlog "github.com/ArcticLampyrid/aurmetad/log"
	"github.com/ArcticLampyrid/aurmetad/protocol/client"
	"github.com/ArcticLampyrid/aurmetad/protocol/hash"
	"github.com/ArcticLampyrid/aurmetad/refresh"
	"github.com/ArcticLampyrid/aurmetad/store"
)

func main() {
	if err := run(); err != nil {
		slog.Error("aurmetad exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		return fmt.Errorf("parsing configuration: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	ctx = aurlog.WithContext(ctx, slogLogger{slog.Default()})

	var opts []client.Option
	if cfg.AuthUser != "" {
		opts = append(opts, client.WithBasicAuth(cfg.AuthUser, cfg.AuthToken))
	} else if cfg.AuthToken != "" {
		opts = append(opts, client.WithTokenAuth("Bearer "+cfg.AuthToken))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, client.WithUserAgent(cfg.UserAgent))
	}

	c, err := client.New(cfg.RepoURL, opts...)
	if err != nil {
		return fmt.Errorf("building client: %w", err)
	}

	s, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening index store: %w", err)
	}
	defer s.Close()

	return refresh.Run(ctx, c, s, parseSrcinfoRecord, refresh.Options{
		DeltaCacheBytes: cfg.DeltaCacheBytes,
	})
}

// parseSrcinfoRecord turns one branch's harvested .SRCINFO text into
// the package records the index store expects. It understands the
// handful of "key = value" fields and repeatable dependency arrays
// that .SRCINFO carries at the package-base level; split-package
// subsections (per-subpackage overrides) are out of scope for this
// wiring shim, which indexes the base package only.
func parseSrcinfoRecord(_ context.Context, branch string, commitID hash.ObjectID, record harvest.HarvestedRecord) ([]store.PackageRecord, error) {
	pkg := store.PackageRecord{Branch: branch, CommitID: commitID.String(), CommittedAt: record.CommittedAt}

	scanner := bufio.NewScanner(strings.NewReader(record.SrcinfoText))
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "pkgbase", "pkgname":
			if pkg.PkgName == "" {
				pkg.PkgName = value
			}
		case "pkgdesc":
			pkg.PkgDesc = value
		case "pkgver":
			pkg.Version = value
		case "url":
			pkg.URL = value
		case "depends":
			pkg.Depends = append(pkg.Depends, value)
		case "makedepends":
			pkg.MakeDepends = append(pkg.MakeDepends, value)
		case "optdepends":
			pkg.OptDepends = append(pkg.OptDepends, value)
		case "checkdepends":
			pkg.CheckDepends = append(pkg.CheckDepends, value)
		case "provides":
			pkg.Provides = append(pkg.Provides, value)
		case "conflicts":
			pkg.Conflicts = append(pkg.Conflicts, value)
		case "replaces":
			pkg.Replaces = append(pkg.Replaces, value)
		case "groups":
			pkg.Groups = append(pkg.Groups, value)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning .SRCINFO for branch %s: %w", branch, err)
	}
	if pkg.PkgName == "" {
		return nil, nil
	}
	return []store.PackageRecord{pkg}, nil
}

// slogLogger adapts *slog.Logger to the aurlog.Logger interface the
// rest of the module takes as its logging dependency.
type slogLogger struct{ l *slog.Logger }

func (s slogLogger) Debug(msg string, keysAndValues ...any) { s.l.Debug(msg, keysAndValues...) }
func (s slogLogger) Info(msg string, keysAndValues ...any)  { s.l.Info(msg, keysAndValues...) }
func (s slogLogger) Warn(msg string, keysAndValues ...any)  { s.l.Warn(msg, keysAndValues...) }
func (s slogLogger) Error(msg string, keysAndValues ...any) { s.l.Error(msg, keysAndValues...) }
