package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/ArcticLampyrid/aurmetad/metrics"
)

// ExistingCommits returns the commit id this store last indexed for
// every branch it has seen, keyed by branch name.
func (s *Store) ExistingCommits(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryxContext(ctx, "SELECT branch, commit_id FROM branch_commits")
	if err != nil {
		return nil, fmt.Errorf("store: reading branch commits: %w", err)
	}
	defer rows.Close()

	commits := make(map[string]string)
	for rows.Next() {
		var branch, commitID string
		if err := rows.Scan(&branch, &commitID); err != nil {
			return nil, fmt.Errorf("store: scanning branch commit row: %w", err)
		}
		commits[branch] = commitID
	}
	return commits, rows.Err()
}

// BranchCommitID returns the commit id currently indexed for branch,
// or ok=false if the branch has never been indexed.
func (s *Store) BranchCommitID(ctx context.Context, branch string) (commitID string, ok bool, err error) {
	err = s.db.GetContext(ctx, &commitID, "SELECT commit_id FROM branch_commits WHERE branch = ? LIMIT 1", branch)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("store: reading branch commit: %w", err)
	}
	return commitID, true, nil
}

// UpdateBranch atomically replaces a branch's package index with
// packages and records commitID as its new harvested position. Package
// rows not present in packages are removed, matching the fact that the
// whole branch tree was re-harvested rather than diffed incrementally.
func (s *Store) UpdateBranch(ctx context.Context, branch, commitID string, packages []PackageRecord) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: beginning transaction: %w", err)
	}

	if err := clearIndexTx(ctx, tx, branch); err != nil {
		tx.Rollback()
		metrics.IndexWrites.WithLabelValues(branch, "rolled_back").Inc()
		return err
	}
	if err := updateIndexTx(ctx, tx, packages); err != nil {
		tx.Rollback()
		metrics.IndexWrites.WithLabelValues(branch, "rolled_back").Inc()
		return err
	}
	if err := updateBranchCommitTx(ctx, tx, branch, commitID); err != nil {
		tx.Rollback()
		metrics.IndexWrites.WithLabelValues(branch, "rolled_back").Inc()
		return err
	}

	if err := tx.Commit(); err != nil {
		metrics.IndexWrites.WithLabelValues(branch, "rolled_back").Inc()
		return fmt.Errorf("store: committing branch update: %w", err)
	}
	metrics.IndexWrites.WithLabelValues(branch, "committed").Inc()
	return nil
}

func updateBranchCommitTx(ctx context.Context, tx *sqlx.Tx, branch, commitID string) error {
	_, err := tx.ExecContext(ctx,
		"INSERT OR REPLACE INTO branch_commits (branch, commit_id) VALUES (?, ?)", branch, commitID)
	if err != nil {
		return fmt.Errorf("store: updating branch commit: %w", err)
	}
	return nil
}

func clearIndexTx(ctx context.Context, tx *sqlx.Tx, branch string) error {
	tables := []string{
		"pkg_info", "pkg_depends", "pkg_make_depends", "pkg_opt_depends",
		"pkg_check_depends", "pkg_provides", "pkg_conflicts", "pkg_replaces", "pkg_groups",
	}
	for _, table := range tables {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE branch = ?", branch); err != nil {
			return fmt.Errorf("store: clearing %s for branch: %w", table, err)
		}
	}
	return nil
}

func updateIndexTx(ctx context.Context, tx *sqlx.Tx, packages []PackageRecord) error {
	for _, pkg := range packages {
		_, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO pkg_info
			(branch, pkg_name, pkg_desc, version, url, commit_id, committed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, pkg.Branch, pkg.PkgName, pkg.PkgDesc, pkg.Version, pkg.URL, pkg.CommitID, pkg.CommittedAt)
		if err != nil {
			return fmt.Errorf("store: upserting pkg_info for %s: %w", pkg.PkgName, err)
		}

		relations := []struct {
			table  string
			column string
			items  []string
		}{
			{"pkg_depends", "depend", pkg.Depends},
			{"pkg_make_depends", "make_depend", pkg.MakeDepends},
			{"pkg_opt_depends", "opt_depend", pkg.OptDepends},
			{"pkg_check_depends", "check_depend", pkg.CheckDepends},
			{"pkg_provides", "provide", pkg.Provides},
			{"pkg_conflicts", "conflict", pkg.Conflicts},
			{"pkg_replaces", "replace", pkg.Replaces},
			{"pkg_groups", "group_name", pkg.Groups},
		}
		for _, rel := range relations {
			if err := storeArrayTx(ctx, tx, pkg.Branch, pkg.PkgName, rel.table, rel.column, rel.items); err != nil {
				return err
			}
		}
	}
	return nil
}

func storeArrayTx(ctx context.Context, tx *sqlx.Tx, branch, pkgName, table, column string, items []string) error {
	stmt := fmt.Sprintf("INSERT OR IGNORE INTO %s (branch, pkg_name, %s) VALUES (?, ?, ?)", table, column)
	for _, item := range items {
		if _, err := tx.ExecContext(ctx, stmt, branch, pkgName, item); err != nil {
			return fmt.Errorf("store: inserting into %s: %w", table, err)
		}
	}
	return nil
}
