package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// isListedGracePeriod is the window, in seconds, a package stays
// listed after its last commit even if the current supplement snapshot
// no longer names it: the AUR mirror can lag the live upstream by up
// to a day, and orphaned branches should not vanish from search
// results the moment a refresh runs slightly stale.
const isListedGracePeriod = 86400

var searchQueries = map[SearchType]struct {
	sql    string
	params int
}{
	SearchName: {
		sql: `
			SELECT DISTINCT p.branch, p.pkg_name, p.pkg_desc, p.version, p.url, p.commit_id, p.committed_at,
			       s.version AS s_version, s.popularity, s.num_votes, s.out_of_date,
			       s.maintainer, s.submitter, s.first_submitted, s.last_modified
			FROM pkg_info p
			LEFT JOIN pkg_supplement s ON p.pkg_name = s.pkgname
			WHERE p.pkg_name LIKE ? AND p.is_listed = 1
		`,
		params: 1,
	},
	SearchNameDesc: {
		sql: `
			SELECT DISTINCT p.branch, p.pkg_name, p.pkg_desc, p.version, p.url, p.commit_id, p.committed_at,
			       s.version AS s_version, s.popularity, s.num_votes, s.out_of_date,
			       s.maintainer, s.submitter, s.first_submitted, s.last_modified
			FROM pkg_info p
			LEFT JOIN pkg_supplement s ON p.pkg_name = s.pkgname
			WHERE (p.pkg_name LIKE ? OR p.pkg_desc LIKE ?) AND p.is_listed = 1
		`,
		params: 2,
	},
	SearchDepends: {
		sql: `
			SELECT DISTINCT p.branch, p.pkg_name, p.pkg_desc, p.version, p.url, p.commit_id, p.committed_at,
			       s.version AS s_version, s.popularity, s.num_votes, s.out_of_date,
			       s.maintainer, s.submitter, s.first_submitted, s.last_modified
			FROM pkg_info p
			LEFT JOIN pkg_supplement s ON p.pkg_name = s.pkgname
			JOIN pkg_depends d ON p.pkg_name = d.pkg_name AND p.branch = d.branch
			WHERE d.depend = ? AND p.is_listed = 1
		`,
		params: 1,
	},
	SearchMakeDepends: {
		sql: `
			SELECT DISTINCT p.branch, p.pkg_name, p.pkg_desc, p.version, p.url, p.commit_id, p.committed_at,
			       s.version AS s_version, s.popularity, s.num_votes, s.out_of_date,
			       s.maintainer, s.submitter, s.first_submitted, s.last_modified
			FROM pkg_info p
			LEFT JOIN pkg_supplement s ON p.pkg_name = s.pkgname
			JOIN pkg_make_depends md ON p.pkg_name = md.pkg_name AND p.branch = md.branch
			WHERE md.make_depend = ? AND p.is_listed = 1
		`,
		params: 1,
	},
	SearchOptDepends: {
		sql: `
			SELECT DISTINCT p.branch, p.pkg_name, p.pkg_desc, p.version, p.url, p.commit_id, p.committed_at,
			       s.version AS s_version, s.popularity, s.num_votes, s.out_of_date,
			       s.maintainer, s.submitter, s.first_submitted, s.last_modified
			FROM pkg_info p
			LEFT JOIN pkg_supplement s ON p.pkg_name = s.pkgname
			JOIN pkg_opt_depends od ON p.pkg_name = od.pkg_name AND p.branch = od.branch
			WHERE od.opt_depend = ? AND p.is_listed = 1
		`,
		params: 1,
	},
	SearchCheckDepends: {
		sql: `
			SELECT DISTINCT p.branch, p.pkg_name, p.pkg_desc, p.version, p.url, p.commit_id, p.committed_at,
			       s.version AS s_version, s.popularity, s.num_votes, s.out_of_date,
			       s.maintainer, s.submitter, s.first_submitted, s.last_modified
			FROM pkg_info p
			LEFT JOIN pkg_supplement s ON p.pkg_name = s.pkgname
			JOIN pkg_check_depends cd ON p.pkg_name = cd.pkg_name AND p.branch = cd.branch
			WHERE cd.check_depend = ? AND p.is_listed = 1
		`,
		params: 1,
	},
}

type packageInfoRow struct {
	Branch      string         `db:"branch"`
	PkgName     string         `db:"pkg_name"`
	PkgDesc     sql.NullString `db:"pkg_desc"`
	Version     string         `db:"version"`
	URL         sql.NullString `db:"url"`
	CommitID    string         `db:"commit_id"`
	CommittedAt sql.NullInt64  `db:"committed_at"`

	SVersion       sql.NullString  `db:"s_version"`
	Popularity     sql.NullFloat64 `db:"popularity"`
	NumVotes       sql.NullInt64   `db:"num_votes"`
	OutOfDate      sql.NullInt64   `db:"out_of_date"`
	Maintainer     sql.NullString  `db:"maintainer"`
	Submitter      sql.NullString  `db:"submitter"`
	FirstSubmitted sql.NullInt64   `db:"first_submitted"`
	LastModified   sql.NullInt64   `db:"last_modified"`
}

func (r packageInfoRow) toPackageInfo() PackageInfo {
	versionMatches := r.SVersion.Valid && r.SVersion.String == r.Version

	info := PackageInfo{
		Branch:         r.Branch,
		PkgName:        r.PkgName,
		Version:        r.Version,
		CommitID:       r.CommitID,
		Popularity:     nullFloat64(r.Popularity),
		NumVotes:       nullInt64(r.NumVotes),
		Maintainer:     nullString(r.Maintainer),
		Submitter:      nullString(r.Submitter),
		FirstSubmitted: nullInt64(r.FirstSubmitted),
	}
	if r.PkgDesc.Valid {
		info.PkgDesc = &r.PkgDesc.String
	}
	if r.URL.Valid {
		info.URL = &r.URL.String
	}
	if r.CommittedAt.Valid {
		info.CommittedAt = &r.CommittedAt.Int64
	}
	if versionMatches {
		info.OutOfDate = nullInt64(r.OutOfDate)
		info.LastModified = nullInt64(r.LastModified)
	}
	return info
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

func nullInt64(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	return &v.Int64
}

func nullFloat64(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}

// SearchPackages matches keyword against the attribute named by
// searchType, returning every listed package that matches.
func (s *Store) SearchPackages(ctx context.Context, searchType SearchType, keyword string) ([]PackageInfo, error) {
	q, ok := searchQueries[searchType]
	if !ok {
		return nil, fmt.Errorf("store: unsupported search type %v", searchType)
	}

	args := make([]any, q.params)
	for i := range args {
		if searchType == SearchName || searchType == SearchNameDesc {
			args[i] = "%" + keyword + "%"
		} else {
			args[i] = keyword
		}
	}

	var rows []packageInfoRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(q.sql), args...); err != nil {
		return nil, fmt.Errorf("store: searching packages: %w", err)
	}

	results := make([]PackageInfo, len(rows))
	for i, row := range rows {
		results[i] = row.toPackageInfo()
	}
	return results, nil
}

// PackageDetails returns the full indexed record, relation lists, and
// supplement keywords/co-maintainers for each listed package named in
// names. Names with no listed match are silently omitted.
func (s *Store) PackageDetails(ctx context.Context, names []string) ([]PackageDetails, error) {
	if len(names) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`
		SELECT p.branch, p.pkg_name, p.pkg_desc, p.version, p.url, p.commit_id, p.committed_at,
		       s.version AS s_version, s.popularity, s.num_votes, s.out_of_date,
		       s.maintainer, s.submitter, s.first_submitted, s.last_modified,
		       s.co_maintainers, s.keywords
		FROM pkg_info p
		LEFT JOIN pkg_supplement s ON p.pkg_name = s.pkgname
		WHERE p.pkg_name IN (?) AND p.is_listed = 1
	`, names)
	if err != nil {
		return nil, fmt.Errorf("store: building package details query: %w", err)
	}

	type detailsRow struct {
		packageInfoRow
		CoMaintainers sql.NullString `db:"co_maintainers"`
		Keywords      sql.NullString `db:"keywords"`
	}

	var rows []detailsRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("store: reading package details: %w", err)
	}

	details := make([]PackageDetails, len(rows))
	for i, row := range rows {
		details[i].PackageInfo = row.toPackageInfo()
		details[i].Keywords = decodeJSONStringList(row.Keywords)
		details[i].CoMaintainers = decodeJSONStringList(row.CoMaintainers)

		relations, err := s.relationLists(ctx, details[i].PackageInfo.Branch, details[i].PackageInfo.PkgName)
		if err != nil {
			return nil, err
		}
		details[i].Depends = relations[0]
		details[i].MakeDepends = relations[1]
		details[i].OptDepends = relations[2]
		details[i].CheckDepends = relations[3]
		details[i].Provides = relations[4]
		details[i].Conflicts = relations[5]
		details[i].Replaces = relations[6]
		details[i].Groups = relations[7]
	}
	return details, nil
}

func (s *Store) relationLists(ctx context.Context, branch, pkgName string) ([8][]string, error) {
	var out [8][]string
	for i, rel := range relationTables {
		query := fmt.Sprintf("SELECT %s FROM %s WHERE pkg_name = ? AND branch = ?", rel.column, rel.table)
		var values []string
		if err := s.db.SelectContext(ctx, &values, query, pkgName, branch); err != nil {
			return out, fmt.Errorf("store: reading %s: %w", rel.table, err)
		}
		out[i] = values
	}
	return out, nil
}

func decodeJSONStringList(v sql.NullString) []string {
	if !v.Valid || v.String == "" {
		return nil
	}
	var list []string
	if err := json.Unmarshal([]byte(v.String), &list); err != nil {
		return nil
	}
	return list
}

// IngestSupplement replaces the entire supplement table with
// records and then refreshes every package's is_listed flag. An empty
// records slice is a no-op: the existing table is left untouched.
func (s *Store) IngestSupplement(ctx context.Context, records []SupplementRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: beginning supplement transaction: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM pkg_supplement"); err != nil {
		tx.Rollback()
		return fmt.Errorf("store: clearing supplement table: %w", err)
	}

	for _, rec := range records {
		coMaintainers, err := json.Marshal(nonNilStrings(rec.CoMaintainers))
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("store: encoding co-maintainers: %w", err)
		}
		keywords, err := json.Marshal(nonNilStrings(rec.Keywords))
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("store: encoding keywords: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO pkg_supplement
			(pkgname, version, popularity, num_votes, out_of_date, maintainer,
			 submitter, co_maintainers, keywords, first_submitted, last_modified)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, rec.PkgName, rec.Version, rec.Popularity, rec.NumVotes, rec.OutOfDate, rec.Maintainer,
			rec.Submitter, string(coMaintainers), string(keywords), rec.FirstSubmitted, rec.LastModified)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("store: inserting supplement for %s: %w", rec.PkgName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: committing supplement update: %w", err)
	}

	return s.updateIsListedStatus(ctx)
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// updateIsListedStatus marks a package unlisted once it falls out of
// the supplement snapshot and its last commit predates the snapshot's
// freshest entry by more than isListedGracePeriod.
func (s *Store) updateIsListedStatus(ctx context.Context) error {
	var maxLastModified sql.NullInt64
	if err := s.db.GetContext(ctx, &maxLastModified, "SELECT MAX(last_modified) FROM pkg_supplement"); err != nil {
		return fmt.Errorf("store: reading max last_modified: %w", err)
	}
	if !maxLastModified.Valid {
		return nil
	}

	threshold := maxLastModified.Int64 - isListedGracePeriod
	_, err := s.db.ExecContext(ctx, `
		UPDATE pkg_info
		SET is_listed = CASE
			WHEN pkg_name IN (SELECT pkgname FROM pkg_supplement) THEN 1
			WHEN committed_at IS NOT NULL AND committed_at < ? THEN 0
			ELSE 1
		END
	`, threshold)
	if err != nil {
		return fmt.Errorf("store: updating is_listed status: %w", err)
	}
	return nil
}
