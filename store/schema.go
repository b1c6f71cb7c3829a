package store

// currentSchemaVersion is stored in PRAGMA user_version. Bumping it
// causes every relation table to be dropped and recreated on next
// open: the index is a disposable mirror of upstream state, cheaper to
// rebuild from scratch than to migrate in place.
const currentSchemaVersion = 2

// droppableTables lists every table reset when the schema version
// advances. branch_commits is included: a schema bump invalidates the
// "already harvested" bookkeeping along with the data it describes.
var droppableTables = []string{
	"branch_commits",
	"pkg_info",
	"pkg_depends",
	"pkg_make_depends",
	"pkg_opt_depends",
	"pkg_check_depends",
	"pkg_provides",
	"pkg_conflicts",
	"pkg_replaces",
	"pkg_groups",
	"pkg_supplement",
}

var createTableStatements = []string{
	`CREATE TABLE IF NOT EXISTS branch_commits (
		branch TEXT NOT NULL PRIMARY KEY,
		commit_id TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS pkg_info (
		branch TEXT NOT NULL,
		pkg_name TEXT NOT NULL,
		pkg_desc TEXT,
		version TEXT NOT NULL,
		url TEXT,
		commit_id TEXT NOT NULL,
		is_listed INTEGER DEFAULT 1,
		committed_at INTEGER,
		PRIMARY KEY (branch, pkg_name)
	)`,
	`CREATE TABLE IF NOT EXISTS pkg_depends (
		branch TEXT NOT NULL,
		pkg_name TEXT NOT NULL,
		depend TEXT NOT NULL,
		PRIMARY KEY (branch, pkg_name, depend)
	)`,
	`CREATE TABLE IF NOT EXISTS pkg_make_depends (
		branch TEXT NOT NULL,
		pkg_name TEXT NOT NULL,
		make_depend TEXT NOT NULL,
		PRIMARY KEY (branch, pkg_name, make_depend)
	)`,
	`CREATE TABLE IF NOT EXISTS pkg_opt_depends (
		branch TEXT NOT NULL,
		pkg_name TEXT NOT NULL,
		opt_depend TEXT NOT NULL,
		PRIMARY KEY (branch, pkg_name, opt_depend)
	)`,
	`CREATE TABLE IF NOT EXISTS pkg_check_depends (
		branch TEXT NOT NULL,
		pkg_name TEXT NOT NULL,
		check_depend TEXT NOT NULL,
		PRIMARY KEY (branch, pkg_name, check_depend)
	)`,
	`CREATE TABLE IF NOT EXISTS pkg_provides (
		branch TEXT NOT NULL,
		pkg_name TEXT NOT NULL,
		provide TEXT NOT NULL,
		PRIMARY KEY (branch, pkg_name, provide)
	)`,
	`CREATE TABLE IF NOT EXISTS pkg_conflicts (
		branch TEXT NOT NULL,
		pkg_name TEXT NOT NULL,
		conflict TEXT NOT NULL,
		PRIMARY KEY (branch, pkg_name, conflict)
	)`,
	`CREATE TABLE IF NOT EXISTS pkg_replaces (
		branch TEXT NOT NULL,
		pkg_name TEXT NOT NULL,
		replace TEXT NOT NULL,
		PRIMARY KEY (branch, pkg_name, replace)
	)`,
	`CREATE TABLE IF NOT EXISTS pkg_groups (
		branch TEXT NOT NULL,
		pkg_name TEXT NOT NULL,
		group_name TEXT NOT NULL,
		PRIMARY KEY (branch, pkg_name, group_name)
	)`,
	`CREATE TABLE IF NOT EXISTS pkg_supplement (
		pkgname TEXT NOT NULL PRIMARY KEY,
		version TEXT NOT NULL,
		popularity REAL NOT NULL,
		num_votes INTEGER NOT NULL,
		out_of_date INTEGER,
		maintainer TEXT,
		submitter TEXT,
		co_maintainers TEXT,
		keywords TEXT,
		first_submitted INTEGER,
		last_modified INTEGER
	)`,
}

var createIndexStatements = []string{
	"CREATE INDEX IF NOT EXISTS idx_pkg_info_name ON pkg_info(pkg_name)",
	"CREATE INDEX IF NOT EXISTS idx_pkg_info_branch ON pkg_info(branch)",
	"CREATE INDEX IF NOT EXISTS idx_pkg_depends_branch ON pkg_depends(branch)",
	"CREATE INDEX IF NOT EXISTS idx_pkg_make_depends_branch ON pkg_make_depends(branch)",
	"CREATE INDEX IF NOT EXISTS idx_pkg_opt_depends_branch ON pkg_opt_depends(branch)",
	"CREATE INDEX IF NOT EXISTS idx_pkg_check_depends_branch ON pkg_check_depends(branch)",
	"CREATE INDEX IF NOT EXISTS idx_pkg_provides_branch ON pkg_provides(branch)",
	"CREATE INDEX IF NOT EXISTS idx_pkg_conflicts_branch ON pkg_conflicts(branch)",
	"CREATE INDEX IF NOT EXISTS idx_pkg_replaces_branch ON pkg_replaces(branch)",
	"CREATE INDEX IF NOT EXISTS idx_pkg_groups_branch ON pkg_groups(branch)",
	"CREATE INDEX IF NOT EXISTS idx_pkg_depends_depend ON pkg_depends(depend)",
	"CREATE INDEX IF NOT EXISTS idx_pkg_make_depends_make_depend ON pkg_make_depends(make_depend)",
	"CREATE INDEX IF NOT EXISTS idx_pkg_opt_depends_opt_depend ON pkg_opt_depends(opt_depend)",
	"CREATE INDEX IF NOT EXISTS idx_pkg_check_depends_check_depend ON pkg_check_depends(check_depend)",
}

// relationTables maps each per-package relation table to the name of
// its value column, in the order PackageDetails expects them.
var relationTables = []struct {
	table  string
	column string
}{
	{"pkg_depends", "depend"},
	{"pkg_make_depends", "make_depend"},
	{"pkg_opt_depends", "opt_depend"},
	{"pkg_check_depends", "check_depend"},
	{"pkg_provides", "provide"},
	{"pkg_conflicts", "conflict"},
	{"pkg_replaces", "replace"},
	{"pkg_groups", "group_name"},
}
