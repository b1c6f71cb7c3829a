package store

import "fmt"

// SearchType selects which package attribute a search keyword is
// matched against.
type SearchType int

const (
	SearchName SearchType = iota
	SearchNameDesc
	SearchDepends
	SearchMakeDepends
	SearchOptDepends
	SearchCheckDepends
)

// ParseSearchType maps the AUR RPC's "by" query values to a SearchType.
func ParseSearchType(s string) (SearchType, error) {
	switch s {
	case "name":
		return SearchName, nil
	case "name-desc":
		return SearchNameDesc, nil
	case "depends":
		return SearchDepends, nil
	case "makedepends":
		return SearchMakeDepends, nil
	case "optdepends":
		return SearchOptDepends, nil
	case "checkdepends":
		return SearchCheckDepends, nil
	default:
		return 0, fmt.Errorf("store: unknown search type %q", s)
	}
}

// PackageRecord is one package's indexed state as of a given branch's
// harvested commit, ready for INSERT OR REPLACE into pkg_info plus its
// relation tables.
type PackageRecord struct {
	Branch      string
	PkgName     string
	PkgDesc     string
	Version     string
	URL         string
	CommitID    string
	CommittedAt int64

	Depends      []string
	MakeDepends  []string
	OptDepends   []string
	CheckDepends []string
	Provides     []string
	Conflicts    []string
	Replaces     []string
	Groups       []string
}

// PackageInfo is a search result row: pkg_info joined with pkg_supplement.
// Time-sensitive supplement fields (OutOfDate, LastModified) are only
// populated when the supplement's recorded version still matches the
// indexed package version; both SearchPackages and PackageDetails
// apply this gate.
type PackageInfo struct {
	Branch      string
	PkgName     string
	PkgDesc     *string
	Version     string
	URL         *string
	CommitID    string
	CommittedAt *int64

	Popularity     *float64
	NumVotes       *int64
	OutOfDate      *int64
	Maintainer     *string
	Submitter      *string
	FirstSubmitted *int64
	LastModified   *int64
}

// PackageDetails is PackageInfo plus its full relation lists and the
// supplement's free-form keyword/co-maintainer lists.
type PackageDetails struct {
	PackageInfo

	Depends      []string
	MakeDepends  []string
	OptDepends   []string
	CheckDepends []string
	Provides     []string
	Conflicts    []string
	Replaces     []string
	Groups       []string

	Keywords      []string
	CoMaintainers []string
}

// SupplementRecord is one package's AUR-RPC-sourced supplement data,
// refreshed wholesale on every supplement snapshot ingest. Field names
// and JSON tags follow the supplement snapshot's own field names so the
// (external, out-of-scope) downloader can unmarshal JSON directly into
// it.
type SupplementRecord struct {
	PkgName        string   `json:"Name"`
	Version        string   `json:"Version"`
	Popularity     float64  `json:"Popularity"`
	NumVotes       int64    `json:"NumVotes"`
	OutOfDate      *int64   `json:"OutOfDate"`
	Maintainer     *string  `json:"Maintainer"`
	Submitter      *string  `json:"Submitter"`
	CoMaintainers  []string `json:"CoMaintainers"`
	Keywords       []string `json:"Keywords"`
	FirstSubmitted *int64   `json:"FirstSubmitted"`
	LastModified   *int64   `json:"LastModified"`
}
