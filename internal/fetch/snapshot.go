package fetch

import (
	"strings"
	"time"

	"github.com/google/go-github/v81/github"

	"repoharvest/internal/key"
)

// Entry is one item in a repository's root directory listing.
type Entry struct {
	Name string
	Dir  bool
}

// Snapshot is everything fetched for one repository key. It is built once by
// the Fetcher, handed to the checks, and discarded after the report record is
// written. Optional sections that could not be fetched carry their error so
// checks can report "unknown" instead of a false "absent".
type Snapshot struct {
	Key  key.Key
	Repo *github.Repository

	Root    []Entry
	RootErr error

	// Workflows lists file names under .github/workflows on the default
	// branch. Empty with a nil WorkflowsErr means the directory is absent.
	Workflows    []string
	WorkflowsErr error

	// Community lists the .github directory, where GitHub also resolves
	// community health files (CONTRIBUTING, CODE_OF_CONDUCT and friends).
	Community    []Entry
	CommunityErr error

	Contributors    int
	ContributorsErr error

	Downloads    int64
	DownloadsErr error

	FetchedAt time.Time
}

// RootFile reports whether any of the given file names exists at the
// repository root. Matching is case-insensitive; a candidate without an
// extension also matches documentation variants (LICENSE matches LICENSE.md
// but Gemfile does not match Gemfile.lock).
func (s *Snapshot) RootFile(names ...string) bool {
	return s.rootMatch(false, names)
}

var docExtensions = map[string]bool{
	"md": true, "markdown": true, "rst": true, "txt": true, "adoc": true,
}

// RootDir reports whether any of the given directory names exists at the
// repository root (case-insensitive, exact).
func (s *Snapshot) RootDir(names ...string) bool {
	return s.rootMatch(true, names)
}

// CommunityFile reports whether any of the given file names exists in the
// .github directory. Matching rules are the same as RootFile.
func (s *Snapshot) CommunityFile(names ...string) bool {
	if s == nil {
		return false
	}
	return matchEntries(s.Community, false, names)
}

func (s *Snapshot) rootMatch(dir bool, names []string) bool {
	if s == nil {
		return false
	}
	return matchEntries(s.Root, dir, names)
}

func matchEntries(entries []Entry, dir bool, names []string) bool {
	for _, e := range entries {
		if e.Dir != dir {
			continue
		}
		for _, want := range names {
			if strings.EqualFold(e.Name, want) {
				return true
			}
			if !dir && !strings.Contains(want, ".") {
				base, ext, found := strings.Cut(e.Name, ".")
				if found && strings.EqualFold(base, want) && docExtensions[strings.ToLower(ext)] {
					return true
				}
			}
		}
	}
	return false
}
