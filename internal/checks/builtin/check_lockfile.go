package builtin

import (
	"repoharvest/internal/checks"
	"repoharvest/internal/fetch"
)

var lockFiles = []string{
	"poetry.lock",
	"Pipfile.lock",
	"pdm.lock",
	"uv.lock",
	"package-lock.json",
	"yarn.lock",
	"pnpm-lock.yaml",
	"go.sum",
	"Cargo.lock",
	"Gemfile.lock",
	"composer.lock",
}

type lockfileCheck struct{}

func (c *lockfileCheck) Name() string  { return "lockfile" }
func (c *lockfileCheck) Title() string { return "Dependency Lock File Present" }

func (c *lockfileCheck) Description() string {
	return "Checks whether a dependency lock file exists at the repository root, pinning transitive dependency versions."
}

func (c *lockfileCheck) Evaluate(s *fetch.Snapshot) checks.Result {
	for _, f := range lockFiles {
		if s.RootFile(f) {
			return checks.Present(c.Name(), f)
		}
	}
	if s.RootErr != nil {
		return checks.Unknown(c.Name(), "root listing unavailable")
	}
	return checks.Absent(c.Name(), "")
}

func init() {
	checks.Register(&lockfileCheck{})
}
