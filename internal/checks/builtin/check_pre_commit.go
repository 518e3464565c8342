package builtin

import (
	"repoharvest/internal/checks"
	"repoharvest/internal/fetch"
)

var preCommitFiles = []string{
	".pre-commit-config.yaml",
	".pre-commit-config.yml",
}

type preCommitCheck struct{}

func (c *preCommitCheck) Name() string  { return "pre-commit" }
func (c *preCommitCheck) Title() string { return "Pre-commit Hooks Configured" }

func (c *preCommitCheck) Description() string {
	return "Checks whether a pre-commit configuration file exists at the repository root."
}

func (c *preCommitCheck) Evaluate(s *fetch.Snapshot) checks.Result {
	for _, f := range preCommitFiles {
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
	checks.Register(&preCommitCheck{})
}
