package builtin

import (
	"fmt"
	"strings"

	"repoharvest/internal/checks"
	"repoharvest/internal/fetch"
)

// Root-level config files that indicate a CI setup outside GitHub Actions.
var ciRootFiles = []string{
	".travis.yml",
	"appveyor.yml",
	".appveyor.yml",
	"azure-pipelines.yml",
	"Jenkinsfile",
	".gitlab-ci.yml",
	".drone.yml",
}

type ciCheck struct{}

func (c *ciCheck) Name() string  { return "ci" }
func (c *ciCheck) Title() string { return "Continuous Integration Configured" }

func (c *ciCheck) Description() string {
	return "Checks whether the repository has a CI configuration: a workflow file under .github/workflows, a known CI config file at the root, or a .circleci directory."
}

func (c *ciCheck) Evaluate(s *fetch.Snapshot) checks.Result {
	if len(s.Workflows) > 0 {
		return checks.Present(c.Name(), fmt.Sprintf("github actions (%s)", strings.Join(s.Workflows, ", ")))
	}
	for _, f := range ciRootFiles {
		if s.RootFile(f) {
			return checks.Present(c.Name(), f)
		}
	}
	if s.RootDir(".circleci") {
		return checks.Present(c.Name(), ".circleci")
	}
	if s.WorkflowsErr != nil || s.RootErr != nil {
		return checks.Unknown(c.Name(), "repository listing unavailable")
	}
	return checks.Absent(c.Name(), "")
}

func init() {
	checks.Register(&ciCheck{})
}
