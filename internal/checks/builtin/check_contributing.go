package builtin

import (
	"repoharvest/internal/checks"
	"repoharvest/internal/fetch"
)

type contributingCheck struct{}

func (c *contributingCheck) Name() string  { return "contributing" }
func (c *contributingCheck) Title() string { return "Contributing Guidelines Present" }

func (c *contributingCheck) Description() string {
	return "Checks whether a CONTRIBUTING file exists at the repository root or in the .github directory."
}

func (c *contributingCheck) Evaluate(s *fetch.Snapshot) checks.Result {
	if s.RootFile("CONTRIBUTING") {
		return checks.Present(c.Name(), "")
	}
	if s.CommunityFile("CONTRIBUTING") {
		return checks.Present(c.Name(), ".github")
	}
	if s.RootErr != nil || s.CommunityErr != nil {
		return checks.Unknown(c.Name(), "repository listing unavailable")
	}
	return checks.Absent(c.Name(), "")
}

func init() {
	checks.Register(&contributingCheck{})
}
