package builtin

import (
	"repoharvest/internal/checks"
	"repoharvest/internal/fetch"
)

type conductCheck struct{}

func (c *conductCheck) Name() string  { return "code-of-conduct" }
func (c *conductCheck) Title() string { return "Code of Conduct Present" }

func (c *conductCheck) Description() string {
	return "Checks whether a CODE_OF_CONDUCT file exists at the repository root or in the .github directory."
}

func (c *conductCheck) Evaluate(s *fetch.Snapshot) checks.Result {
	if s.RootFile("CODE_OF_CONDUCT") {
		return checks.Present(c.Name(), "")
	}
	if s.CommunityFile("CODE_OF_CONDUCT") {
		return checks.Present(c.Name(), ".github")
	}
	if s.RootErr != nil || s.CommunityErr != nil {
		return checks.Unknown(c.Name(), "repository listing unavailable")
	}
	return checks.Absent(c.Name(), "")
}

func init() {
	checks.Register(&conductCheck{})
}
