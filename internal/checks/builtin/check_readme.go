package builtin

import (
	"repoharvest/internal/checks"
	"repoharvest/internal/fetch"
)

type readmeCheck struct{}

func (c *readmeCheck) Name() string  { return "readme" }
func (c *readmeCheck) Title() string { return "README Present" }

func (c *readmeCheck) Description() string {
	return "Checks whether a README file exists at the repository root."
}

func (c *readmeCheck) Evaluate(s *fetch.Snapshot) checks.Result {
	if s.RootFile("README") {
		return checks.Present(c.Name(), "")
	}
	if s.RootErr != nil {
		return checks.Unknown(c.Name(), "root listing unavailable")
	}
	return checks.Absent(c.Name(), "")
}

func init() {
	checks.Register(&readmeCheck{})
}
