package builtin

import (
	"repoharvest/internal/checks"
	"repoharvest/internal/fetch"
)

var testDirNames = []string{"test", "tests", "testing", "spec", "unit_tests"}

type testsCheck struct{}

func (c *testsCheck) Name() string  { return "tests" }
func (c *testsCheck) Title() string { return "Test Folder Present" }

func (c *testsCheck) Description() string {
	return "Checks whether a test folder (test, tests, testing, spec or unit_tests) exists at the repository root."
}

func (c *testsCheck) Evaluate(s *fetch.Snapshot) checks.Result {
	for _, d := range testDirNames {
		if s.RootDir(d) {
			return checks.Present(c.Name(), d)
		}
	}
	if s.RootErr != nil {
		return checks.Unknown(c.Name(), "root listing unavailable")
	}
	return checks.Absent(c.Name(), "")
}

func init() {
	checks.Register(&testsCheck{})
}
