package builtin

import (
	"repoharvest/internal/checks"
	"repoharvest/internal/fetch"
)

// Dependency manifests across the ecosystems the dataset covers.
var manifestFiles = []string{
	"requirements.txt",
	"setup.py",
	"setup.cfg",
	"pyproject.toml",
	"environment.yml",
	"Pipfile",
	"package.json",
	"go.mod",
	"pom.xml",
	"build.gradle",
	"Cargo.toml",
	"Gemfile",
	"DESCRIPTION",
	"CMakeLists.txt",
}

type manifestCheck struct{}

func (c *manifestCheck) Name() string  { return "dependency-manifest" }
func (c *manifestCheck) Title() string { return "Dependency Manifest Present" }

func (c *manifestCheck) Description() string {
	return "Checks whether dependencies are declared explicitly via a manifest file at the repository root (requirements.txt, pyproject.toml, package.json, go.mod, etc.)."
}

func (c *manifestCheck) Evaluate(s *fetch.Snapshot) checks.Result {
	for _, f := range manifestFiles {
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
	checks.Register(&manifestCheck{})
}
