package builtin

import (
	"repoharvest/internal/checks"
	"repoharvest/internal/fetch"
)

type licenseCheck struct{}

func (c *licenseCheck) Name() string  { return "license" }
func (c *licenseCheck) Title() string { return "License Present" }

func (c *licenseCheck) Description() string {
	return "Checks whether the repository declares a license, via the API license field or a LICENSE/COPYING file at the root."
}

func (c *licenseCheck) Evaluate(s *fetch.Snapshot) checks.Result {
	if s.Repo != nil && s.Repo.GetLicense() != nil {
		spdx := s.Repo.GetLicense().GetSPDXID()
		return checks.Present(c.Name(), spdx)
	}
	if s.RootFile("LICENSE", "LICENCE", "COPYING") {
		return checks.Present(c.Name(), "license file at root")
	}
	if s.RootErr != nil {
		return checks.Unknown(c.Name(), "root listing unavailable")
	}
	return checks.Absent(c.Name(), "")
}

func init() {
	checks.Register(&licenseCheck{})
}
