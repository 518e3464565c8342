package builtin

import (
	"errors"
	"testing"

	"github.com/google/go-github/v81/github"

	"repoharvest/internal/checks"
	"repoharvest/internal/fetch"
)

func snapWithRoot(entries ...fetch.Entry) *fetch.Snapshot {
	return &fetch.Snapshot{Root: entries}
}

func file(name string) fetch.Entry { return fetch.Entry{Name: name} }
func dir(name string) fetch.Entry  { return fetch.Entry{Name: name, Dir: true} }

func TestCICheck(t *testing.T) {
	c := &ciCheck{}

	t.Run("workflows present", func(t *testing.T) {
		s := &fetch.Snapshot{Workflows: []string{"ci.yml", "release.yml"}}
		if got := c.Evaluate(s); got.Outcome != checks.OutcomePresent {
			t.Fatalf("want present, got %+v", got)
		}
	})

	t.Run("travis at root", func(t *testing.T) {
		s := snapWithRoot(file(".travis.yml"))
		got := c.Evaluate(s)
		if got.Outcome != checks.OutcomePresent || got.Detail != ".travis.yml" {
			t.Fatalf("want present via travis, got %+v", got)
		}
	})

	t.Run("circleci dir", func(t *testing.T) {
		s := snapWithRoot(dir(".circleci"))
		if got := c.Evaluate(s); got.Outcome != checks.OutcomePresent {
			t.Fatalf("want present via circleci, got %+v", got)
		}
	})

	t.Run("absent", func(t *testing.T) {
		s := snapWithRoot(file("README.md"))
		if got := c.Evaluate(s); got.Outcome != checks.OutcomeAbsent {
			t.Fatalf("want absent, got %+v", got)
		}
	})

	t.Run("unknown when listings failed", func(t *testing.T) {
		s := &fetch.Snapshot{WorkflowsErr: errors.New("boom")}
		if got := c.Evaluate(s); got.Outcome != checks.OutcomeUnknown {
			t.Fatalf("want unknown, got %+v", got)
		}
	})
}

func TestTestsCheck(t *testing.T) {
	c := &testsCheck{}

	if got := c.Evaluate(snapWithRoot(dir("tests"))); got.Outcome != checks.OutcomePresent {
		t.Fatalf("want present, got %+v", got)
	}
	// A file named tests does not count.
	if got := c.Evaluate(snapWithRoot(file("tests"))); got.Outcome != checks.OutcomeAbsent {
		t.Fatalf("file named tests must not count, got %+v", got)
	}
	if got := c.Evaluate(&fetch.Snapshot{RootErr: errors.New("x")}); got.Outcome != checks.OutcomeUnknown {
		t.Fatalf("want unknown, got %+v", got)
	}
}

func TestManifestAndLockfileChecks(t *testing.T) {
	m := &manifestCheck{}
	l := &lockfileCheck{}

	s := snapWithRoot(file("pyproject.toml"), file("poetry.lock"))
	if got := m.Evaluate(s); got.Outcome != checks.OutcomePresent || got.Detail != "pyproject.toml" {
		t.Fatalf("manifest: %+v", got)
	}
	if got := l.Evaluate(s); got.Outcome != checks.OutcomePresent || got.Detail != "poetry.lock" {
		t.Fatalf("lockfile: %+v", got)
	}

	bare := snapWithRoot(file("main.py"))
	if got := m.Evaluate(bare); got.Outcome != checks.OutcomeAbsent {
		t.Fatalf("manifest absent: %+v", got)
	}
	if got := l.Evaluate(bare); got.Outcome != checks.OutcomeAbsent {
		t.Fatalf("lockfile absent: %+v", got)
	}
}

func TestLicenseCheck(t *testing.T) {
	c := &licenseCheck{}

	t.Run("api license field", func(t *testing.T) {
		s := &fetch.Snapshot{Repo: &github.Repository{
			License: &github.License{SPDXID: github.Ptr("Apache-2.0")},
		}}
		got := c.Evaluate(s)
		if got.Outcome != checks.OutcomePresent || got.Detail != "Apache-2.0" {
			t.Fatalf("want present Apache-2.0, got %+v", got)
		}
	})

	t.Run("root file fallback", func(t *testing.T) {
		s := snapWithRoot(file("LICENSE.md"))
		if got := c.Evaluate(s); got.Outcome != checks.OutcomePresent {
			t.Fatalf("want present via root file, got %+v", got)
		}
	})

	t.Run("absent", func(t *testing.T) {
		if got := c.Evaluate(snapWithRoot(file("README.md"))); got.Outcome != checks.OutcomeAbsent {
			t.Fatalf("want absent, got %+v", got)
		}
	})
}

func TestDocFileChecks(t *testing.T) {
	s := snapWithRoot(file("README.md"), file("CONTRIBUTING.md"), file("CODE_OF_CONDUCT.md"))

	for _, c := range []checks.Check{&readmeCheck{}, &contributingCheck{}, &conductCheck{}} {
		if got := c.Evaluate(s); got.Outcome != checks.OutcomePresent {
			t.Fatalf("%s: want present, got %+v", c.Name(), got)
		}
	}

	empty := snapWithRoot()
	for _, c := range []checks.Check{&readmeCheck{}, &contributingCheck{}, &conductCheck{}} {
		if got := c.Evaluate(empty); got.Outcome != checks.OutcomeAbsent {
			t.Fatalf("%s: want absent, got %+v", c.Name(), got)
		}
	}
}

func TestCommunityDirChecks(t *testing.T) {
	t.Run("github dir placement counts", func(t *testing.T) {
		s := &fetch.Snapshot{
			Root:      []fetch.Entry{dir(".github"), file("README.md")},
			Community: []fetch.Entry{file("CONTRIBUTING.md"), file("CODE_OF_CONDUCT.md")},
		}
		for _, c := range []checks.Check{&contributingCheck{}, &conductCheck{}} {
			got := c.Evaluate(s)
			if got.Outcome != checks.OutcomePresent || got.Detail != ".github" {
				t.Fatalf("%s: want present via .github, got %+v", c.Name(), got)
			}
		}
	})

	t.Run("root placement still wins", func(t *testing.T) {
		s := &fetch.Snapshot{Root: []fetch.Entry{file("CONTRIBUTING.rst")}}
		if got := (&contributingCheck{}).Evaluate(s); got.Outcome != checks.OutcomePresent {
			t.Fatalf("want present via root, got %+v", got)
		}
	})

	t.Run("unknown when github listing failed", func(t *testing.T) {
		s := &fetch.Snapshot{CommunityErr: errors.New("boom")}
		for _, c := range []checks.Check{&contributingCheck{}, &conductCheck{}} {
			if got := c.Evaluate(s); got.Outcome != checks.OutcomeUnknown {
				t.Fatalf("%s: want unknown, got %+v", c.Name(), got)
			}
		}
	})
}

func TestPreCommitCheck(t *testing.T) {
	c := &preCommitCheck{}

	if got := c.Evaluate(snapWithRoot(file(".pre-commit-config.yaml"))); got.Outcome != checks.OutcomePresent {
		t.Fatalf("want present, got %+v", got)
	}
	if got := c.Evaluate(snapWithRoot(file("README.md"))); got.Outcome != checks.OutcomeAbsent {
		t.Fatalf("want absent, got %+v", got)
	}
	if got := c.Evaluate(&fetch.Snapshot{RootErr: errors.New("x")}); got.Outcome != checks.OutcomeUnknown {
		t.Fatalf("want unknown, got %+v", got)
	}
}

func TestAllBuiltinsRegistered(t *testing.T) {
	want := []string{
		"ci", "code-of-conduct", "contributing", "dependency-manifest",
		"license", "lockfile", "pre-commit", "readme", "tests",
	}
	names := checks.Names()
	got := make(map[string]bool, len(names))
	for _, n := range names {
		got[n] = true
	}
	for _, n := range want {
		if !got[n] {
			t.Fatalf("check %q not registered (have %v)", n, names)
		}
	}
}
