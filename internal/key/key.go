package key

import (
	"fmt"
	"net/url"
	"strings"
)

// Key uniquely identifies one target repository. It is stable across runs and
// is the deduplication/checkpoint key for the whole pipeline.
type Key struct {
	Service string
	Owner   string
	Name    string
}

// DefaultService is assumed when a repository is given as OWNER/NAME without a host.
const DefaultService = "github.com"

func (k Key) String() string {
	return k.Service + "/" + k.Owner + "/" + k.Name
}

// FullName returns the OWNER/NAME form used in API calls.
func (k Key) FullName() string {
	return k.Owner + "/" + k.Name
}

func (k Key) IsZero() bool {
	return k == Key{}
}

// Validate reports whether the key has all components and none contain a slash.
func (k Key) Validate() error {
	if k.Service == "" || k.Owner == "" || k.Name == "" {
		return fmt.Errorf("incomplete repository key %q", k.String())
	}
	for _, part := range []string{k.Service, k.Owner, k.Name} {
		if strings.ContainsAny(part, "/ \t") {
			return fmt.Errorf("malformed repository key component %q", part)
		}
	}
	return nil
}

// Parse accepts a repository URL or shorthand and returns its Key.
//
// Accepted forms:
//
//	https://github.com/OWNER/NAME
//	github.com/OWNER/NAME
//	OWNER/NAME
//
// Trailing path segments (e.g. /tree/main), a trailing ".git" suffix and
// trailing slashes are stripped. The host defaults to github.com.
func Parse(raw string) (Key, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Key{}, fmt.Errorf("empty repository identifier")
	}

	service := DefaultService
	path := raw

	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return Key{}, fmt.Errorf("invalid repository URL %q: %w", raw, err)
		}
		host := strings.ToLower(u.Hostname())
		if host == "" {
			return Key{}, fmt.Errorf("invalid repository URL %q: missing host", raw)
		}
		host = strings.TrimPrefix(host, "www.")
		service = host
		path = u.Path
	} else if i := strings.Index(raw, "/"); i > 0 && strings.Contains(raw[:i], ".") {
		// Host without scheme, e.g. github.com/owner/name.
		service = strings.TrimPrefix(strings.ToLower(raw[:i]), "www.")
		path = raw[i:]
	}

	parts := strings.FieldsFunc(strings.Trim(path, "/"), func(r rune) bool { return r == '/' })
	if len(parts) < 2 {
		return Key{}, fmt.Errorf("invalid repository identifier %q: expected OWNER/NAME", raw)
	}

	k := Key{
		Service: service,
		Owner:   parts[0],
		Name:    strings.TrimSuffix(parts[1], ".git"),
	}
	if err := k.Validate(); err != nil {
		return Key{}, err
	}
	return k, nil
}
