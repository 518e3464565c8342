package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/go-github/v81/github"
	"golang.org/x/sync/singleflight"

	gh "repoharvest/internal/github"
	"repoharvest/internal/key"
)

// DefaultCallTimeout bounds a single API call, independent of the retry
// backoff budget.
const DefaultCallTimeout = 30 * time.Second

// Fetcher builds repository Snapshots. Every API call it issues goes through
// the Governor (permit before call, headers folded back after) and the retry
// Policy. Concurrent requests for the same key are deduplicated, so an input
// file that lists the same repository twice fetches it once.
type Fetcher struct {
	client      *gh.Client
	gov         *Governor
	policy      Policy
	group       singleflight.Group
	callTimeout time.Duration

	// test seams
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

func NewFetcher(client *gh.Client, gov *Governor, policy Policy) (*Fetcher, error) {
	if client == nil || client.Client == nil {
		return nil, errors.New("fetch: nil GitHub client")
	}
	if gov == nil {
		return nil, errors.New("fetch: nil governor")
	}
	if policy.MaxAttempts <= 0 {
		return nil, fmt.Errorf("fetch: MaxAttempts must be >= 1, got %d", policy.MaxAttempts)
	}
	return &Fetcher{
		client:      client,
		gov:         gov,
		policy:      policy,
		callTimeout: DefaultCallTimeout,
		sleep:       sleepCtx,
		now:         time.Now,
	}, nil
}

func (f *Fetcher) Governor() *Governor { return f.gov }

// Snapshot fetches all data needed to evaluate checks for one key. The
// repository metadata call is required; the remaining sections (root listing,
// workflows, contributors, releases) are optional and record their failure on
// the Snapshot instead of failing the key.
func (f *Fetcher) Snapshot(ctx context.Context, k key.Key) (*Snapshot, error) {
	v, err, _ := f.group.Do(k.String(), func() (any, error) {
		return f.snapshot(ctx, k)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Snapshot), nil
}

func (f *Fetcher) snapshot(ctx context.Context, k key.Key) (*Snapshot, error) {
	owner, name := k.Owner, k.Name
	s := &Snapshot{Key: k, FetchedAt: f.now().UTC()}

	err := f.call(ctx, func(c context.Context) (*github.Response, error) {
		repo, resp, err := f.client.Client.Repositories.Get(c, owner, name)
		if err == nil {
			s.Repo = repo
		}
		return resp, err
	})
	if err != nil {
		return nil, err
	}

	s.RootErr = tolerateNotFound(f.call(ctx, func(c context.Context) (*github.Response, error) {
		_, dir, resp, err := f.client.Client.Repositories.GetContents(c, owner, name, "", nil)
		if err == nil {
			for _, e := range dir {
				s.Root = append(s.Root, Entry{Name: e.GetName(), Dir: e.GetType() == "dir"})
			}
		}
		return resp, err
	}))

	s.WorkflowsErr = tolerateNotFound(f.call(ctx, func(c context.Context) (*github.Response, error) {
		_, dir, resp, err := f.client.Client.Repositories.GetContents(c, owner, name, ".github/workflows", nil)
		if err == nil {
			for _, e := range dir {
				if e.GetType() == "file" {
					s.Workflows = append(s.Workflows, e.GetName())
				}
			}
		}
		return resp, err
	}))

	s.CommunityErr = tolerateNotFound(f.call(ctx, func(c context.Context) (*github.Response, error) {
		_, dir, resp, err := f.client.Client.Repositories.GetContents(c, owner, name, ".github", nil)
		if err == nil {
			for _, e := range dir {
				s.Community = append(s.Community, Entry{Name: e.GetName(), Dir: e.GetType() == "dir"})
			}
		}
		return resp, err
	}))

	s.Contributors, s.ContributorsErr = f.countContributors(ctx, owner, name)
	s.Downloads, s.DownloadsErr = f.sumDownloads(ctx, owner, name)

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return s, nil
}

func (f *Fetcher) countContributors(ctx context.Context, owner, name string) (int, error) {
	opts := &github.ListContributorsOptions{
		Anon:        "true",
		ListOptions: github.ListOptions{PerPage: 100},
	}
	count := 0
	for {
		var page []*github.Contributor
		next := 0
		err := f.call(ctx, func(c context.Context) (*github.Response, error) {
			cs, resp, err := f.client.Client.Repositories.ListContributors(c, owner, name, opts)
			if err == nil {
				page = cs
				next = resp.NextPage
			}
			return resp, err
		})
		if err != nil {
			return 0, tolerateNotFound(err)
		}
		count += len(page)
		if next == 0 {
			return count, nil
		}
		opts.Page = next
	}
}

func (f *Fetcher) sumDownloads(ctx context.Context, owner, name string) (int64, error) {
	opts := &github.ListOptions{PerPage: 100}
	var total int64
	for {
		var page []*github.RepositoryRelease
		next := 0
		err := f.call(ctx, func(c context.Context) (*github.Response, error) {
			rs, resp, err := f.client.Client.Repositories.ListReleases(c, owner, name, opts)
			if err == nil {
				page = rs
				next = resp.NextPage
			}
			return resp, err
		})
		if err != nil {
			return 0, tolerateNotFound(err)
		}
		for _, rel := range page {
			for _, asset := range rel.Assets {
				total += int64(asset.GetDownloadCount())
			}
		}
		if next == 0 {
			return total, nil
		}
		opts.Page = next
	}
}

// call runs one governed API call with retries.
//
// Transient failures back off and consume one of Policy.MaxAttempts.
// Rate-limited failures do not consume attempts: the next Acquire blocks on
// the Governor until the reported reset/cooldown, which is what makes a
// sustained 429 storm slow instead of fatal (and never duplicating).
// Permanent failures return immediately with zero backoff sleeps.
func (f *Fetcher) call(ctx context.Context, fn func(ctx context.Context) (*github.Response, error)) error {
	attempt := 0
	for {
		if err := f.gov.Acquire(ctx); err != nil {
			return err
		}

		cctx := ctx
		cancel := func() {}
		if f.callTimeout > 0 {
			cctx, cancel = context.WithTimeout(ctx, f.callTimeout)
		}
		resp, err := fn(cctx)
		cancel()

		if resp != nil && resp.Response != nil {
			f.gov.UpdateFromResponse(resp.Response)
		}
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		switch Classify(resp, err) {
		case ClassPermanent:
			return &PermanentError{Status: statusOf(resp, err), Err: err}
		case ClassRateLimited:
			// The Governor owns the wait. Only pad with a base delay when the
			// service gave no quota signal at all, to avoid a hot loop.
			if f.gov.WaitHint() == 0 {
				if serr := f.sleep(ctx, f.policy.BaseDelay); serr != nil {
					return serr
				}
			}
		default:
			attempt++
			if attempt >= f.policy.MaxAttempts {
				return &ExhaustedError{Attempts: attempt, Err: err}
			}
			if serr := f.sleep(ctx, f.policy.Backoff(attempt-1)); serr != nil {
				return serr
			}
		}
	}
}

func statusOf(resp *github.Response, err error) int {
	if resp != nil && resp.Response != nil {
		return resp.StatusCode
	}
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		return ghErr.Response.StatusCode
	}
	return 0
}

// tolerateNotFound converts a permanent 404 into success. Used for optional
// snapshot sections where an absent path is a valid answer, not a failure.
func tolerateNotFound(err error) error {
	var perm *PermanentError
	if errors.As(err, &perm) && (perm.Status == 404 || perm.Status == 410) {
		return nil
	}
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
