package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	gh "repoharvest/internal/github"
	"repoharvest/internal/key"
)

type fakeAPI struct {
	t      *testing.T
	mux    *http.ServeMux
	server *httptest.Server
	f      *Fetcher

	mu     sync.Mutex
	sleeps []time.Duration
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()

	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client, err := gh.NewClient(context.Background(), "dummy")
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	base, _ := url.Parse(server.URL + "/")
	client.Client.BaseURL = base
	client.Client.UploadURL = base

	gov := NewGovernor()
	f, err := NewFetcher(client, gov, Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewFetcher failed: %v", err)
	}

	fa := &fakeAPI{t: t, mux: mux, server: server, f: f}
	f.sleep = func(ctx context.Context, d time.Duration) error {
		fa.mu.Lock()
		fa.sleeps = append(fa.sleeps, d)
		fa.mu.Unlock()
		return ctx.Err()
	}
	return fa
}

func (fa *fakeAPI) sleepCount() int {
	fa.mu.Lock()
	defer fa.mu.Unlock()
	return len(fa.sleeps)
}

func ok(w http.ResponseWriter, body string) {
	w.Header().Set("X-RateLimit-Remaining", "4000")
	w.Header().Set("X-RateLimit-Reset", fmt.Sprint(time.Now().Add(time.Hour).Unix()))
	fmt.Fprint(w, body)
}

func testKey() key.Key {
	return key.Key{Service: "github.com", Owner: "acme", Name: "widgets"}
}

func TestFetcherSnapshot(t *testing.T) {
	fa := newFakeAPI(t)

	fa.mux.HandleFunc("/repos/acme/widgets", func(w http.ResponseWriter, r *http.Request) {
		ok(w, `{"id":1,"name":"widgets","language":"Python","stargazers_count":7,"license":{"spdx_id":"MIT"}}`)
	})
	fa.mux.HandleFunc("/repos/acme/widgets/contents/", func(w http.ResponseWriter, r *http.Request) {
		ok(w, `[{"name":"README.md","type":"file"},{"name":"tests","type":"dir"},{"name":"setup.py","type":"file"}]`)
	})
	fa.mux.HandleFunc("/repos/acme/widgets/contents/.github/workflows", func(w http.ResponseWriter, r *http.Request) {
		ok(w, `[{"name":"ci.yml","type":"file"}]`)
	})
	fa.mux.HandleFunc("/repos/acme/widgets/contents/.github", func(w http.ResponseWriter, r *http.Request) {
		ok(w, `[{"name":"CONTRIBUTING.md","type":"file"},{"name":"workflows","type":"dir"}]`)
	})
	fa.mux.HandleFunc("/repos/acme/widgets/contributors", func(w http.ResponseWriter, r *http.Request) {
		ok(w, `[{"login":"a","contributions":3},{"login":"b","contributions":1}]`)
	})
	fa.mux.HandleFunc("/repos/acme/widgets/releases", func(w http.ResponseWriter, r *http.Request) {
		ok(w, `[{"id":1,"assets":[{"download_count":10},{"download_count":5}]}]`)
	})

	s, err := fa.f.Snapshot(context.Background(), testKey())
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if s.Repo.GetLanguage() != "Python" || s.Repo.GetStargazersCount() != 7 {
		t.Fatalf("unexpected repo metadata: %+v", s.Repo)
	}
	if !s.RootFile("README.md") || !s.RootDir("tests") || !s.RootFile("setup.py") {
		t.Fatalf("root listing not captured: %+v", s.Root)
	}
	if len(s.Workflows) != 1 || s.Workflows[0] != "ci.yml" {
		t.Fatalf("unexpected workflows: %v", s.Workflows)
	}
	if !s.CommunityFile("CONTRIBUTING.md") {
		t.Fatalf(".github listing not captured: %+v", s.Community)
	}
	if s.Contributors != 2 {
		t.Fatalf("expected 2 contributors, got %d", s.Contributors)
	}
	if s.Downloads != 15 {
		t.Fatalf("expected 15 downloads, got %d", s.Downloads)
	}
	if s.FetchedAt.IsZero() {
		t.Fatal("FetchedAt not stamped")
	}
}

func TestFetcherMissingOptionalSections(t *testing.T) {
	fa := newFakeAPI(t)

	fa.mux.HandleFunc("/repos/acme/widgets", func(w http.ResponseWriter, r *http.Request) {
		ok(w, `{"id":1,"name":"widgets"}`)
	})
	// Everything else 404s: empty repo, no workflows dir, no releases.
	fa.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "3999")
		w.WriteHeader(404)
		fmt.Fprint(w, `{"message":"Not Found"}`)
	})

	s, err := fa.f.Snapshot(context.Background(), testKey())
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if s.RootErr != nil || s.WorkflowsErr != nil || s.CommunityErr != nil || s.ContributorsErr != nil || s.DownloadsErr != nil {
		t.Fatalf("404 sections must be tolerated: %+v", s)
	}
	if len(s.Root) != 0 || len(s.Workflows) != 0 || len(s.Community) != 0 || s.Contributors != 0 || s.Downloads != 0 {
		t.Fatalf("expected empty sections, got %+v", s)
	}
	if fa.sleepCount() != 0 {
		t.Fatalf("404s must not trigger backoff sleeps, got %d", fa.sleepCount())
	}
}

func TestFetcherPermanentFailure(t *testing.T) {
	fa := newFakeAPI(t)

	calls := 0
	fa.mux.HandleFunc("/repos/acme/widgets", func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("X-RateLimit-Remaining", "3999")
		w.WriteHeader(404)
		fmt.Fprint(w, `{"message":"Not Found"}`)
	})

	_, err := fa.f.Snapshot(context.Background(), testKey())
	var perm *PermanentError
	if !errors.As(err, &perm) {
		t.Fatalf("expected PermanentError, got %v", err)
	}
	if perm.Status != 404 {
		t.Fatalf("expected status 404, got %d", perm.Status)
	}
	if calls != 1 {
		t.Fatalf("permanent failure must not be retried: %d calls", calls)
	}
	if fa.sleepCount() != 0 {
		t.Fatalf("permanent failure must not sleep: %d sleeps", fa.sleepCount())
	}
}

func TestFetcherRateLimitedThenSuccess(t *testing.T) {
	fa := newFakeAPI(t)

	calls := 0
	fa.mux.HandleFunc("/repos/acme/widgets", func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls <= 2 {
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.Header().Set("X-RateLimit-Reset", fmt.Sprint(time.Now().Add(time.Hour).Unix()))
			w.WriteHeader(403)
			fmt.Fprint(w, `{"message":"API rate limit exceeded"}`)
			return
		}
		ok(w, `{"id":1,"name":"widgets"}`)
	})
	fa.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(404)
		fmt.Fprint(w, `{"message":"Not Found"}`)
	})

	// Unblock the governor's reset wait the moment it starts: with quota
	// headers observed and remaining=0 the fetcher parks on Acquire, so a
	// synthetic refresh stands in for the real reset.
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(5 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				resp := &http.Response{Header: make(http.Header)}
				resp.Header.Set("X-RateLimit-Remaining", "100")
				fa.f.gov.UpdateFromResponse(resp)
			}
		}
	}()

	s, err := fa.f.Snapshot(context.Background(), testKey())
	if err != nil {
		t.Fatalf("Snapshot failed after rate limiting: %v", err)
	}
	if s.Repo.GetName() != "widgets" {
		t.Fatalf("unexpected repo: %+v", s.Repo)
	}
	if calls != 3 {
		t.Fatalf("expected exactly 3 metadata calls (2 limited + 1 ok), got %d", calls)
	}
}

func TestFetcherTransientExhaustion(t *testing.T) {
	fa := newFakeAPI(t)

	calls := 0
	fa.mux.HandleFunc("/repos/acme/widgets", func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("X-RateLimit-Remaining", "3999")
		w.WriteHeader(502)
		fmt.Fprint(w, `{"message":"bad gateway"}`)
	})

	_, err := fa.f.Snapshot(context.Background(), testKey())
	var exh *ExhaustedError
	if !errors.As(err, &exh) {
		t.Fatalf("expected ExhaustedError, got %v", err)
	}
	if exh.Attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", exh.Attempts)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
	if fa.sleepCount() != 2 {
		t.Fatalf("expected 2 backoff sleeps, got %d", fa.sleepCount())
	}
}

func TestFetcherSingleflight(t *testing.T) {
	fa := newFakeAPI(t)

	var mu sync.Mutex
	metaCalls := 0
	release := make(chan struct{})
	fa.mux.HandleFunc("/repos/acme/widgets", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		metaCalls++
		mu.Unlock()
		<-release
		ok(w, `{"id":1,"name":"widgets"}`)
	})
	fa.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(404)
		fmt.Fprint(w, `{"message":"Not Found"}`)
	})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = fa.f.Snapshot(context.Background(), testKey())
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("Snapshot %d failed: %v", i, err)
		}
	}
	if metaCalls != 1 {
		t.Fatalf("expected concurrent fetches for one key to be deduplicated, got %d metadata calls", metaCalls)
	}
}
