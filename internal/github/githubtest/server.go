// Package githubtest provides an in-memory GitHub REST API for tests.
package githubtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/go-github/v62/github"
)

// apiPrefix is where go-github's WithEnterpriseURLs places the REST API.
const apiPrefix = "/api/v3"

const defaultPerPage = 30

// Server serves a single repository's commits, issues, pull requests and comments.
// Issues and pull requests are stored in their full form; list endpoints strip the
// fields the real API omits from list payloads.
type Server struct {
	*httptest.Server

	Repo     *github.Repository
	Commits  []*github.RepositoryCommit
	Issues   []*github.Issue
	Pulls    []*github.PullRequest
	Comments map[int][]*github.IssueComment

	// RateLimit is reported in the X-RateLimit-* headers of every response.
	RateLimit github.Rate

	mu       sync.Mutex
	requests []string
	failures map[string]failure
}

type failure struct {
	status int
	body   string
}

// NewServer starts a server for owner/name. Callers must Close it.
func NewServer(owner, name string) *Server {
	s := &Server{
		Repo: &github.Repository{
			ID:            github.Int64(1),
			Name:          github.String(name),
			FullName:      github.String(owner + "/" + name),
			Owner:         &github.User{Login: github.String(owner)},
			DefaultBranch: github.String("main"),
		},
		Comments: make(map[int][]*github.IssueComment),
		RateLimit: github.Rate{
			Limit:     5000,
			Remaining: 5000,
			Reset:     github.Timestamp{Time: time.Now().Add(time.Hour).Truncate(time.Second)},
		},
		failures: make(map[string]failure),
	}

	api := chi.NewRouter()
	api.Get("/rate_limit", s.getRateLimit)
	api.Group(func(r chi.Router) {
		r.Use(s.repoOnly)
		r.Get("/repos/{owner}/{name}", s.getRepo)
		r.Get("/repos/{owner}/{name}/commits", s.listCommits)
		r.Get("/repos/{owner}/{name}/issues", s.listIssues)
		r.Get("/repos/{owner}/{name}/issues/{number}", s.getIssue)
		r.Get("/repos/{owner}/{name}/issues/{number}/comments", s.listComments)
		r.Get("/repos/{owner}/{name}/pulls", s.listPulls)
		r.Get("/repos/{owner}/{name}/pulls/{number}", s.getPull)
	})

	root := chi.NewRouter()
	root.Use(s.record)
	root.Mount(apiPrefix, api)

	s.Server = httptest.NewServer(root)
	return s
}

// FailWith makes every request to path (relative to the API root, e.g.
// "/repos/o/r/pulls") answer with status and a JSON message.
func (s *Server) FailWith(path string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[apiPrefix+path] = failure{status: status, body: fmt.Sprintf(`{"message": %q}`, message)}
}

// ExhaustQuota makes every following response report zero remaining requests.
func (s *Server) ExhaustQuota() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.RateLimit.Remaining = 0
}

// Requests returns the API paths requested so far, in order.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.requests))
	copy(out, s.requests)
	return out
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, strings.TrimPrefix(r.URL.Path, apiPrefix))
		f, failing := s.failures[r.URL.Path]
		if s.RateLimit.Remaining > 0 && r.URL.Path != apiPrefix+"/rate_limit" {
			s.RateLimit.Remaining--
		}
		rl := s.RateLimit
		s.mu.Unlock()

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(rl.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(rl.Reset.Unix(), 10))

		if failing {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(f.status)
			_, _ = w.Write([]byte(f.body))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) repoOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "owner") != s.Repo.GetOwner().GetLogin() || chi.URLParam(r, "name") != s.Repo.GetName() {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) getRateLimit(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	rl := s.RateLimit
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"resources": map[string]any{
			"core": map[string]any{
				"limit":     rl.Limit,
				"remaining": rl.Remaining,
				"reset":     rl.Reset.Unix(),
			},
		},
	})
}

func (s *Server) getRepo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.Repo)
}

func (s *Server) listCommits(w http.ResponseWriter, r *http.Request) {
	paginate(w, r, s.Commits)
}

func (s *Server) listIssues(w http.ResponseWriter, r *http.Request) {
	summaries := make([]*github.Issue, len(s.Issues))
	for i, issue := range s.Issues {
		summary := *issue
		summary.ClosedBy = nil
		summaries[i] = &summary
	}
	paginate(w, r, summaries)
}

func (s *Server) getIssue(w http.ResponseWriter, r *http.Request) {
	number, _ := strconv.Atoi(chi.URLParam(r, "number"))
	for _, issue := range s.Issues {
		if issue.GetNumber() == number {
			writeJSON(w, http.StatusOK, issue)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
}

func (s *Server) listComments(w http.ResponseWriter, r *http.Request) {
	number, _ := strconv.Atoi(chi.URLParam(r, "number"))
	paginate(w, r, s.Comments[number])
}

func (s *Server) listPulls(w http.ResponseWriter, r *http.Request) {
	summaries := make([]*github.PullRequest, len(s.Pulls))
	for i, pull := range s.Pulls {
		summary := *pull
		summary.Commits = nil
		summary.MergedBy = nil
		summaries[i] = &summary
	}
	paginate(w, r, summaries)
}

func (s *Server) getPull(w http.ResponseWriter, r *http.Request) {
	number, _ := strconv.Atoi(chi.URLParam(r, "number"))
	for _, pull := range s.Pulls {
		if pull.GetNumber() == number {
			writeJSON(w, http.StatusOK, pull)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
}

// paginate writes one page of items and a Link header pointing at the next page.
func paginate[T any](w http.ResponseWriter, r *http.Request, items []T) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	perPage, err := strconv.Atoi(r.URL.Query().Get("per_page"))
	if err != nil || perPage < 1 {
		perPage = defaultPerPage
	}

	start := min((page-1)*perPage, len(items))
	end := min(start+perPage, len(items))

	if end < len(items) {
		next := url.URL{Scheme: "http", Host: r.Host, Path: r.URL.Path}
		q := r.URL.Query()
		q.Set("page", strconv.Itoa(page+1))
		next.RawQuery = q.Encode()
		w.Header().Set("Link", fmt.Sprintf(`<%s>; rel="next"`, next.String()))
	}

	writeJSON(w, http.StatusOK, items[start:end])
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
