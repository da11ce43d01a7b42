// internal/extractor/extractor_test.go
package extractor

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	custom_errors "github-activity-extractor/internal/errors"
	"github-activity-extractor/internal/model"
)

// MockSource is a mock of the Source interface. Each walk returns the items
// configured for it and then the configured error.
type MockSource struct {
	mock.Mock
}

func (m *MockSource) WalkCommits(ctx context.Context, repo model.RepoRef, fn func(model.Commit) error) error {
	args := m.Called(ctx, repo)
	for _, c := range args.Get(0).([]model.Commit) {
		if err := fn(c); err != nil {
			return err
		}
	}
	return args.Error(1)
}

func (m *MockSource) WalkIssues(ctx context.Context, repo model.RepoRef, fn func(model.Issue) error) error {
	args := m.Called(ctx, repo)
	for _, i := range args.Get(0).([]model.Issue) {
		if err := fn(i); err != nil {
			return err
		}
	}
	return args.Error(1)
}

func (m *MockSource) ListIssues(ctx context.Context, repo model.RepoRef, fn func(model.Issue) error) error {
	args := m.Called(ctx, repo)
	for _, i := range args.Get(0).([]model.Issue) {
		if err := fn(i); err != nil {
			return err
		}
	}
	return args.Error(1)
}

func (m *MockSource) WalkPullRequests(ctx context.Context, repo model.RepoRef, fn func(model.PullRequest) error) error {
	args := m.Called(ctx, repo)
	for _, p := range args.Get(0).([]model.PullRequest) {
		if err := fn(p); err != nil {
			return err
		}
	}
	return args.Error(1)
}

func (m *MockSource) WalkIssueComments(ctx context.Context, repo model.RepoRef, number int, fn func(model.Comment) error) error {
	args := m.Called(ctx, repo, number)
	for _, c := range args.Get(0).([]model.Comment) {
		if err := fn(c); err != nil {
			return err
		}
	}
	return args.Error(1)
}

func (m *MockSource) Quota() model.Quota {
	args := m.Called()
	return args.Get(0).(model.Quota)
}

var (
	ref    = model.RepoRef{Owner: "test-owner", Name: "test-repo"}
	ghRepo = &model.Repository{Owner: "test-owner", Name: "test-repo", FullName: "test-owner/test-repo"}
	t0     = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
)

func newTestExtractor(src Source) *Extractor {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return New(src, logger)
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func allowQuota(m *MockSource) {
	m.On("Quota").Return(model.Quota{Limit: 5000, Remaining: 4000, Reset: t0.Add(time.Hour)}).Maybe()
}

func TestExtractor_Commits_IdentityResolution(t *testing.T) {
	src := new(MockSource)
	allowQuota(src)
	src.On("WalkCommits", mock.Anything, ref).Return([]model.Commit{
		{
			SHA:           "c3",
			Author:        model.Handle{Login: "alice"},
			AuthorDate:    t0.Add(2 * time.Hour),
			Committer:     model.Handle{Login: "web-flow"},
			CommitterDate: t0.Add(2 * time.Hour),
		},
		{
			SHA:           "c2",
			Author:        model.Signature{Name: "Bob Smith", Email: "bob@example.com"},
			AuthorDate:    t0.Add(time.Hour),
			Committer:     model.Handle{Login: "alice"},
			CommitterDate: t0.Add(time.Hour),
		},
		{
			SHA:           "c1",
			AuthorDate:    t0,
			CommitterDate: t0,
		},
	}, nil).Once()

	path := filepath.Join(t.TempDir(), CommitsFile)
	err := newTestExtractor(src).Commits(context.Background(), ref, path)

	require.NoError(t, err)
	assert.Equal(t,
		`"sha","author","author_date","committer","committer_date"`+"\n"+
			`"c3","alice","2024-01-01 14:00:00+00:00","web-flow","2024-01-01 14:00:00+00:00"`+"\n"+
			`"c2","Bob Smith <bob@example.com>","2024-01-01 13:00:00+00:00","alice","2024-01-01 13:00:00+00:00"`+"\n"+
			`"c1","","2024-01-01 12:00:00+00:00","","2024-01-01 12:00:00+00:00"`+"\n",
		readFile(t, path))
	src.AssertExpectations(t)
}

func TestExtractor_Issues_ClosedFields(t *testing.T) {
	src := new(MockSource)
	allowQuota(src)
	src.On("WalkIssues", mock.Anything, ref).Return([]model.Issue{
		{Number: 3, CreatedBy: "carol", CreatedAt: t0, State: "open"},
		{Number: 2, CreatedBy: "dave", CreatedAt: t0, State: "closed", ClosedBy: strPtr("erin"), ClosedAt: timePtr(t0.Add(time.Hour))},
		{Number: 1, CreatedBy: "dave", CreatedAt: t0, State: "closed", ClosedAt: timePtr(t0.Add(time.Hour))},
	}, nil).Once()

	path := filepath.Join(t.TempDir(), IssuesFile)
	err := newTestExtractor(src).Issues(context.Background(), ref, path)

	require.NoError(t, err)
	assert.Equal(t,
		`"number","created_by","created_at","state","closed_by","closed_at"`+"\n"+
			`"3","carol","2024-01-01 12:00:00+00:00","open","",""`+"\n"+
			`"2","dave","2024-01-01 12:00:00+00:00","closed","erin","2024-01-01 13:00:00+00:00"`+"\n"+
			`"1","dave","2024-01-01 12:00:00+00:00","closed","","2024-01-01 13:00:00+00:00"`+"\n",
		readFile(t, path))
}

func TestExtractor_PullRequests_MergedFields(t *testing.T) {
	src := new(MockSource)
	allowQuota(src)
	src.On("WalkPullRequests", mock.Anything, ref).Return([]model.PullRequest{
		{Number: 9, CreatedBy: "frank", CreatedAt: t0, State: "closed", Commits: 4, MergedBy: strPtr("grace"), MergedAt: timePtr(t0.Add(time.Hour))},
		{Number: 8, CreatedBy: "heidi", CreatedAt: t0, State: "closed", Commits: 1},
		{Number: 7, CreatedBy: "heidi", CreatedAt: t0, State: "open", Commits: 2},
	}, nil).Once()

	path := filepath.Join(t.TempDir(), PullsFile)
	err := newTestExtractor(src).PullRequests(context.Background(), ref, path)

	require.NoError(t, err)
	assert.Equal(t,
		`"number","created_by","created_at","state","commits","merged_by","merged_at"`+"\n"+
			`"9","frank","2024-01-01 12:00:00+00:00","closed","4","grace","2024-01-01 13:00:00+00:00"`+"\n"+
			`"8","heidi","2024-01-01 12:00:00+00:00","closed","1","",""`+"\n"+
			`"7","heidi","2024-01-01 12:00:00+00:00","open","2","",""`+"\n",
		readFile(t, path))
}

func TestExtractor_Comments_FanOut(t *testing.T) {
	src := new(MockSource)
	allowQuota(src)
	src.On("ListIssues", mock.Anything, ref).Return([]model.Issue{
		{Number: 1, CreatedBy: "a", CreatedAt: t0, State: "open", Comments: 3},
		{Number: 2, CreatedBy: "b", CreatedAt: t0, State: "open", Comments: 0},
	}, nil).Once()
	src.On("WalkIssueComments", mock.Anything, ref, 1).Return([]model.Comment{
		{ID: 10, IssueNumber: 1, CreatedBy: "x", CreatedAt: t0},
		{ID: 11, IssueNumber: 1, CreatedBy: "y", CreatedAt: t0.Add(time.Minute)},
		{ID: 12, IssueNumber: 1, CreatedBy: "x", CreatedAt: t0.Add(2 * time.Minute)},
	}, nil).Once()

	path := filepath.Join(t.TempDir(), CommentsFile)
	err := newTestExtractor(src).Comments(context.Background(), ref, path)

	require.NoError(t, err)
	assert.Equal(t,
		`"id","issue_number","created_by","created_at"`+"\n"+
			`"10","1","x","2024-01-01 12:00:00+00:00"`+"\n"+
			`"11","1","y","2024-01-01 12:01:00+00:00"`+"\n"+
			`"12","1","x","2024-01-01 12:02:00+00:00"`+"\n",
		readFile(t, path))
	src.AssertExpectations(t)
	src.AssertNotCalled(t, "WalkIssueComments", mock.Anything, ref, 2)
}

func TestExtractor_Comments_GroupedByIssueOrder(t *testing.T) {
	src := new(MockSource)
	allowQuota(src)
	src.On("ListIssues", mock.Anything, ref).Return([]model.Issue{
		{Number: 5, Comments: 1},
		{Number: 3, Comments: 2},
	}, nil).Once()
	src.On("WalkIssueComments", mock.Anything, ref, 5).Return([]model.Comment{
		{ID: 50, IssueNumber: 5, CreatedBy: "a", CreatedAt: t0},
	}, nil).Once()
	src.On("WalkIssueComments", mock.Anything, ref, 3).Return([]model.Comment{
		{ID: 31, IssueNumber: 3, CreatedBy: "b", CreatedAt: t0},
		{ID: 30, IssueNumber: 3, CreatedBy: "c", CreatedAt: t0},
	}, nil).Once()

	path := filepath.Join(t.TempDir(), CommentsFile)
	require.NoError(t, newTestExtractor(src).Comments(context.Background(), ref, path))

	assert.Equal(t,
		`"id","issue_number","created_by","created_at"`+"\n"+
			`"50","5","a","2024-01-01 12:00:00+00:00"`+"\n"+
			`"31","3","b","2024-01-01 12:00:00+00:00"`+"\n"+
			`"30","3","c","2024-01-01 12:00:00+00:00"`+"\n",
		readFile(t, path))
}

func TestExtractor_Comments_ListingIsNotReused(t *testing.T) {
	src := new(MockSource)
	allowQuota(src)
	src.On("ListIssues", mock.Anything, ref).Return([]model.Issue{{Number: 1, Comments: 0}}, nil).Twice()

	e := newTestExtractor(src)
	dir := t.TempDir()
	require.NoError(t, e.Comments(context.Background(), ref, filepath.Join(dir, "a.csv")))
	require.NoError(t, e.Comments(context.Background(), ref, filepath.Join(dir, "b.csv")))

	src.AssertExpectations(t)
	assert.Nil(t, e.issuesRepo, "only the issues pass fills the cache")
}

func TestExtractor_Run(t *testing.T) {
	t.Run("skips every pass when all files exist", func(t *testing.T) {
		base := t.TempDir()
		dir := OutputDir(base, ghRepo)
		require.NoError(t, os.MkdirAll(dir, 0o755))

		contents := map[string]string{
			CommitsFile:  "commits-sentinel",
			IssuesFile:   "issues-sentinel",
			PullsFile:    "",
			CommentsFile: "not even csv",
		}
		for name, body := range contents {
			require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
		}

		// No expectations: any call on the source fails the test.
		src := new(MockSource)
		err := newTestExtractor(src).Run(context.Background(), ghRepo, base)

		require.NoError(t, err)
		src.AssertExpectations(t)
		for name, body := range contents {
			assert.Equal(t, body, readFile(t, filepath.Join(dir, name)), name)
		}
	})

	t.Run("resumes after the commits pass", func(t *testing.T) {
		base := t.TempDir()
		dir := OutputDir(base, ghRepo)
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, CommitsFile), []byte("done"), 0o644))

		src := new(MockSource)
		allowQuota(src)
		src.On("WalkIssues", mock.Anything, ref).Return([]model.Issue{
			{Number: 1, CreatedBy: "a", CreatedAt: t0, State: "open", Comments: 1},
		}, nil).Once()
		src.On("WalkPullRequests", mock.Anything, ref).Return([]model.PullRequest{}, nil).Once()
		src.On("WalkIssueComments", mock.Anything, ref, 1).Return([]model.Comment{
			{ID: 7, IssueNumber: 1, CreatedBy: "b", CreatedAt: t0},
		}, nil).Once()

		err := newTestExtractor(src).Run(context.Background(), ghRepo, base)

		require.NoError(t, err)
		src.AssertExpectations(t)
		src.AssertNotCalled(t, "WalkCommits", mock.Anything, mock.Anything)

		assert.Equal(t, "done", readFile(t, filepath.Join(dir, CommitsFile)))
		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Len(t, entries, 4, "three new files next to the existing commits.csv")
		assert.Contains(t, readFile(t, filepath.Join(dir, CommentsFile)), `"7","1","b"`)
	})

	t.Run("a failing pass writes nothing and stops the run", func(t *testing.T) {
		base := t.TempDir()
		dir := OutputDir(base, ghRepo)
		rateErr := &custom_errors.RateLimitError{ResetAt: t0}

		src := new(MockSource)
		allowQuota(src)
		src.On("WalkCommits", mock.Anything, ref).Return([]model.Commit{{SHA: "c1"}}, nil).Once()
		src.On("WalkIssues", mock.Anything, ref).Return([]model.Issue{{Number: 1}}, nil).Once()
		src.On("WalkPullRequests", mock.Anything, ref).Return([]model.PullRequest{{Number: 1}}, rateErr).Once()

		err := newTestExtractor(src).Run(context.Background(), ghRepo, base)

		require.Error(t, err)
		assert.True(t, custom_errors.IsRateLimited(err))
		assert.Contains(t, err.Error(), "pulls pass")

		assert.FileExists(t, filepath.Join(dir, CommitsFile))
		assert.FileExists(t, filepath.Join(dir, IssuesFile))
		assert.NoFileExists(t, filepath.Join(dir, PullsFile))
		assert.NoFileExists(t, filepath.Join(dir, CommentsFile))
		src.AssertNotCalled(t, "WalkIssueComments", mock.Anything, mock.Anything, mock.Anything)

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Len(t, entries, 2, "no temporary files are left behind")
	})

	t.Run("comments pass fetches issues when the issues pass was skipped", func(t *testing.T) {
		base := t.TempDir()
		dir := OutputDir(base, ghRepo)
		require.NoError(t, os.MkdirAll(dir, 0o755))
		for _, name := range []string{CommitsFile, IssuesFile, PullsFile} {
			require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
		}

		src := new(MockSource)
		allowQuota(src)
		src.On("ListIssues", mock.Anything, ref).Return([]model.Issue{{Number: 4, Comments: 0}}, nil).Once()

		err := newTestExtractor(src).Run(context.Background(), ghRepo, base)

		require.NoError(t, err)
		src.AssertExpectations(t)
		src.AssertNotCalled(t, "WalkIssues", mock.Anything, mock.Anything)
		assert.Equal(t, `"id","issue_number","created_by","created_at"`+"\n", readFile(t, filepath.Join(dir, CommentsFile)))
	})

	t.Run("cancelled context writes nothing", func(t *testing.T) {
		base := t.TempDir()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		src := new(MockSource)
		src.On("WalkCommits", mock.Anything, ref).Return([]model.Commit{}, nil).Once()

		err := newTestExtractor(src).Run(ctx, ghRepo, base)

		assert.ErrorIs(t, err, context.Canceled)
		assert.NoFileExists(t, filepath.Join(OutputDir(base, ghRepo), CommitsFile))
	})
}

func TestParseRepoRef(t *testing.T) {
	tests := []struct {
		in      string
		want    model.RepoRef
		wantErr bool
	}{
		{in: "octo/hello", want: model.RepoRef{Owner: "octo", Name: "hello"}},
		{in: "hello", wantErr: true},
		{in: "octo/", wantErr: true},
		{in: "/hello", wantErr: true},
		{in: "a/b/c", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRepoRef(tt.in)
			if tt.wantErr {
				var formatErr *custom_errors.ErrInvalidRepoFormat
				assert.True(t, errors.As(err, &formatErr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
