// internal/extractor/extractor.go
package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github-activity-extractor/internal/csvfile"
	custom_errors "github-activity-extractor/internal/errors"
	"github-activity-extractor/internal/model"
)

const (
	// Rows between informational progress messages.
	progressInterval = 100

	CommitsFile  = "commits.csv"
	IssuesFile   = "issues.csv"
	PullsFile    = "pulls.csv"
	CommentsFile = "comments.csv"
)

// Source supplies the paginated sequences an extraction consumes.
type Source interface {
	WalkCommits(ctx context.Context, repo model.RepoRef, fn func(model.Commit) error) error
	WalkIssues(ctx context.Context, repo model.RepoRef, fn func(model.Issue) error) error
	ListIssues(ctx context.Context, repo model.RepoRef, fn func(model.Issue) error) error
	WalkPullRequests(ctx context.Context, repo model.RepoRef, fn func(model.PullRequest) error) error
	WalkIssueComments(ctx context.Context, repo model.RepoRef, number int, fn func(model.Comment) error) error
	Quota() model.Quota
}

// Extractor writes a repository's commits, issues, pull requests and issue
// comments to one CSV file each. It is not safe for concurrent use.
type Extractor struct {
	source Source
	logger *slog.Logger

	// issues holds what the issues pass fetched for issuesRepo.
	issues     []model.Issue
	issuesRepo *model.RepoRef
}

// New creates a new Extractor instance.
func New(source Source, logger *slog.Logger) *Extractor {
	return &Extractor{
		source: source,
		logger: logger,
	}
}

// OutputDir returns the directory the files of repo are written to.
func OutputDir(base string, repo *model.Repository) string {
	return filepath.Join(base, repo.Name)
}

// Run creates the output directory and executes the commits, issues, pulls and
// comments passes in that order. The first failing pass aborts the run; files
// written by earlier passes are kept.
func (e *Extractor) Run(ctx context.Context, repo *model.Repository, baseDir string) error {
	dir := OutputDir(baseDir, repo)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	ref := repo.Ref()
	logger := e.logger.With("owner", ref.Owner, "repo", ref.Name)
	logger.Info("Extracting repository", "dir", dir)

	passes := []struct {
		name string
		run  func(context.Context, model.RepoRef, string) error
		file string
	}{
		{"commits", e.Commits, CommitsFile},
		{"issues", e.Issues, IssuesFile},
		{"pulls", e.PullRequests, PullsFile},
		{"comments", e.Comments, CommentsFile},
	}

	for _, p := range passes {
		if err := p.run(ctx, ref, filepath.Join(dir, p.file)); err != nil {
			return fmt.Errorf("%s pass: %w", p.name, err)
		}
	}

	logger.Info("Extraction finished")
	return nil
}

// Commits writes the commits of repo to path unless path already exists.
func (e *Extractor) Commits(ctx context.Context, repo model.RepoRef, path string) error {
	return e.pass(ctx, "commits", path, commitHeader, func(emit func([]string)) error {
		return e.source.WalkCommits(ctx, repo, func(c model.Commit) error {
			emit(commitRow(c))
			return nil
		})
	})
}

// Issues writes the issues of repo to path unless path already exists.
func (e *Extractor) Issues(ctx context.Context, repo model.RepoRef, path string) error {
	return e.pass(ctx, "issues", path, issueHeader, func(emit func([]string)) error {
		issues, err := collectIssues(ctx, repo, e.source.WalkIssues)
		if err != nil {
			return err
		}
		e.issues, e.issuesRepo = issues, &repo
		for _, issue := range issues {
			emit(issueRow(issue))
		}
		return nil
	})
}

// PullRequests writes the pull requests of repo to path unless path already exists.
func (e *Extractor) PullRequests(ctx context.Context, repo model.RepoRef, path string) error {
	return e.pass(ctx, "pulls", path, pullHeader, func(emit func([]string)) error {
		return e.source.WalkPullRequests(ctx, repo, func(p model.PullRequest) error {
			emit(pullRow(p))
			return nil
		})
	})
}

// Comments writes the comments of every issue of repo to path unless path
// already exists. Rows are grouped by issue in issue order.
func (e *Extractor) Comments(ctx context.Context, repo model.RepoRef, path string) error {
	return e.pass(ctx, "comments", path, commentHeader, func(emit func([]string)) error {
		issues, err := e.cachedIssues(ctx, repo)
		if err != nil {
			return err
		}
		for _, issue := range issues {
			if err := ctx.Err(); err != nil {
				return err
			}
			if issue.Comments == 0 {
				continue
			}
			err := e.source.WalkIssueComments(ctx, repo, issue.Number, func(c model.Comment) error {
				emit(commentRow(c))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func collectIssues(ctx context.Context, repo model.RepoRef, walk func(context.Context, model.RepoRef, func(model.Issue) error) error) ([]model.Issue, error) {
	var issues []model.Issue
	err := walk(ctx, repo, func(i model.Issue) error {
		issues = append(issues, i)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return issues, nil
}

// cachedIssues returns the issues of the issues pass, or lists them when that
// pass was skipped. Listing does not load the closer of closed issues.
func (e *Extractor) cachedIssues(ctx context.Context, repo model.RepoRef) ([]model.Issue, error) {
	if e.issuesRepo != nil && *e.issuesRepo == repo {
		e.logger.Debug("Reusing issues from the issues pass", "count", len(e.issues))
		return e.issues, nil
	}
	return collectIssues(ctx, repo, e.source.ListIssues)
}

// pass runs one extraction: it skips when path exists, otherwise collects all
// rows and writes them in a single step.
func (e *Extractor) pass(ctx context.Context, name, path string, header []string, collect func(emit func([]string)) error) error {
	logger := e.logger.With("pass", name, "path", path)

	exists, err := csvfile.Exists(path)
	if err != nil {
		return err
	}
	if exists {
		logger.Info("Skipping pass, output already exists")
		return nil
	}

	logger.Info("Starting pass")
	started := time.Now()

	var rows [][]string
	err = collect(func(row []string) {
		rows = append(rows, row)
		logger.Debug("Extracted row", "row", row)
		if len(rows)%progressInterval == 0 {
			logger.Info("Extraction progress", "rows", len(rows))
		}
	})
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := csvfile.WriteFile(path, header, rows); err != nil {
		return err
	}
	logger.Info("Pass finished", "rows", len(rows), "elapsed", time.Since(started).Round(time.Millisecond).String())

	e.logQuota(logger)
	return nil
}

func (e *Extractor) logQuota(logger *slog.Logger) {
	q := e.source.Quota()
	if q.Limit == 0 {
		return
	}
	logger.Info("Remaining API quota",
		"remaining", q.Remaining,
		"limit", q.Limit,
		"reset_at", q.Reset.Local().Format(time.DateTime),
		"resets", humanize.Time(q.Reset),
	)
}

// ParseRepoRef parses an 'owner/name' repository identifier.
func ParseRepoRef(s string) (model.RepoRef, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return model.RepoRef{}, &custom_errors.ErrInvalidRepoFormat{Repo: s}
	}
	return model.RepoRef{Owner: parts[0], Name: parts[1]}, nil
}
