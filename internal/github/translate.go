package github

import (
	"time"

	"github.com/google/go-github/v62/github"

	"github-activity-extractor/internal/model"
)

// toInternalRepository translates a github.Repository object to our internal model.Repository.
func toInternalRepository(r *github.Repository) *model.Repository {
	return &model.Repository{
		Owner:    r.GetOwner().GetLogin(),
		Name:     r.GetName(),
		FullName: r.GetFullName(),
	}
}

// toInternalCommit translates a github.RepositoryCommit object to our internal model.Commit.
func toInternalCommit(c *github.RepositoryCommit) model.Commit {
	git := c.GetCommit()
	return model.Commit{
		SHA:           c.GetSHA(),
		Author:        resolveIdentity(c.GetAuthor(), git.GetAuthor()),
		AuthorDate:    git.GetAuthor().GetDate().Time,
		Committer:     resolveIdentity(c.GetCommitter(), git.GetCommitter()),
		CommitterDate: git.GetCommitter().GetDate().Time,
	}
}

// resolveIdentity prefers the linked account's login and falls back to the git signature.
func resolveIdentity(account *github.User, sig *github.CommitAuthor) model.Identity {
	if login := account.GetLogin(); login != "" {
		return model.Handle{Login: login}
	}
	if sig.GetName() != "" || sig.GetEmail() != "" {
		return model.Signature{Name: sig.GetName(), Email: sig.GetEmail()}
	}
	return nil
}

// toInternalIssue translates a github.Issue. Closure fields are dropped unless the issue is closed.
func toInternalIssue(i *github.Issue) model.Issue {
	issue := model.Issue{
		Number:    i.GetNumber(),
		CreatedBy: i.GetUser().GetLogin(),
		CreatedAt: i.GetCreatedAt().Time,
		State:     i.GetState(),
		Comments:  i.GetComments(),
	}
	if issue.State == "closed" {
		issue.ClosedBy = login(i.ClosedBy)
		issue.ClosedAt = timestamp(i.ClosedAt)
	}
	return issue
}

// toInternalPullRequest translates a github.PullRequest. The merge time is kept only
// together with the merger.
func toInternalPullRequest(p *github.PullRequest) model.PullRequest {
	pull := model.PullRequest{
		Number:    p.GetNumber(),
		CreatedBy: p.GetUser().GetLogin(),
		CreatedAt: p.GetCreatedAt().Time,
		State:     p.GetState(),
		Commits:   p.GetCommits(),
	}
	if mergedBy := login(p.MergedBy); mergedBy != nil {
		pull.MergedBy = mergedBy
		pull.MergedAt = timestamp(p.MergedAt)
	}
	return pull
}

func toInternalComment(issueNumber int, c *github.IssueComment) model.Comment {
	return model.Comment{
		ID:          c.GetID(),
		IssueNumber: issueNumber,
		CreatedBy:   c.GetUser().GetLogin(),
		CreatedAt:   c.GetCreatedAt().Time,
	}
}

func login(u *github.User) *string {
	if u.GetLogin() == "" {
		return nil
	}
	l := u.GetLogin()
	return &l
}

func timestamp(ts *github.Timestamp) *time.Time {
	if ts == nil || ts.IsZero() {
		return nil
	}
	t := ts.Time
	return &t
}
