package extractor

import (
	"strconv"
	"time"

	"github-activity-extractor/internal/model"
)

// timeLayout matches the "YYYY-MM-DD HH:MM:SS+00:00" form used by existing datasets.
const timeLayout = "2006-01-02 15:04:05-07:00"

var (
	commitHeader  = []string{"sha", "author", "author_date", "committer", "committer_date"}
	issueHeader   = []string{"number", "created_by", "created_at", "state", "closed_by", "closed_at"}
	pullHeader    = []string{"number", "created_by", "created_at", "state", "commits", "merged_by", "merged_at"}
	commentHeader = []string{"id", "issue_number", "created_by", "created_at"}
)

func commitRow(c model.Commit) []string {
	return []string{
		c.SHA,
		identity(c.Author),
		formatTime(c.AuthorDate),
		identity(c.Committer),
		formatTime(c.CommitterDate),
	}
}

func issueRow(i model.Issue) []string {
	return []string{
		strconv.Itoa(i.Number),
		i.CreatedBy,
		formatTime(i.CreatedAt),
		i.State,
		optional(i.ClosedBy),
		optionalTime(i.ClosedAt),
	}
}

func pullRow(p model.PullRequest) []string {
	return []string{
		strconv.Itoa(p.Number),
		p.CreatedBy,
		formatTime(p.CreatedAt),
		p.State,
		strconv.Itoa(p.Commits),
		optional(p.MergedBy),
		optionalTime(p.MergedAt),
	}
}

func commentRow(c model.Comment) []string {
	return []string{
		strconv.FormatInt(c.ID, 10),
		strconv.Itoa(c.IssueNumber),
		c.CreatedBy,
		formatTime(c.CreatedAt),
	}
}

func identity(id model.Identity) string {
	s, _ := model.ResolveIdentity(id)
	return s
}

// optional and optionalTime write null values as empty fields.
func optional(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}
