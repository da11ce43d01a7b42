// internal/model/models.go
package model

import (
	"fmt"
	"time"
)

// RepoRef identifies a repository by owner and name.
type RepoRef struct {
	Owner string
	Name  string
}

func (r RepoRef) String() string {
	return r.Owner + "/" + r.Name
}

// Repository represents the metadata of a GitHub repository.
type Repository struct {
	Owner    string
	Name     string
	FullName string
}

// Ref returns the owner/name pair used to address the repository in API calls.
func (r *Repository) Ref() RepoRef {
	return RepoRef{Owner: r.Owner, Name: r.Name}
}

// Identity is the person behind a commit author or committer field.
// It is one of Handle or Signature; a nil Identity means no identity is known.
type Identity interface {
	identity()
}

// Handle is an identity linked to a registered platform account.
type Handle struct {
	Login string
}

// Signature is an identity known only from git metadata.
type Signature struct {
	Name  string
	Email string
}

func (Handle) identity()    {}
func (Signature) identity() {}

// ResolveIdentity returns the display value for id and false if id is absent.
func ResolveIdentity(id Identity) (string, bool) {
	switch v := id.(type) {
	case Handle:
		return v.Login, true
	case Signature:
		return fmt.Sprintf("%s <%s>", v.Name, v.Email), true
	default:
		return "", false
	}
}

type Commit struct {
	SHA           string
	Author        Identity
	AuthorDate    time.Time
	Committer     Identity
	CommitterDate time.Time
}

type Issue struct {
	Number    int
	CreatedBy string
	CreatedAt time.Time
	State     string
	ClosedBy  *string
	ClosedAt  *time.Time
	// Comments is the number of comments reported by the API; it is not exported to CSV.
	Comments int
}

type PullRequest struct {
	Number    int
	CreatedBy string
	CreatedAt time.Time
	State     string
	Commits   int
	MergedBy  *string
	MergedAt  *time.Time
}

type Comment struct {
	ID          int64
	IssueNumber int
	CreatedBy   string
	CreatedAt   time.Time
}

// Quota is a snapshot of the API rate limit.
type Quota struct {
	Limit     int
	Remaining int
	Reset     time.Time
}
