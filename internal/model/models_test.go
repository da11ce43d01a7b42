package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveIdentity(t *testing.T) {
	tests := []struct {
		name   string
		id     Identity
		want   string
		wantOK bool
	}{
		{name: "handle", id: Handle{Login: "alice"}, want: "alice", wantOK: true},
		{name: "signature", id: Signature{Name: "Bob Smith", Email: "bob@example.com"}, want: "Bob Smith <bob@example.com>", wantOK: true},
		{name: "absent", id: nil, want: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ResolveIdentity(tt.id)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRepository_Ref(t *testing.T) {
	repo := &Repository{Owner: "octo", Name: "hello"}
	assert.Equal(t, RepoRef{Owner: "octo", Name: "hello"}, repo.Ref())
	assert.Equal(t, "octo/hello", repo.Ref().String())
}
