package files

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRole(t *testing.T) {
	tests := map[string]Role{
		"admin":    RoleAdmin,
		"ADMIN":    RoleAdmin,
		" Admin ":  RoleAdmin,
		"district": RoleUser,
		"user":     RoleUser,
		"":         RoleUser,
		"admins":   RoleUser,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseRole(in), "ParseRole(%q)", in)
	}
	assert.Equal(t, "admin", RoleAdmin.String())
	assert.Equal(t, "user", RoleUser.String())
}

func TestCanDeleteIsOwnershipOnly(t *testing.T) {
	rec := &FileRecord{CreatedBy: "alice"}
	tests := []struct {
		caller Caller
		want   bool
	}{
		{Caller{Identity: "alice", Role: RoleUser}, true},
		{Caller{Identity: "alice", Role: RoleAdmin}, true},
		{Caller{Identity: "bob", Role: RoleUser}, false},
		{Caller{Identity: "bob", Role: RoleAdmin}, false},
		{Caller{Identity: "Alice", Role: RoleUser}, false},
		{Caller{Identity: "", Role: RoleAdmin}, false},
	}
	for _, tt := range tests {
		got := CanDelete(rec, tt.caller)
		assert.Equal(t, tt.want, got, "caller %+v", tt.caller)
		assert.Equal(t, tt.caller.Identity == rec.CreatedBy, got)
	}
}

func TestVisibleTo(t *testing.T) {
	rec := &FileRecord{CreatedBy: "alice"}
	assert.True(t, VisibleTo(rec, Caller{Identity: "alice"}))
	assert.False(t, VisibleTo(rec, Caller{Identity: "bob"}))
	assert.True(t, VisibleTo(rec, Caller{Identity: "bob", Role: RoleAdmin}))
	assert.True(t, VisibleTo(rec, Caller{Role: RoleAdmin}))
}

func TestFilterForMatchesVisibleTo(t *testing.T) {
	recs := []FileRecord{
		{CreatedBy: "alice", Program: "montha", MemoID: "m1"},
		{CreatedBy: "bob", Program: "montha", MemoID: "m1"},
		{CreatedBy: "alice", Program: "other"},
		{CreatedBy: "", Program: "montha"},
	}
	callers := []Caller{
		{Identity: "alice"},
		{Identity: "bob", Role: RoleAdmin},
		{Identity: ""},
	}
	for _, c := range callers {
		f := FilterFor(c, "", "")
		for i := range recs {
			assert.Equal(t, VisibleTo(&recs[i], c), f.Matches(&recs[i]), "caller %+v rec %+v", c, recs[i])
		}
	}

	f := FilterFor(Caller{Identity: "alice"}, "montha", "m1")
	assert.True(t, f.Matches(&recs[0]))
	assert.False(t, f.Matches(&recs[1]))
	assert.False(t, f.Matches(&recs[2]))
}
