package store

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"filedesk/internal/files"
)

func TestListQuery(t *testing.T) {
	tests := []struct {
		name      string
		filter    files.ListFilter
		wantWhere string
		wantArgs  []any
	}{
		{"no filter", files.ListFilter{}, "", nil},
		{"program", files.ListFilter{Program: "montha"}, " WHERE program = $1", []any{"montha"}},
		{
			"program memo owner",
			files.ListFilter{Program: "p", MemoID: "m", RestrictToOwner: true, Owner: "alice"},
			" WHERE program = $1 AND memo_id = $2 AND created_by = $3",
			[]any{"p", "m", "alice"},
		},
		{
			"empty owner still restricts",
			files.ListFilter{RestrictToOwner: true},
			" WHERE created_by = $1",
			[]any{""},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, args := listQuery(tt.filter)
			want := `SELECT ` + fileColumns + ` FROM files` + tt.wantWhere + ` ORDER BY uploaded_at DESC, id DESC`
			assert.Equal(t, want, q)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestNullString(t *testing.T) {
	assert.False(t, nullString("").Valid)
	assert.True(t, nullString("m1").Valid)
}
