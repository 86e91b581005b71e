package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeleteBuilders(t *testing.T) {
	tests := []struct {
		name      string
		build     func() (string, []any)
		wantQuery string
		wantArgs  []any
	}{
		{
			name: "delete one",
			build: func() (string, []any) {
				db := NewDeleteBuilder()
				db.DeleteFrom("quote_requests").Where(db.Equal("id", "7c9e6679-7425-40de-944b-e07fc1f90ae7"))
				return db.Build()
			},
			wantQuery: "DELETE FROM quote_requests WHERE id = $1",
			wantArgs:  []any{"7c9e6679-7425-40de-944b-e07fc1f90ae7"},
		},
		{
			name: "delete all",
			build: func() (string, []any) {
				return NewDeleteAllBuilder("revenue_lines").Build()
			},
			wantQuery: "DELETE FROM revenue_lines WHERE id <> $1",
			wantArgs:  []any{ImpossibleID},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args := tt.build()
			assert.Equal(t, tt.wantQuery, query)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}
