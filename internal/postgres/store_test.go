package postgres

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/soak47/job-market-tracker/internal/models"
)

func TestSelectJobs(t *testing.T) {
	tests := []struct {
		name      string
		in        models.JobQuery
		wantWhere string
		wantArgs  []any
	}{
		{name: "no filter", in: models.JobQuery{}, wantWhere: "", wantArgs: nil},
		{name: "city", in: models.JobQuery{City: "Sydney"}, wantWhere: " WHERE canonical_city = $1", wantArgs: []any{"Sydney"}},
		{
			name:      "source and role",
			in:        models.JobQuery{Source: "adzuna", Role: "Analyst"},
			wantWhere: " WHERE source = $1 AND role_bucket = $2",
			wantArgs:  []any{"adzuna", "Analyst"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args := selectJobs(tt.in)
			require.Equal(t, "SELECT "+jobColumns+" FROM jobs"+tt.wantWhere+" ORDER BY id", sql)
			require.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestSkillRows(t *testing.T) {
	rows := skillRows([]string{"a", "b"}, []models.SkillHit{
		{JobID: "a", Skill: "sql"},
		{JobID: "a", Skill: "sql"},
		{JobID: "c", Skill: "python"},
		{JobID: "b", Skill: "excel"},
	})
	require.Equal(t, [][]any{{"a", "sql"}, {"b", "excel"}}, rows)
	require.Empty(t, skillRows([]string{"a"}, nil))
}
