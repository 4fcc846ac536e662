package processing_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/soak47/job-market-tracker/internal/models"
	"github.com/soak47/job-market-tracker/internal/processing"
)

func TestClassifyRole(t *testing.T) {
	tests := []struct {
		title string
		want  models.RoleBucket
	}{
		{title: "Senior Data Analyst", want: models.RoleAnalyst},
		{title: "Data Scientist - NLP", want: models.RoleScientist},
		{title: "Machine Learning Engineer", want: models.RoleEngineer},
		{title: "Analyst / Engineer hybrid", want: models.RoleAnalyst},
		{title: "Engineer turned Analyst", want: models.RoleEngineer},
		{title: "data analyst", want: models.RoleOther},
		{title: "Head of Data", want: models.RoleOther},
		{title: "", want: models.RoleOther},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			require.Equal(t, tt.want, processing.ClassifyRole(tt.title))
		})
	}
}

func TestClassifyRoleIsTotal(t *testing.T) {
	allowed := []models.RoleBucket{models.RoleAnalyst, models.RoleScientist, models.RoleEngineer, models.RoleOther}
	for _, title := range []string{"x", "ANALYST", "Scientists wanted", "Engineering Manager", "🙂", "Analyst"} {
		require.Contains(t, allowed, processing.ClassifyRole(title))
	}
}
