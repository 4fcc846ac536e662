package processing

import (
	"regexp"

	"github.com/soak47/job-market-tracker/internal/models"
)

// Case-sensitive: "data analyst" in lower case stays Other.
var roleToken = regexp.MustCompile(`(Analyst|Scientist|Engineer)`)

// ClassifyRole returns the bucket of the leftmost role token in title, or RoleOther.
func ClassifyRole(title string) models.RoleBucket {
	m := roleToken.FindString(title)
	if m == "" {
		return models.RoleOther
	}
	return models.RoleBucket(m)
}
