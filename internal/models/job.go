package models

import "time"

// RoleBucket is the coarse job family derived from a title.
type RoleBucket string

const (
	RoleAnalyst   RoleBucket = "Analyst"
	RoleScientist RoleBucket = "Scientist"
	RoleEngineer  RoleBucket = "Engineer"
	RoleOther     RoleBucket = "Other"
)

// RawJob is a job advertisement as received from an ingestion source.
// Salary values are left untyped; the pipeline coerces them.
type RawJob struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Company     string `json:"company,omitempty"`
	Location    string `json:"location,omitempty"`
	Source      string `json:"source"`
	Created     string `json:"created,omitempty"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
	SalaryMin   any    `json:"salary_min,omitempty"`
	SalaryMax   any    `json:"salary_max,omitempty"`
	SalaryAvg   any    `json:"salary_avg,omitempty"`
	Currency    string `json:"currency,omitempty"`

	Category          string `json:"category,omitempty"`
	ContractTime      string `json:"contract_time,omitempty"`
	SalaryIsPredicted bool   `json:"salary_is_predicted,omitempty"`
	SearchTerm        string `json:"search_term,omitempty"`
}

// JobRecord is the clean, enriched listing persisted by the stores.
type JobRecord struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Company       string     `json:"company,omitempty"`
	RawLocation   string     `json:"raw_location,omitempty"`
	CanonicalCity string     `json:"canonical_city"`
	State         string     `json:"state,omitempty"`
	Source        string     `json:"source"`
	PostedDate    *time.Time `json:"posted_date,omitempty"`
	Description   string     `json:"description,omitempty"`
	URL           string     `json:"url,omitempty"`
	SalaryMin     *float64   `json:"salary_min,omitempty"`
	SalaryMax     *float64   `json:"salary_max,omitempty"`
	SalaryAvg     *float64   `json:"salary_avg,omitempty"`
	Currency      string     `json:"currency,omitempty"`
	RoleBucket    RoleBucket `json:"role_bucket"`

	Category          string `json:"category,omitempty"`
	ContractTime      string `json:"contract_time,omitempty"`
	SalaryIsPredicted bool   `json:"salary_is_predicted,omitempty"`
	SearchTerm        string `json:"search_term,omitempty"`
}

// SkillHit links a job to one recognised skill.
type SkillHit struct {
	JobID string `json:"job_id"`
	Skill string `json:"skill"`
}

// JobQuery narrows a store load. Empty fields match everything.
type JobQuery struct {
	City   string
	Source string
	Role   string
}
