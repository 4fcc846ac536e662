package processing

import (
	"maps"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type cityKeywords struct {
	city     string
	keywords []string
}

// Order matters: the first city with a matching keyword wins.
var cities = []cityKeywords{
	{city: "Sydney", keywords: []string{"sydney", "nsw", "chippendale", "parramatta", "north sydney", "macquarie park", "surry hills", "ultimo", "the rocks"}},
	{city: "Melbourne", keywords: []string{"melbourne", "vic", "st kilda", "docklands", "richmond", "hawthorn", "cbd vic", "west melbourne"}},
	{city: "Perth", keywords: []string{"perth", "wa", "west perth", "osborne park", "joondalup", "welshpool"}},
	{city: "Brisbane", keywords: []string{"brisbane", "qld", "fortitude valley", "south brisbane", "milton", "toowong"}},
}

var defaultStates = map[string]string{
	"WA":  "Western Australia",
	"NSW": "New South Wales",
	"VIC": "Victoria",
	"QLD": "Queensland",
	"SA":  "South Australia",
	"TAS": "Tasmania",
	"NT":  "Northern Territory",
	"ACT": "Australian Capital Territory",
}

var stateFromCity = []struct {
	keyword string
	state   string
}{
	{keyword: "perth", state: "Western Australia"},
	{keyword: "sydney", state: "New South Wales"},
	{keyword: "melbourne", state: "Victoria"},
	{keyword: "brisbane", state: "Queensland"},
}

var stateToken = regexp.MustCompile(`,\s*([A-Z]{2,3})\b`)

// DefaultStates returns a copy of the built-in abbreviation table.
func DefaultStates() map[string]string {
	return maps.Clone(defaultStates)
}

// CanonicalCity maps a free-text location to a city label. Keyword matching
// is a case-insensitive substring test.
func CanonicalCity(location string) string {
	s := strings.ToLower(location)
	for _, c := range cities {
		for _, kw := range c.keywords {
			if strings.Contains(s, kw) {
				return c.city
			}
		}
	}

	head, _, _ := strings.Cut(s, ",")
	head = strings.TrimSpace(head)
	if head == "" {
		return ""
	}
	// cases.Caser is stateful; one per call.
	return cases.Title(language.Und).String(head)
}

// InferState finds a ", XX" abbreviation and expands it through table
// (the built-in table when nil or empty). Unknown abbreviations pass through.
// Without an abbreviation, city names decide. Otherwise the state is empty.
func InferState(location string, table map[string]string) string {
	if len(table) == 0 {
		table = defaultStates
	}

	if m := stateToken.FindStringSubmatch(location); m != nil {
		if full, ok := table[m[1]]; ok {
			return full
		}
		return m[1]
	}

	s := strings.ToLower(location)
	for _, h := range stateFromCity {
		if strings.Contains(s, h.keyword) {
			return h.state
		}
	}
	return ""
}
