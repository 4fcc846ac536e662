// Package processing turns raw job advertisements into clean, de-duplicated
// and enriched records.
//
// Stages run in a fixed order over an in-memory batch:
//
//	salary repair -> location normalization -> de-duplication -> role classification -> skill extraction
//
// Every stage is a pure function of its input. Malformed fields never fail a
// record: they become absent and surface downstream as exclusions from the
// relevant aggregates.
//
// Salary repair: advertisers frequently quote salaries in thousands without a
// suffix ("175" meaning 175,000 AUD). Any value below 1000 is multiplied by 1000.
//
// Location: a free-text location yields a canonical city (keyword sets per
// major city, first match in Sydney, Melbourne, Perth, Brisbane order, else the
// title-cased text before the first comma) and, independently, a state
// (", XX" abbreviation first, city-name keywords second).
package processing
