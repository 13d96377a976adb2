package domain

import "time"

// Anonymous is the owner of links created without an account.
const Anonymous = "anonymous"

// Link represents a shortened URL
type Link struct {
	ID          string    `json:"id"`
	Owner       string    `json:"user_id"`
	Destination string    `json:"original_url"`
	Slug        string    `json:"slug"`
	CreatedAt   time.Time `json:"created_at"`
	Clicks      int64     `json:"clicks"`
}

// IsAnonymous reports whether the link lives in the anonymous partition.
func (l *Link) IsAnonymous() bool {
	return l.Owner == Anonymous
}

// MigrationCandidate is a client-held record of an anonymous shorten waiting
// to be claimed by an account.
type MigrationCandidate struct {
	Slug        string `json:"slug"`
	Destination string `json:"original_url"`
}

// MigrationResult is what a migration returns: the links moved in this call
// and the owner's full list afterwards.
type MigrationResult struct {
	Migrated []Link `json:"migrated"`
	Links    []Link `json:"urls"`
}
