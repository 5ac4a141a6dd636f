package db

import "time"

// Status is the curation state of a cataloged work.
type Status string

const (
	StatusCandidate Status = "candidate"
	StatusReviewing Status = "reviewing"
	StatusSelected  Status = "selected"
	StatusExcluded  Status = "excluded"
)

// Valid reports whether s is one of the known workflow states.
func (s Status) Valid() bool {
	switch s {
	case StatusCandidate, StatusReviewing, StatusSelected, StatusExcluded:
		return true
	}
	return false
}

// Work is a cataloged literary work with provenance and workflow status.
type Work struct {
	ID              int64
	Title           string
	Author          string
	PublicationYear *int
	SourceLibrary   string
	SourceURL       string // unique natural key
	Status          Status
	Summary         string
	Notes           string
	LocalPath       string
	Views           int
	TranslatedPath  string
	AddedAt         time.Time
	UpdatedAt       time.Time
}

// WorkUpdate lists the curation fields Update may change. Nil fields are left alone.
type WorkUpdate struct {
	LocalPath *string
	Status    *Status
	Notes     *string
}

func (u WorkUpdate) empty() bool {
	return u.LocalPath == nil && u.Status == nil && u.Notes == nil
}

// Filter narrows Find. Title and Author match as case-insensitive substrings,
// Status matches exactly. Zero values are ignored.
type Filter struct {
	Title  string
	Author string
	Status Status
}
