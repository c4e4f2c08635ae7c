package core

import "time"

type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Status is a reading-shelf status. The short codes match the stored values.
type Status string

const (
	StatusNone       Status = ""
	StatusWantToRead Status = "WTR"
	StatusReading    Status = "RDG"
	StatusRead       Status = "RD"
)

var statusNames = map[Status]string{
	StatusWantToRead: "want-to-read",
	StatusReading:    "reading",
	StatusRead:       "read",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "none"
}

func ParseStatus(s string) (Status, bool) {
	for st, name := range statusNames {
		if s == name || s == string(st) {
			return st, true
		}
	}
	return StatusNone, s == ""
}

// Interaction is unique per (UserID, BookID).
type Interaction struct {
	UserID     string `json:"user_id"`
	BookID     string `json:"book_id"`
	Status     Status `json:"status,omitempty"`
	IsFavorite bool   `json:"is_favorite"`
	Book       *Book  `json:"book,omitempty"`
}

// Counts reports whether the interaction carries a shelf status that feeds
// recommendations.
func (i Interaction) Counts() bool {
	return i.Status != StatusNone
}

type Review struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	BookID    string    `json:"book_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ShortComment returns the first 80 characters for previews.
func (r Review) ShortComment() string {
	rs := []rune(r.Comment)
	if len(rs) <= 80 {
		return r.Comment
	}
	return string(rs[:80]) + "..."
}
