package approval

import (
	"fmt"
	"time"
)

// SubjectRef is a polymorphic reference to an entity under moderation.
// The entity itself is never embedded.
type SubjectRef struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// Ref builds a SubjectRef
func Ref(subjectType, id string) SubjectRef {
	return SubjectRef{Type: subjectType, ID: id}
}

// SubjectRef lets a bare reference be used wherever an Approvable is expected
func (r SubjectRef) SubjectRef() SubjectRef {
	return r
}

// IsZero reports whether either half of the reference is missing
func (r SubjectRef) IsZero() bool {
	return r.Type == "" || r.ID == ""
}

func (r SubjectRef) String() string {
	return fmt.Sprintf("%s#%s", r.Type, r.ID)
}

// Approvable is anything that can be moderated
type Approvable interface {
	SubjectRef() SubjectRef
}

// Subject is a registered entity known to the engine
type Subject struct {
	Type      string    `db:"subject_type" json:"type"`
	ID        string    `db:"subject_id" json:"id"`
	OwnerID   *string   `db:"owner_id" json:"owner_id,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// SubjectRef implements Approvable
func (s *Subject) SubjectRef() SubjectRef {
	return SubjectRef{Type: s.Type, ID: s.ID}
}
