package patient

import (
	"bytes"
	"encoding/json"
	"time"
)

// Gender values accepted by the registry.
const (
	GenderMale   = "male"
	GenderFemale = "female"
	GenderOther  = "other"
)

// DateLayout is the wire and storage layout of dateOfBirth.
const DateLayout = "2006-01-02"

// Patient maps to the patients table.
type Patient struct {
	HN          HN        `db:"hn" json:"hn"`
	FullName    string    `db:"full_name" json:"fullName"`
	Gender      string    `db:"gender" json:"gender"`
	Nickname    *string   `db:"nickname" json:"nickname,omitempty"`
	Phone       *string   `db:"phone" json:"phone,omitempty"`
	Age         int       `db:"age" json:"age"`
	DateOfBirth *string   `db:"date_of_birth" json:"dateOfBirth,omitempty"`
	Photo       *string   `db:"photo" json:"photo,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

// clone returns a deep copy so stored records never alias caller memory.
func (p *Patient) clone() *Patient {
	out := *p
	out.Nickname = cloneString(p.Nickname)
	out.Phone = cloneString(p.Phone)
	out.DateOfBirth = cloneString(p.DateOfBirth)
	out.Photo = cloneString(p.Photo)
	return &out
}

// sameContent reports whether two records agree on every caller-supplied field.
func (p *Patient) sameContent(o *Patient) bool {
	return p.HN == o.HN &&
		p.FullName == o.FullName &&
		p.Gender == o.Gender &&
		p.Age == o.Age &&
		equalString(p.Nickname, o.Nickname) &&
		equalString(p.Phone, o.Phone) &&
		equalString(p.DateOfBirth, o.DateOfBirth) &&
		equalString(p.Photo, o.Photo)
}

// Input is the raw, unvalidated field set of a create or update request.
// Every field is kept as text so the engine decides what is malformed.
type Input struct {
	HN          string   `json:"hn"`
	FullName    string   `json:"fullName"`
	Gender      string   `json:"gender"`
	Nickname    string   `json:"nickname"`
	Phone       string   `json:"phone"`
	Age         RawValue `json:"age"`
	DateOfBirth string   `json:"dateOfBirth"`
	Photo       string   `json:"photo"`
}

// RawValue accepts a JSON string or number and keeps its text, so that
// `"age": 35` and `"age": "35"` reach the engine the same way.
type RawValue string

func (v *RawValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = RawValue(s)
		return nil
	}
	*v = RawValue(data)
	return nil
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func equalString(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func stringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
