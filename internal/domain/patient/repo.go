package patient

import "context"

// Repository is the patient registry store. Implementations must make every
// write atomic with respect to all other operations and keep HN unique.
type Repository interface {
	// List returns live records, most recently created first.
	List(ctx context.Context) ([]*Patient, error)
	Get(ctx context.Context, hn HN) (*Patient, error)
	// Create inserts p and assigns CreatedAt/UpdatedAt. It fails with
	// ErrAlreadyExists when the HN is taken.
	Create(ctx context.Context, p *Patient) (*Patient, error)
	// Update replaces the mutable fields of the record addressed by hn.
	Update(ctx context.Context, hn HN, p *Patient) (*Patient, error)
	Delete(ctx context.Context, hn HN) error
}

// checkRecord re-applies the invariants every stored record must satisfy.
// It guards the store against callers that skipped the engine.
func checkRecord(p *Patient) error {
	var issues []Issue
	add := func(field, code, msg string) {
		issues = append(issues, Issue{Field: field, Status: StatusRejected, Code: code, Message: msg})
	}
	if !p.HN.Valid() {
		add(FieldHN, CodeInvalidFormat, "hospital number is not canonical")
	}
	if p.FullName == "" {
		add(FieldFullName, CodeRequired, "full name is required")
	}
	switch p.Gender {
	case GenderMale, GenderFemale, GenderOther:
	default:
		add(FieldGender, CodeGenderUnknown, "gender must be one of male, female, other")
	}
	if p.Age < 0 || p.Age > maxAge {
		add(FieldAge, CodeAgeRange, "age out of range")
	}
	if len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	return nil
}
