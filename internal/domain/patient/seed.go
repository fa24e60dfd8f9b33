package patient

import (
	"context"
	"errors"
	"fmt"
)

var samplePatients = []Input{
	{HN: "HN000001", FullName: "นายสมชาย ใจดี", Nickname: "ชาย", Phone: "0812345678", Age: "35"},
	{HN: "HN000002", FullName: "นางสาวสมหญิง รักเรียน", Nickname: "หญิง", Phone: "0898765432", DateOfBirth: "1992-04-13"},
	{HN: "HN000003", FullName: "John Doe", Gender: GenderOther, Phone: "021234567", Age: "52"},
}

// Seed inserts the sample patients through the normal write path. Records
// whose HN is already taken are left alone, so seeding is repeatable.
func (s *Service) Seed(ctx context.Context) (int, error) {
	created := 0
	for _, in := range samplePatients {
		_, _, err := s.CreatePatient(ctx, in)
		switch {
		case err == nil:
			created++
		case errors.Is(err, ErrAlreadyExists):
		default:
			return created, fmt.Errorf("seed %s: %w", in.HN, err)
		}
	}
	return created, nil
}
