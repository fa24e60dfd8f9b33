package patient

import (
	"fmt"
	"io"
	"time"

	"github.com/tealeg/xlsx"
)

var exportHeader = []string{
	"HN", "Full name", "Gender", "Nickname", "Phone", "Age", "Date of birth", "Created at", "Updated at",
}

// WriteRoster writes patients as a single-sheet spreadsheet. Photos are left
// out; the roster is meant for front-desk printing.
func WriteRoster(w io.Writer, patients []*Patient) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("patients")
	if err != nil {
		return fmt.Errorf("add sheet: %w", err)
	}

	header := sheet.AddRow()
	for _, h := range exportHeader {
		header.AddCell().SetString(h)
	}

	for _, p := range patients {
		row := sheet.AddRow()
		row.AddCell().SetString(p.HN.String())
		row.AddCell().SetString(p.FullName)
		row.AddCell().SetString(p.Gender)
		row.AddCell().SetString(deref(p.Nickname))
		row.AddCell().SetString(deref(p.Phone))
		row.AddCell().SetInt(p.Age)
		row.AddCell().SetString(deref(p.DateOfBirth))
		row.AddCell().SetString(p.CreatedAt.UTC().Format(time.RFC3339))
		row.AddCell().SetString(p.UpdatedAt.UTC().Format(time.RFC3339))
	}

	if err := file.Write(w); err != nil {
		return fmt.Errorf("write roster: %w", err)
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
