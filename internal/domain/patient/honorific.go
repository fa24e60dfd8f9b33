package patient

import "strings"

type honorific struct {
	token  string
	gender string
	// attached titles may be written without a space before the name,
	// which is the norm for Thai.
	attached bool
}

// Longer tokens come first so นางสาว wins over นาง.
var honorifics = []honorific{
	{token: "เด็กหญิง", gender: GenderFemale, attached: true},
	{token: "เด็กชาย", gender: GenderMale, attached: true},
	{token: "นางสาว", gender: GenderFemale, attached: true},
	{token: "ด.ญ.", gender: GenderFemale, attached: true},
	{token: "ด.ช.", gender: GenderMale, attached: true},
	{token: "นาง", gender: GenderFemale, attached: true},
	{token: "นาย", gender: GenderMale, attached: true},
	{token: "mrs.", gender: GenderFemale},
	{token: "mrs", gender: GenderFemale},
	{token: "miss", gender: GenderFemale},
	{token: "ms.", gender: GenderFemale},
	{token: "ms", gender: GenderFemale},
	{token: "mr.", gender: GenderMale},
	{token: "mr", gender: GenderMale},
}

// Given names that begin with the letters of a short Thai title.
var titleLikeGivenNames = map[string]bool{
	"นางนวล":  true,
	"นางแย้ม": true,
	"นายิกา":  true,
}

func titleLikeGivenName(name string) bool {
	first, _, _ := strings.Cut(name, " ")
	return titleLikeGivenNames[first]
}

// splitHonorific returns the leading title of name, if any, and the rest of
// the name after it.
func splitHonorific(name string) (*honorific, string) {
	for i := range honorifics {
		h := &honorifics[i]
		if h.attached {
			if strings.HasPrefix(name, h.token) && !titleLikeGivenName(name) {
				return h, strings.TrimSpace(name[len(h.token):])
			}
			continue
		}
		first, rest, _ := strings.Cut(name, " ")
		if strings.EqualFold(first, h.token) {
			return h, rest
		}
		// "Mr.Smith" with no space after the period.
		if strings.HasSuffix(h.token, ".") && len(name) > len(h.token) && strings.EqualFold(name[:len(h.token)], h.token) {
			return h, strings.TrimSpace(name[len(h.token):])
		}
	}
	return nil, ""
}
