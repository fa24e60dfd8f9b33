package patient

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Status is the outcome of validating one field.
type Status string

const (
	StatusAccepted Status = "accepted"
	StatusAdvisory Status = "advisory"
	StatusRejected Status = "rejected"
)

// Machine-readable reason codes.
const (
	CodeRequired        = "required"
	CodeInvalidFormat   = "invalid_format"
	CodeTooLong         = "too_long"
	CodeHNPrefix        = "hn_prefix"
	CodeHNNoDigits      = "hn_no_digits"
	CodeHNTooManyDigits = "hn_too_many_digits"
	CodeHNOutOfRange    = "hn_out_of_range"
	CodeHNImmutable     = "hn_immutable"
	CodeNameLength      = "name_length"
	CodeNameCharacters  = "name_characters"
	CodeGenderUnknown   = "gender_unknown"
	CodeGenderHonorific = "gender_from_honorific"
	CodePhoneLength     = "phone_length"
	CodePhonePrefix     = "phone_prefix"
	CodeAgeRange        = "age_range"
	CodeAgeHigh         = "age_high"
	CodeDateInFuture    = "dob_in_future"
	CodeDateTooOld      = "dob_too_old"
	CodeAgeDateMismatch = "age_dob_mismatch"
)

// Field names as they appear on the wire.
const (
	FieldHN          = "hn"
	FieldFullName    = "fullName"
	FieldGender      = "gender"
	FieldNickname    = "nickname"
	FieldPhone       = "phone"
	FieldAge         = "age"
	FieldDateOfBirth = "dateOfBirth"
)

const (
	minNameLen     = 2
	maxNameLen     = 100
	maxNicknameLen = 100
	minPhoneDigits = 9
	maxPhoneDigits = 12
	maxAge         = 150
	advisoryAge    = 100
)

// MismatchPolicy decides how a disagreement between age and dateOfBirth is
// reported.
type MismatchPolicy string

const (
	MismatchAdvisory MismatchPolicy = "advisory"
	MismatchReject   MismatchPolicy = "reject"
)

// ParseMismatchPolicy maps a configuration value onto a policy.
func ParseMismatchPolicy(s string) (MismatchPolicy, error) {
	switch MismatchPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", MismatchAdvisory:
		return MismatchAdvisory, nil
	case MismatchReject:
		return MismatchReject, nil
	}
	return "", fmt.Errorf("unknown age mismatch policy %q", s)
}

// Issue is a non-accepted outcome for one field.
type Issue struct {
	Field   string `json:"field"`
	Status  Status `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Result is the output of the engine: the normalized record and every issue
// found. Fields without an issue were accepted.
type Result struct {
	Patient Patient `json:"patient"`
	Issues  []Issue `json:"issues"`
}

// Valid reports whether no field was rejected.
func (r *Result) Valid() bool {
	for _, is := range r.Issues {
		if is.Status == StatusRejected {
			return false
		}
	}
	return true
}

// FieldStatus returns the most severe outcome recorded for field.
func (r *Result) FieldStatus(field string) Status {
	st := StatusAccepted
	for _, is := range r.Issues {
		if is.Field != field {
			continue
		}
		if is.Status == StatusRejected {
			return StatusRejected
		}
		st = StatusAdvisory
	}
	return st
}

func (r *Result) Rejections() []Issue { return r.filter(StatusRejected) }

func (r *Result) Advisories() []Issue { return r.filter(StatusAdvisory) }

// Err returns a *ValidationError holding every rejection, or nil.
func (r *Result) Err() error {
	rej := r.Rejections()
	if len(rej) == 0 {
		return nil
	}
	return &ValidationError{Issues: rej}
}

func (r *Result) filter(st Status) []Issue {
	var out []Issue
	for _, is := range r.Issues {
		if is.Status == st {
			out = append(out, is)
		}
	}
	return out
}

func (r *Result) reject(field, code, format string, args ...interface{}) {
	r.Issues = append(r.Issues, Issue{Field: field, Status: StatusRejected, Code: code, Message: fmt.Sprintf(format, args...)})
}

func (r *Result) advise(field, code, format string, args ...interface{}) {
	r.Issues = append(r.Issues, Issue{Field: field, Status: StatusAdvisory, Code: code, Message: fmt.Sprintf(format, args...)})
}

// Engine validates and normalizes raw patient input. It holds no per-call
// state and is safe for concurrent use.
type Engine struct {
	now    func() time.Time
	policy MismatchPolicy
}

type EngineOption func(*Engine)

// WithClock overrides the engine's notion of "now".
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

func WithMismatchPolicy(p MismatchPolicy) EngineOption {
	return func(e *Engine) { e.policy = p }
}

func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{now: time.Now, policy: MismatchAdvisory}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Validate runs every field rule against in and derives gender, age and
// dateOfBirth from the whole field set at once, so the result does not
// depend on the order in which a form filled its fields.
func (e *Engine) Validate(in Input) *Result {
	r := &Result{}
	p := &r.Patient

	if hn, code := parseHN(in.HN); code != "" {
		r.reject(FieldHN, code, "hospital number must be HN followed by up to 6 digits")
	} else {
		p.HN = hn
	}

	name, implied := e.fullName(r, in.FullName)
	p.FullName = name
	p.Gender = e.gender(r, in.Gender, implied)

	if nick := collapseSpace(norm.NFC.String(in.Nickname)); nick != "" {
		if utf8.RuneCountInString(nick) > maxNicknameLen {
			r.reject(FieldNickname, CodeTooLong, "nickname must be at most %d characters", maxNicknameLen)
		}
		p.Nickname = &nick
	}

	p.Phone = e.phone(r, in.Phone)
	p.Age, p.DateOfBirth = e.ageAndBirthDate(r, string(in.Age), in.DateOfBirth)
	p.Photo = stringPtr(strings.TrimSpace(in.Photo))

	return r
}

func (e *Engine) fullName(r *Result, raw string) (string, string) {
	name := collapseSpace(norm.NFC.String(raw))
	if name == "" {
		r.reject(FieldFullName, CodeRequired, "full name is required")
		return "", ""
	}
	for _, c := range name {
		if !nameRune(c) {
			r.reject(FieldFullName, CodeNameCharacters, "full name may only contain Thai or Latin letters, spaces and periods")
			break
		}
	}
	if !hasLetter(name) {
		r.reject(FieldFullName, CodeNameCharacters, "full name must contain a letter")
		return name, ""
	}
	n := utf8.RuneCountInString(name)
	if n < minNameLen || n > maxNameLen {
		r.reject(FieldFullName, CodeNameLength, "full name must be %d-%d characters", minNameLen, maxNameLen)
	}

	h, rest := splitHonorific(name)
	if h == nil {
		return name, ""
	}
	if !hasLetter(rest) {
		r.reject(FieldFullName, CodeNameLength, "full name must contain a name after the title")
		return name, ""
	}
	return name, h.gender
}

func hasLetter(s string) bool {
	for _, c := range s {
		if unicode.IsLetter(c) {
			return true
		}
	}
	return false
}

func nameRune(c rune) bool {
	if c == ' ' || c == '.' {
		return true
	}
	if unicode.IsDigit(c) {
		return false
	}
	if !unicode.IsLetter(c) && !unicode.Is(unicode.Mn, c) {
		return false
	}
	return unicode.In(c, unicode.Latin, unicode.Thai)
}

func (e *Engine) gender(r *Result, raw, implied string) string {
	supplied, known := normalizeGender(raw)
	if implied != "" {
		if supplied != "" && supplied != implied {
			r.advise(FieldGender, CodeGenderHonorific, "gender set to %s to match the title", implied)
		}
		return implied
	}
	switch {
	case supplied == "":
		r.reject(FieldGender, CodeRequired, "gender is required when the name has no title")
	case !known:
		r.reject(FieldGender, CodeGenderUnknown, "gender must be one of male, female, other")
		return ""
	}
	return supplied
}

// normalizeGender returns the canonical value and whether raw was recognized.
// Unrecognized non-empty input is returned lower-cased with known=false.
func normalizeGender(raw string) (string, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch s {
	case "":
		return "", false
	case "male", "m", "ชาย":
		return GenderMale, true
	case "female", "f", "หญิง":
		return GenderFemale, true
	case "other", "o", "อื่นๆ", "อื่น ๆ":
		return GenderOther, true
	}
	return s, false
}

func (e *Engine) phone(r *Result, raw string) *string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	digits := keepDigits(raw)
	if len(digits) < minPhoneDigits || len(digits) > maxPhoneDigits {
		r.reject(FieldPhone, CodePhoneLength, "phone must have %d-%d digits", minPhoneDigits, maxPhoneDigits)
		return nil
	}
	switch len(digits) {
	case 10:
		if !hasAnyPrefix(digits, "06", "08", "09") {
			r.reject(FieldPhone, CodePhonePrefix, "10-digit numbers must start with 06, 08 or 09")
			return nil
		}
	case 9:
		if digits[0] != '0' {
			r.reject(FieldPhone, CodePhonePrefix, "9-digit numbers must start with 0")
			return nil
		}
	}
	formatted := FormatPhone(digits)
	return &formatted
}

// FormatPhone groups a digit string for display: 081-234-5678 for mobiles,
// 02-123-4567 for landlines, and a leading country code group otherwise.
func FormatPhone(digits string) string {
	switch n := len(digits); {
	case n == 10:
		return digits[:3] + "-" + digits[3:6] + "-" + digits[6:]
	case n == 9:
		return digits[:2] + "-" + digits[2:5] + "-" + digits[5:]
	case n > 10:
		cc := n - 9
		return digits[:cc] + "-" + FormatPhone(digits[cc:])
	}
	return digits
}

func (e *Engine) ageAndBirthDate(r *Result, rawAge, rawDOB string) (int, *string) {
	now := e.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	age, ageOK, ageGiven := e.age(r, strings.TrimSpace(rawAge))
	dob, dobOK, dobGiven := e.birthDate(r, strings.TrimSpace(rawDOB), today)

	switch {
	case ageOK && dobOK:
		derived := AgeAt(dob, today)
		if derived != age {
			msg := "age %d does not match date of birth (implies %d)"
			if e.policy == MismatchReject {
				r.reject(FieldAge, CodeAgeDateMismatch, msg, age, derived)
			} else {
				r.advise(FieldAge, CodeAgeDateMismatch, msg, age, derived)
			}
		}
		s := dob.Format(DateLayout)
		return age, &s
	case dobOK:
		derived := AgeAt(dob, today)
		if derived > advisoryAge {
			r.advise(FieldAge, CodeAgeHigh, "age %d is unusually high", derived)
		}
		s := dob.Format(DateLayout)
		return derived, &s
	case ageOK && !dobGiven:
		s := BirthDateFor(age, today).Format(DateLayout)
		return age, &s
	case ageOK:
		return age, nil
	case !ageGiven && !dobGiven:
		r.reject(FieldAge, CodeRequired, "age or date of birth is required")
	}
	return 0, nil
}

func (e *Engine) age(r *Result, raw string) (int, bool, bool) {
	if raw == "" {
		return 0, false, false
	}
	n, ok := parseAge(raw)
	if !ok {
		r.reject(FieldAge, CodeInvalidFormat, "age must be a whole number")
		return 0, false, true
	}
	if n <= 0 || n > maxAge {
		r.reject(FieldAge, CodeAgeRange, "age must be between 1 and %d", maxAge)
		return 0, false, true
	}
	if n > advisoryAge {
		r.advise(FieldAge, CodeAgeHigh, "age %d is unusually high", n)
	}
	return n, true, true
}

// parseAge reads a base-10 whole number. A zero fraction is allowed so the
// JSON number 35.0 reads as 35; an explicit plus sign or exponent is not.
func parseAge(raw string) (int, bool) {
	whole, frac, hasFrac := strings.Cut(raw, ".")
	if hasFrac && (frac == "" || strings.Trim(frac, "0") != "") {
		return 0, false
	}
	if !allDigits(strings.TrimPrefix(whole, "-")) {
		return 0, false
	}
	n, err := strconv.Atoi(whole)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (e *Engine) birthDate(r *Result, raw string, today time.Time) (time.Time, bool, bool) {
	if raw == "" {
		return time.Time{}, false, false
	}
	dob, err := time.Parse(DateLayout, raw)
	if err != nil {
		r.reject(FieldDateOfBirth, CodeInvalidFormat, "date of birth must be YYYY-MM-DD")
		return time.Time{}, false, true
	}
	if dob.After(today) {
		r.reject(FieldDateOfBirth, CodeDateInFuture, "date of birth is in the future")
		return time.Time{}, false, true
	}
	if AgeAt(dob, today) > maxAge {
		r.reject(FieldDateOfBirth, CodeDateTooOld, "date of birth implies an age above %d", maxAge)
		return time.Time{}, false, true
	}
	return dob, true, true
}

// AgeAt returns the number of whole years elapsed between dob and at.
func AgeAt(dob, at time.Time) int {
	years := at.Year() - dob.Year()
	if at.Month() < dob.Month() || (at.Month() == dob.Month() && at.Day() < dob.Day()) {
		years--
	}
	return years
}

// BirthDateFor returns the latest birth date that makes someone age years
// old at the given day.
func BirthDateFor(age int, at time.Time) time.Time {
	dob := at.AddDate(-age, 0, 0)
	for AgeAt(dob, at) < age {
		dob = dob.AddDate(0, 0, -1)
	}
	return dob
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func keepDigits(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

func hasAnyPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
