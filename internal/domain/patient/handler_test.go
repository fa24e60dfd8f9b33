package patient

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler() (*Handler, *echo.Echo) {
	svc, _ := newTestService()
	h := NewHandler(svc, 64)
	e := echo.New()
	h.RegisterRoutes(e.Group(""))
	return h, e
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHandler_CreatePatient(t *testing.T) {
	h, e := newTestHandler()

	body := `{"hn":"HN1","fullName":"John Doe","gender":"male","age":40}`
	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/patients", body), rec)

	err := h.CreatePatient(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}

	var p Patient
	json.Unmarshal(rec.Body.Bytes(), &p)
	if p.HN != "HN000001" {
		t.Errorf("expected HN000001, got %s", p.HN)
	}
	if p.Age != 40 {
		t.Errorf("expected 40, got %d", p.Age)
	}
}

func TestHandler_CreateThenGet(t *testing.T) {
	_, e := newTestHandler()

	rec := serve(e, jsonRequest(http.MethodPost, "/patients", `{"hn":"HN1","fullName":"John Doe","gender":"male","age":"40"}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	for _, ref := range []string{"HN000001", "hn1", "1"} {
		rec = serve(e, httptest.NewRequest(http.MethodGet, "/patients/"+ref, nil))
		require.Equal(t, http.StatusOK, rec.Code, ref)

		var p Patient
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
		assert.Equal(t, HN("HN000001"), p.HN, ref)
		assert.Equal(t, "John Doe", p.FullName)
	}
}

func TestHandler_CreatePatient_ValidationBody(t *testing.T) {
	_, e := newTestHandler()

	rec := serve(e, jsonRequest(http.MethodPost, "/patients", `{"hn":"XX1","fullName":"J","gender":"male","age":0}`))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body struct {
		Message string  `json:"message"`
		Issues  []Issue `json:"issues"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "validation failed", body.Message)

	fields := map[string]string{}
	for _, is := range body.Issues {
		assert.Equal(t, StatusRejected, is.Status)
		fields[is.Field] = is.Code
	}
	assert.Equal(t, CodeHNPrefix, fields[FieldHN])
	assert.Equal(t, CodeNameLength, fields[FieldFullName])
	assert.Equal(t, CodeAgeRange, fields[FieldAge])
}

func TestHandler_CreatePatient_Conflict(t *testing.T) {
	_, e := newTestHandler()
	body := `{"hn":"HN1","fullName":"John Doe","gender":"male","age":40}`

	require.Equal(t, http.StatusCreated, serve(e, jsonRequest(http.MethodPost, "/patients", body)).Code)
	assert.Equal(t, http.StatusConflict, serve(e, jsonRequest(http.MethodPost, "/patients", body)).Code)
}

func TestHandler_CreatePatient_BadJSON(t *testing.T) {
	h, e := newTestHandler()

	c := e.NewContext(jsonRequest(http.MethodPost, "/patients", `{"hn":`), httptest.NewRecorder())
	err := h.CreatePatient(c)

	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_CreatePatient_Advisories(t *testing.T) {
	_, e := newTestHandler()

	rec := serve(e, jsonRequest(http.MethodPost, "/patients", `{"hn":"HN2","fullName":"Mr. John Doe","gender":"female","age":120}`))
	require.Equal(t, http.StatusCreated, rec.Code)

	adv := rec.Header().Get(AdvisoryHeader)
	assert.Contains(t, adv, FieldGender+":"+CodeGenderHonorific)
	assert.Contains(t, adv, FieldAge+":"+CodeAgeHigh)
}

func TestHandler_Photo(t *testing.T) {
	_, e := newTestHandler()

	small := base64.StdEncoding.EncodeToString([]byte("tiny png"))
	rec := serve(e, jsonRequest(http.MethodPost, "/patients",
		`{"hn":"HN3","fullName":"John Doe","gender":"male","age":40,"photo":"data:image/png;base64,`+small+`"}`))
	assert.Equal(t, http.StatusCreated, rec.Code)

	large := base64.StdEncoding.EncodeToString(make([]byte, 65))
	rec = serve(e, jsonRequest(http.MethodPost, "/patients",
		`{"hn":"HN4","fullName":"John Doe","gender":"male","age":40,"photo":"`+large+`"}`))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	rec = serve(e, jsonRequest(http.MethodPost, "/patients",
		`{"hn":"HN5","fullName":"John Doe","gender":"male","age":40,"photo":"not base64!"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_UpdatePatient(t *testing.T) {
	_, e := newTestHandler()
	require.Equal(t, http.StatusCreated,
		serve(e, jsonRequest(http.MethodPost, "/patients", `{"hn":"HN1","fullName":"John Doe","gender":"male","age":40}`)).Code)

	rec := serve(e, jsonRequest(http.MethodPut, "/patients/HN000001", `{"fullName":"John Smith","gender":"male","age":41}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var p Patient
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, "John Smith", p.FullName)
	assert.Equal(t, 41, p.Age)

	rec = serve(e, jsonRequest(http.MethodPut, "/patients/HN000001", `{"hn":"HN2","fullName":"John Smith","gender":"male","age":41}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), CodeHNImmutable)

	rec = serve(e, jsonRequest(http.MethodPut, "/patients/HN000404", `{"fullName":"John Smith","gender":"male","age":41}`))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_GetPatient_BadRef(t *testing.T) {
	h, e := newTestHandler()

	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("hn")
	c.SetParamValues("AB12")

	err := h.GetPatient(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_GetPatient_NotFound(t *testing.T) {
	_, e := newTestHandler()
	rec := serve(e, httptest.NewRequest(http.MethodGet, "/patients/HN000404", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestHandler_DeletePatient(t *testing.T) {
	_, e := newTestHandler()
	require.Equal(t, http.StatusCreated,
		serve(e, jsonRequest(http.MethodPost, "/patients", `{"hn":"HN1","fullName":"John Doe","gender":"male","age":40}`)).Code)

	assert.Equal(t, http.StatusNoContent, serve(e, httptest.NewRequest(http.MethodDelete, "/patients/1", nil)).Code)
	assert.Equal(t, http.StatusNotFound, serve(e, httptest.NewRequest(http.MethodDelete, "/patients/1", nil)).Code)
}

func TestHandler_ListPatients(t *testing.T) {
	_, e := newTestHandler()
	for _, hn := range []string{"HN1", "HN2", "HN3"} {
		require.Equal(t, http.StatusCreated,
			serve(e, jsonRequest(http.MethodPost, "/patients", `{"hn":"`+hn+`","fullName":"John Doe","gender":"male","age":40}`)).Code)
	}

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/patients", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "3", rec.Header().Get(TotalHeader))

	var all []Patient
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	assert.Len(t, all, 3)

	rec = serve(e, httptest.NewRequest(http.MethodGet, "/patients?limit=1&offset=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "3", rec.Header().Get(TotalHeader))
	assert.Equal(t, `</patients?limit=1&offset=2>; rel="next"`, rec.Header().Get(LinkHeader))

	var page []Patient
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page, 1)
	assert.Equal(t, all[1].HN, page[0].HN)

	rec = serve(e, httptest.NewRequest(http.MethodGet, "/patients?limit=1&offset=2", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get(LinkHeader))

	rec = serve(e, httptest.NewRequest(http.MethodGet, "/patients", nil))
	assert.Empty(t, rec.Header().Get(LinkHeader))
}

func TestHandler_ListPatients_Empty(t *testing.T) {
	_, e := newTestHandler()
	rec := serve(e, httptest.NewRequest(http.MethodGet, "/patients", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestHandler_ValidatePatient(t *testing.T) {
	_, e := newTestHandler()

	rec := serve(e, jsonRequest(http.MethodPost, "/patients/validate", `{"hn":"hn7","fullName":"นางสาวมาลี ดีใจ","age":"25","phone":"0898765432"}`))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Valid   bool    `json:"valid"`
		Patient Patient `json:"patient"`
		Issues  []Issue `json:"issues"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Valid)
	assert.Equal(t, HN("HN000007"), body.Patient.HN)
	assert.Equal(t, GenderFemale, body.Patient.Gender)
	assert.Empty(t, body.Issues)

	// Nothing was stored.
	assert.Equal(t, http.StatusNotFound, serve(e, httptest.NewRequest(http.MethodGet, "/patients/HN000007", nil)).Code)
}

func TestHandler_ExportPatients(t *testing.T) {
	_, e := newTestHandler()
	require.Equal(t, http.StatusCreated,
		serve(e, jsonRequest(http.MethodPost, "/patients", `{"hn":"HN1","fullName":"John Doe","gender":"male","age":40}`)).Code)

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/patients/export", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), "patients.xlsx")
	assert.NotZero(t, rec.Body.Len())
}

func TestHTTPError(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{ErrNotFound, http.StatusNotFound},
		{ErrAlreadyExists, http.StatusConflict},
		{&FormatError{Input: "x", Code: CodeHNPrefix}, http.StatusBadRequest},
		{newValidationError(FieldAge, CodeAgeRange, "bad"), http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		var he *echo.HTTPError
		if !errors.As(httpError(tt.err), &he) || he.Code != tt.code {
			t.Errorf("%v: expected %d, got %v", tt.err, tt.code, he)
		}
	}
}
