package patient

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/clinic/registry/pkg/pagination"
)

// DefaultMaxPhotoBytes bounds the decoded photo payload.
const DefaultMaxPhotoBytes = 2 << 20

const (
	FieldPhoto        = "photo"
	CodePhotoTooLarge = "photo_too_large"

	// AdvisoryHeader lists accepted-with-advisory outcomes of a write as
	// comma-separated field:code pairs.
	AdvisoryHeader = "X-Patient-Advisories"
	TotalHeader    = "X-Total-Count"
	LinkHeader     = "Link"
)

type Handler struct {
	svc           *Service
	maxPhotoBytes int
}

func NewHandler(svc *Service, maxPhotoBytes int) *Handler {
	if maxPhotoBytes <= 0 {
		maxPhotoBytes = DefaultMaxPhotoBytes
	}
	return &Handler{svc: svc, maxPhotoBytes: maxPhotoBytes}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/patients", h.ListPatients)
	g.GET("/patients/export", h.ExportPatients)
	g.POST("/patients/validate", h.ValidatePatient)
	g.GET("/patients/:hn", h.GetPatient)
	g.POST("/patients", h.CreatePatient)
	g.PUT("/patients/:hn", h.UpdatePatient)
	g.DELETE("/patients/:hn", h.DeletePatient)
}

func (h *Handler) ListPatients(c echo.Context) error {
	patients, err := h.svc.ListPatients(c.Request().Context())
	if err != nil {
		return httpError(err)
	}

	total := len(patients)
	c.Response().Header().Set(TotalHeader, strconv.Itoa(total))
	if pg, ok := pagination.FromContext(c); ok {
		start, end := pg.Window(total)
		patients = patients[start:end]
		if pg.HasNext(total) {
			c.Response().Header().Set(LinkHeader, fmt.Sprintf(`<%s>; rel="next"`, pg.NextURL(c.Request().URL)))
		}
	}
	return c.JSON(http.StatusOK, patients)
}

func (h *Handler) GetPatient(c echo.Context) error {
	hn, err := ParseRef(c.Param("hn"))
	if err != nil {
		return httpError(err)
	}
	p, err := h.svc.GetPatient(c.Request().Context(), hn)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) CreatePatient(c echo.Context) error {
	in, err := h.bind(c)
	if err != nil {
		return err
	}
	p, r, err := h.svc.CreatePatient(c.Request().Context(), in)
	if err != nil {
		return httpError(err)
	}
	setAdvisories(c, r)
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	hn, err := ParseRef(c.Param("hn"))
	if err != nil {
		return httpError(err)
	}
	in, err := h.bind(c)
	if err != nil {
		return err
	}
	p, r, err := h.svc.UpdatePatient(c.Request().Context(), hn, in)
	if err != nil {
		return httpError(err)
	}
	setAdvisories(c, r)
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) DeletePatient(c echo.Context) error {
	hn, err := ParseRef(c.Param("hn"))
	if err != nil {
		return httpError(err)
	}
	if err := h.svc.DeletePatient(c.Request().Context(), hn); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ValidatePatient runs the engine on a draft record and reports every field
// outcome without storing anything. Forms call it while the user types.
func (h *Handler) ValidatePatient(c echo.Context) error {
	in, err := h.bind(c)
	if err != nil {
		return err
	}
	r := h.svc.Validate(in)
	if r.Issues == nil {
		r.Issues = []Issue{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"valid":   r.Valid(),
		"patient": r.Patient,
		"issues":  r.Issues,
	})
}

func (h *Handler) ExportPatients(c echo.Context) error {
	patients, err := h.svc.ListPatients(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	var buf bytes.Buffer
	if err := WriteRoster(&buf, patients); err != nil {
		return httpError(fmt.Errorf("%w: %v", ErrInternal, err))
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="patients.xlsx"`)
	return c.Blob(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

func (h *Handler) bind(c echo.Context) (Input, error) {
	var in Input
	if err := (&echo.DefaultBinder{}).BindBody(c, &in); err != nil {
		for e := error(err); e != nil; e = errors.Unwrap(e) {
			if he, ok := e.(*echo.HTTPError); ok && he.Code == http.StatusRequestEntityTooLarge {
				return in, he
			}
		}
		return in, echo.NewHTTPError(http.StatusBadRequest, "invalid JSON body")
	}
	if err := checkPhoto(in.Photo, h.maxPhotoBytes); err != nil {
		return in, err
	}
	return in, nil
}

// checkPhoto enforces the size bound on the inline photo before the record
// reaches the registry. Data URLs ("data:image/png;base64,...") are accepted.
func checkPhoto(photo string, max int) error {
	photo = strings.TrimSpace(photo)
	if photo == "" {
		return nil
	}
	payload := photo
	if strings.HasPrefix(payload, "data:") {
		if i := strings.IndexByte(payload, ','); i >= 0 {
			payload = payload[i+1:]
		}
	}
	if base64.StdEncoding.DecodedLen(len(payload)) > max+2 {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, validationBody([]Issue{{
			Field: FieldPhoto, Status: StatusRejected, Code: CodePhotoTooLarge,
			Message: fmt.Sprintf("photo must be at most %d bytes", max),
		}}))
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, validationBody([]Issue{{
			Field: FieldPhoto, Status: StatusRejected, Code: CodeInvalidFormat,
			Message: "photo must be base64 encoded",
		}}))
	}
	if len(data) > max {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, validationBody([]Issue{{
			Field: FieldPhoto, Status: StatusRejected, Code: CodePhotoTooLarge,
			Message: fmt.Sprintf("photo must be at most %d bytes", max),
		}}))
	}
	return nil
}

func setAdvisories(c echo.Context, r *Result) {
	adv := r.Advisories()
	if len(adv) == 0 {
		return
	}
	parts := make([]string, len(adv))
	for i, is := range adv {
		parts[i] = is.Field + ":" + is.Code
	}
	c.Response().Header().Set(AdvisoryHeader, strings.Join(parts, ","))
}

func validationBody(issues []Issue) map[string]interface{} {
	return map[string]interface{}{
		"message": "validation failed",
		"issues":  issues,
	}
}

// httpError maps the registry's error taxonomy onto HTTP status codes.
func httpError(err error) error {
	var verr *ValidationError
	var ferr *FormatError
	switch {
	case errors.As(err, &verr):
		return echo.NewHTTPError(http.StatusBadRequest, validationBody(verr.Issues))
	case errors.As(err, &ferr):
		return echo.NewHTTPError(http.StatusBadRequest, validationBody([]Issue{{
			Field: FieldHN, Status: StatusRejected, Code: ferr.Code, Message: ferr.Error(),
		}}))
	case errors.Is(err, ErrValidationFailed), errors.Is(err, ErrInvalidFormat):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	case errors.Is(err, ErrAlreadyExists):
		return echo.NewHTTPError(http.StatusConflict, "patient already exists")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
}
