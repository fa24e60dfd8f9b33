package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// AccessEntry is one access to patient data.
type AccessEntry struct {
	RequestID string
	Action    string
	// Record is the hospital number from the path, empty for collection
	// routes. It is written as given by the caller.
	Record string
	Route  string
	Status int
	Remote string
}

// AccessRecorder persists access entries.
type AccessRecorder interface {
	RecordAccess(entry AccessEntry)
}

type AccessRecorderFunc func(entry AccessEntry)

func (f AccessRecorderFunc) RecordAccess(entry AccessEntry) { f(entry) }

// LogRecorder writes access entries to a dedicated zerolog stream.
func LogRecorder(logger zerolog.Logger) AccessRecorder {
	return AccessRecorderFunc(func(e AccessEntry) {
		logger.Info().
			Str("request_id", e.RequestID).
			Str("action", e.Action).
			Str("record", e.Record).
			Str("route", e.Route).
			Int("status", e.Status).
			Str("remote_ip", e.Remote).
			Msg("patient access")
	})
}

// Audit records every request under prefix, successful or not, as an
// AccessEntry. Requests outside prefix pass through untouched.
func Audit(prefix, param string, rec AccessRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !strings.HasPrefix(c.Request().URL.Path, prefix) {
				return next(c)
			}

			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			} else if err != nil {
				status = http.StatusInternalServerError
			}
			rec.RecordAccess(AccessEntry{
				RequestID: GetRequestID(c),
				Action:    accessAction(c.Request().Method, c.Path(), c.Param(param) != ""),
				Record:    c.Param(param),
				Route:     c.Path(),
				Status:    status,
				Remote:    c.RealIP(),
			})
			return err
		}
	}
}

func accessAction(method, route string, single bool) string {
	if i := strings.LastIndexByte(route, '/'); i >= 0 && !single {
		switch op := route[i+1:]; op {
		case "export", "validate":
			return op
		}
	}
	switch method {
	case http.MethodGet, http.MethodHead:
		if single {
			return "read"
		}
		return "list"
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	}
	return strings.ToLower(method)
}
