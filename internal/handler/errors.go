package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/promo-engine/internal/domain"
	"github.com/xenking/promo-engine/internal/domain/auth"
	"github.com/xenking/promo-engine/internal/domain/promotion"
)

type detail struct {
	field  string
	reason string
}

// statusOf classifies err by the domain error taxonomy.
func statusOf(err error) int {
	var rangeErr *promotion.RangeError
	switch {
	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, errForbidden):
		return http.StatusForbidden
	case errors.As(err, &rangeErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps err to a status and writes the error body. Unclassified
// errors are logged and reported without detail.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeMessage(w, status, "internal server error")
		return
	}

	ds := details(err)
	message := err.Error()
	if len(ds) > 0 {
		message = "validation failed"
	}
	writeBody(w, status, message, ds)
}

// details lists the individual violations of a validation failure.
func details(err error) []detail {
	var (
		validationErr *domain.ValidationError
		rangeErr      *promotion.RangeError
		fieldErr      *domain.FieldError
	)
	switch {
	case errors.As(err, &validationErr):
		return violations(validationErr.Violations)
	case errors.As(err, &rangeErr):
		return violations([]error{rangeErr})
	case errors.As(err, &fieldErr):
		return []detail{{field: fieldErr.Field, reason: fieldErr.Reason}}
	default:
		return nil
	}
}

func violations(errs []error) []detail {
	var out []detail
	for _, v := range errs {
		var (
			fieldErr *domain.FieldError
			rangeErr *promotion.RangeError
		)
		switch {
		case errors.As(v, &rangeErr):
			for _, rv := range rangeErr.Violations {
				out = append(out, detail{field: "slabs", reason: rv.Error()})
			}
		case errors.As(v, &fieldErr):
			out = append(out, detail{field: fieldErr.Field, reason: fieldErr.Reason})
		default:
			out = append(out, detail{reason: v.Error()})
		}
	}
	return out
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeBody(w, status, message, nil)
}

func writeBody(w http.ResponseWriter, status int, message string, details []detail) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("code")
	e.Int(status)
	e.FieldStart("message")
	e.Str(message)
	if len(details) > 0 {
		e.FieldStart("details")
		e.ArrStart()
		for _, d := range details {
			e.ObjStart()
			if d.field != "" {
				e.FieldStart("field")
				e.Str(d.field)
			}
			e.FieldStart("reason")
			e.Str(d.reason)
			e.ObjEnd()
		}
		e.ArrEnd()
	}
	e.ObjEnd()
	writeRaw(w, status, e.Bytes())
}

func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
