package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/neexbeast/weather-service/internal/weather"
)

const (
	defaultHistoryLimit = 10
	maxHistoryLimit     = 100
	maxBodyBytes        = 1 << 20
)

// validate reports request errors under their JSON field names.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// createRequest is the body of POST /weather/. Pointers let "required"
// distinguish a missing field from a zero value.
type createRequest struct {
	City        *string  `json:"city" validate:"required,min=1,max=100"`
	Country     *string  `json:"country" validate:"required,len=2"`
	Temperature *float64 `json:"temperature" validate:"required"`
	Humidity    *int     `json:"humidity" validate:"required,min=0,max=100"`
	Pressure    *int     `json:"pressure" validate:"required,gt=0,max=2147483647"`
}

func (c createRequest) observation() weather.Observation {
	return weather.Observation{
		City:        *c.City,
		Country:     *c.Country,
		Temperature: *c.Temperature,
		Humidity:    *c.Humidity,
		Pressure:    *c.Pressure,
	}
}

// FieldError is one entry of a 422 response.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Handlers holds the dependencies for all HTTP handlers.
type Handlers struct {
	svc WeatherService
	log *slog.Logger
}

// NewHandlers constructs Handlers with all required dependencies.
func NewHandlers(svc WeatherService, log *slog.Logger) *Handlers {
	return &Handlers{
		svc: svc,
		log: log,
	}
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeInternalError(w http.ResponseWriter) {
	writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "Internal Server Error"})
}

func writeValidation(w http.ResponseWriter, errs ...FieldError) {
	writeJSON(w, http.StatusUnprocessableEntity, map[string][]FieldError{"detail": errs})
}

// writeError maps a service error to a response. Not-found errors carry their
// own detail; everything else is logged and hidden behind a generic 500.
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var nf *weather.NotFoundError
	if errors.As(err, &nf) {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": nf.Detail})
		return
	}
	h.log.ErrorContext(r.Context(), op+" failed", "path", r.URL.Path, "err", err)
	writeInternalError(w)
}

// CreateWeather handles POST /weather/.
func (h *Handlers) CreateWeather(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if errs := decodeBody(w, r, &req); errs != nil {
		writeValidation(w, errs...)
		return
	}

	rec, err := h.svc.CreateManual(r.Context(), req.observation())
	if err != nil {
		h.writeError(w, r, "create weather", err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// cityParam returns the decoded {city} segment. chi hands back the escaped
// form when the request path carries escapes such as %2F.
func cityParam(r *http.Request) string {
	city := chi.URLParam(r, "city")
	if r.URL.RawPath == "" {
		return city
	}
	if decoded, err := url.PathUnescape(city); err == nil {
		return decoded
	}
	return city
}

// GetWeather handles GET /weather/{city}.
// Live data is stored and returned; the latest stored row is the fallback.
func (h *Handlers) GetWeather(w http.ResponseWriter, r *http.Request) {
	city := cityParam(r)

	rec, err := h.svc.FetchOrRefresh(r.Context(), city)
	if err != nil {
		h.writeError(w, r, "get weather", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// GetHistory handles GET /weather/{city}/history.
func (h *Handlers) GetHistory(w http.ResponseWriter, r *http.Request) {
	city := cityParam(r)

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxHistoryLimit {
			writeValidation(w, FieldError{
				Field:   "limit",
				Message: fmt.Sprintf("must be an integer between 1 and %d", maxHistoryLimit),
			})
			return
		}
		limit = n
	}

	records, err := h.svc.History(r.Context(), city, limit)
	if err != nil {
		h.writeError(w, r, "get history", err)
		return
	}
	if records == nil {
		records = []*weather.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

// UpdateWeather handles PATCH /weather/{recordID}.
func (h *Handlers) UpdateWeather(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(w, r)
	if !ok {
		return
	}

	var patch weather.Patch
	if errs := decodeBody(w, r, &patch); errs != nil {
		writeValidation(w, errs...)
		return
	}

	rec, err := h.svc.UpdateRecord(r.Context(), id, patch)
	if err != nil {
		h.writeError(w, r, "update weather", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// DeleteWeather handles DELETE /weather/{recordID}.
func (h *Handlers) DeleteWeather(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(w, r)
	if !ok {
		return
	}

	if err := h.svc.DeleteRecord(r.Context(), id); err != nil {
		h.writeError(w, r, "delete weather", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// recordID parses the {recordID} path segment, answering 422 when it is not
// a positive integer.
func recordID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "recordID"), 10, 64)
	if err != nil || id < 1 {
		writeValidation(w, FieldError{Field: "record_id", Message: "must be a positive integer"})
		return 0, false
	}
	return id, true
}

// decodeBody reads a JSON object into dst and validates it. A nil result
// means dst is ready to use.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) []FieldError {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return []FieldError{decodeError(err)}
	}
	if dec.More() {
		return []FieldError{{Field: "body", Message: "must contain a single JSON object"}}
	}

	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return []FieldError{{Field: "body", Message: err.Error()}}
		}
		out := make([]FieldError, 0, len(verrs))
		for _, fe := range verrs {
			out = append(out, FieldError{Field: fe.Field(), Message: fieldMessage(fe)})
		}
		return out
	}
	return nil
}

func decodeError(err error) FieldError {
	var typeErr *json.UnmarshalTypeError
	var syntaxErr *json.SyntaxError
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &typeErr):
		if typeErr.Field == "" {
			return FieldError{Field: "body", Message: "must be a JSON object"}
		}
		return FieldError{Field: typeErr.Field, Message: "must be of type " + typeErr.Type.String()}
	case errors.As(err, &syntaxErr):
		return FieldError{Field: "body", Message: fmt.Sprintf("malformed JSON at offset %d", syntaxErr.Offset)}
	case errors.As(err, &maxErr):
		return FieldError{Field: "body", Message: fmt.Sprintf("must not exceed %d bytes", maxErr.Limit)}
	case errors.Is(err, io.EOF):
		return FieldError{Field: "body", Message: "must not be empty"}
	case errors.Is(err, io.ErrUnexpectedEOF):
		return FieldError{Field: "body", Message: "malformed JSON"}
	default:
		return FieldError{Field: "body", Message: err.Error()}
	}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "field required"
	case "len":
		return fmt.Sprintf("must be exactly %s characters", fe.Param())
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return "must be greater than or equal to " + fe.Param()
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return "must be less than or equal to " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	default:
		return "failed " + fe.Tag() + " validation"
	}
}

// Health handles GET /health. It reports process liveness only.
func Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ReadinessHandlerFunc returns an http.HandlerFunc that checks db and redis connectivity.
func ReadinessHandlerFunc(db, redis Pinger, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		status := http.StatusOK
		dbStatus := "ok"
		redisStatus := "ok"

		if err := db.Ping(ctx); err != nil {
			log.Error("readiness: db ping failed", "err", err)
			dbStatus = "error"
			status = http.StatusServiceUnavailable
		}

		if err := redis.Ping(ctx); err != nil {
			log.Error("readiness: redis ping failed", "err", err)
			redisStatus = "error"
			status = http.StatusServiceUnavailable
		}

		overall := "ok"
		if status != http.StatusOK {
			overall = "degraded"
		}
		writeJSON(w, status, map[string]string{
			"status": overall,
			"db":     dbStatus,
			"redis":  redisStatus,
		})
	}
}
