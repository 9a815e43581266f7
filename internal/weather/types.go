package weather

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ErrNotFound is matched by every NotFoundError.
var ErrNotFound = errors.New("not found")

// NotFoundError carries the human-readable detail shown to API clients.
type NotFoundError struct {
	Detail string
}

func (e *NotFoundError) Error() string { return e.Detail }

// Is makes errors.Is(err, ErrNotFound) true for any NotFoundError.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// CityNotFound reports that no record exists for city.
func CityNotFound(city string) error {
	return &NotFoundError{Detail: fmt.Sprintf("Weather data for city '%s' not found.", city)}
}

// RecordNotFound reports that no record exists with the given id.
func RecordNotFound(id int64) error {
	return &NotFoundError{Detail: fmt.Sprintf("Weather record with ID %d not found.", id)}
}

// Observation is one weather reading for a city.
type Observation struct {
	City        string  `json:"city" validate:"required,min=1,max=100"`
	Country     string  `json:"country" validate:"len=2"`
	Temperature float64 `json:"temperature"`
	Humidity    int     `json:"humidity" validate:"min=0,max=100"`
	Pressure    int     `json:"pressure" validate:"gt=0,max=2147483647"`
}

// Validate checks the field bounds that must hold before any write.
func (o Observation) Validate() error {
	return validate.Struct(o)
}

// Record is an Observation persisted with an identifier and timestamp.
type Record struct {
	ID int64 `json:"id"`
	Observation
	FetchedAt time.Time `json:"fetched_at"`
}

// Patch holds the measurement fields of a partial update.
// Nil fields are left unchanged.
type Patch struct {
	Temperature *float64 `json:"temperature,omitempty"`
	Humidity    *int     `json:"humidity,omitempty" validate:"omitnil,min=0,max=100"`
	Pressure    *int     `json:"pressure,omitempty" validate:"omitnil,gt=0,max=2147483647"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Temperature == nil && p.Humidity == nil && p.Pressure == nil
}

// Validate checks the bounds of the fields that are present.
func (p Patch) Validate() error {
	return validate.Struct(p)
}
