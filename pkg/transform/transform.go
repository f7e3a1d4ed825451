package transform

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CastFunc converts a raw CSV cell into a typed value.
type CastFunc func(value string) (interface{}, error)

// Registry holds the casts available for CSVW column datatypes.
type Registry struct {
	casters map[string]CastFunc
}

// NewRegistry creates a registry with the default CSVW datatype casts.
// Datatypes with no registered cast pass values through as strings.
func NewRegistry() *Registry {
	r := &Registry{
		casters: make(map[string]CastFunc),
	}

	r.Register("date", castDate)
	r.Register("number", castNumber)
	r.Register("integer", castInteger)
	r.Register("boolean", castBoolean)

	return r
}

// Register adds a cast for a datatype
func (r *Registry) Register(datatype string, cast CastFunc) {
	r.casters[datatype] = cast
}

// Lookup returns the cast for a datatype, if one is registered.
func (r *Registry) Lookup(datatype string) (CastFunc, bool) {
	cast, ok := r.casters[datatype]
	return cast, ok
}

// Cast converts value per the column datatype. Unregistered datatypes
// (including "string") return the value unchanged.
func (r *Registry) Cast(datatype, value string) (interface{}, error) {
	cast, ok := r.casters[datatype]
	if !ok {
		return value, nil
	}
	return cast(value)
}

// castDate validates an ISO date and normalizes it to YYYY-MM-DD.
func castDate(value string) (interface{}, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(value))
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", value, err)
	}
	return t.Format("2006-01-02"), nil
}

func castNumber(value string) (interface{}, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q: %w", value, err)
	}
	return f, nil
}

func castInteger(value string) (interface{}, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid integer %q: %w", value, err)
	}
	return n, nil
}

func castBoolean(value string) (interface{}, error) {
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return nil, fmt.Errorf("invalid boolean %q: %w", value, err)
	}
	return b, nil
}
