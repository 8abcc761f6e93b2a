// Package convert maps domain values to and from the google.protobuf.Struct
// messages carried by the gRPC API.
package convert

import (
	"fmt"
	"math"
	"time"

	"github.com/and161185/worklog/internal/errs"
	"github.com/gofrs/uuid/v5"
	"google.golang.org/protobuf/types/known/structpb"
)

const dateLayout = "2006-01-02"

// Fields reads typed values out of a request Struct. Malformed values are
// collected as field issues and reported together by Err.
type Fields struct {
	m   map[string]*structpb.Value
	bad *errs.ValidationError
}

// Read wraps s. A nil Struct reads as empty.
func Read(s *structpb.Struct) *Fields {
	return &Fields{m: s.GetFields(), bad: errs.NewValidation()}
}

// Err returns a *errs.ValidationError listing every malformed field, or nil.
func (f *Fields) Err() error { return f.bad.OrNil() }

func (f *Fields) value(key string) (*structpb.Value, bool) {
	v, ok := f.m[key]
	if !ok || v == nil {
		return nil, false
	}
	if _, isNull := v.GetKind().(*structpb.Value_NullValue); isNull {
		return nil, false
	}
	return v, true
}

// Has reports whether key is present and not null.
func (f *Fields) Has(key string) bool {
	_, ok := f.value(key)
	return ok
}

// String returns a string field, "" when absent.
func (f *Fields) String(key string) string {
	v, ok := f.value(key)
	if !ok {
		return ""
	}
	s, isStr := v.GetKind().(*structpb.Value_StringValue)
	if !isStr {
		f.bad.Add(key, "must be a string")
		return ""
	}
	return s.StringValue
}

// Bool returns a bool field, false when absent.
func (f *Fields) Bool(key string) bool {
	v, ok := f.value(key)
	if !ok {
		return false
	}
	b, isBool := v.GetKind().(*structpb.Value_BoolValue)
	if !isBool {
		f.bad.Add(key, "must be a boolean")
		return false
	}
	return b.BoolValue
}

// Int returns an integral number field, 0 when absent.
func (f *Fields) Int(key string) int64 {
	v, ok := f.value(key)
	if !ok {
		return 0
	}
	n, isNum := v.GetKind().(*structpb.Value_NumberValue)
	if !isNum || n.NumberValue != math.Trunc(n.NumberValue) || math.Abs(n.NumberValue) > 1<<53 {
		f.bad.Add(key, "must be an integer")
		return 0
	}
	return int64(n.NumberValue)
}

// Float returns a number field, 0 when absent.
func (f *Fields) Float(key string) float64 {
	v, ok := f.value(key)
	if !ok {
		return 0
	}
	n, isNum := v.GetKind().(*structpb.Value_NumberValue)
	if !isNum {
		f.bad.Add(key, "must be a number")
		return 0
	}
	return n.NumberValue
}

// UUID returns a uuid field, uuid.Nil when absent.
func (f *Fields) UUID(key string) uuid.UUID {
	s := f.String(key)
	if s == "" {
		return uuid.Nil
	}
	id, err := uuid.FromString(s)
	if err != nil {
		f.bad.Add(key, "must be a uuid")
		return uuid.Nil
	}
	return id
}

// RequiredUUID is UUID that reports an absent value as a field issue.
func (f *Fields) RequiredUUID(key string) uuid.UUID {
	id := f.UUID(key)
	if id == uuid.Nil {
		f.bad.Add(key, "is required")
	}
	return id
}

// OptUUID returns nil when key is absent or empty.
func (f *Fields) OptUUID(key string) *uuid.UUID {
	id := f.UUID(key)
	if id == uuid.Nil {
		return nil
	}
	return &id
}

// UUIDs returns a list of uuids.
func (f *Fields) UUIDs(key string) []uuid.UUID {
	v, ok := f.value(key)
	if !ok {
		return nil
	}
	list, isList := v.GetKind().(*structpb.Value_ListValue)
	if !isList {
		f.bad.Add(key, "must be a list")
		return nil
	}
	out := make([]uuid.UUID, 0, len(list.ListValue.GetValues()))
	for i, item := range list.ListValue.GetValues() {
		id, err := uuid.FromString(item.GetStringValue())
		if err != nil {
			f.bad.Add(key, fmt.Sprintf("item %d must be a uuid", i))
			return nil
		}
		out = append(out, id)
	}
	return out
}

// Time parses an RFC 3339 timestamp or a bare YYYY-MM-DD date (midnight in
// loc). Absent yields the zero time.
func (f *Fields) Time(key string, loc *time.Location) time.Time {
	s := f.String(key)
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	if t, err := time.ParseInLocation(dateLayout, s, loc); err == nil {
		return t
	}
	f.bad.Add(key, "must be an RFC 3339 timestamp or YYYY-MM-DD date")
	return time.Time{}
}

func ts(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func tsPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return ts(*t)
}

func parseTS(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
