package repository

import (
	"reflect"
	"time"
)

var timeType = reflect.TypeOf(time.Time{})

// NormalizeTimestamps relabels every time.Time held by the given records as UTC
// while keeping its wall clock reading. A value of 2024-01-01T00:00:00 in any
// other location becomes 2024-01-01T00:00:00Z; no offset arithmetic is applied.
// Values already in UTC are left alone, so the call is idempotent.
//
// Records must be pointers to structs. Fields of type time.Time and *time.Time
// are rewritten, nested struct values are walked, and pointers to other structs
// and slices are skipped since they are related records with their own entries.
func NormalizeTimestamps(records ...any) {
	for _, record := range records {
		v := reflect.ValueOf(record)
		if v.Kind() != reflect.Pointer || v.IsNil() {
			continue
		}
		normalizeValue(v.Elem())
	}
}

// AsUTC returns t with the same wall clock reading tagged as UTC.
func AsUTC(t time.Time) time.Time {
	if t.Location() == time.UTC {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

func normalizeValue(v reflect.Value) {
	if v.Kind() != reflect.Struct {
		return
	}
	if v.Type() == timeType {
		if v.CanSet() {
			v.Set(reflect.ValueOf(AsUTC(v.Interface().(time.Time))))
		}
		return
	}
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		if !field.CanSet() {
			continue
		}
		switch {
		case field.Type() == timeType:
			field.Set(reflect.ValueOf(AsUTC(field.Interface().(time.Time))))
		case field.Kind() == reflect.Pointer && field.Type().Elem() == timeType:
			if !field.IsNil() {
				normalized := AsUTC(field.Elem().Interface().(time.Time))
				field.Elem().Set(reflect.ValueOf(normalized))
			}
		case field.Kind() == reflect.Struct:
			normalizeValue(field)
		}
	}
}
