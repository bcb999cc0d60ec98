// Package mapping describes how domain records map onto relational tables.
//
// Every entity lists its columns explicitly, field by field. Nothing is derived
// from Go field names, so renaming a struct field never silently renames a column.
package mapping

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// RelationKind is the cardinality of a relationship seen from the owning entity.
type RelationKind int

const (
	// ManyToOne relations hold a foreign key column on the owning entity.
	ManyToOne RelationKind = iota
	// OneToMany relations are the inverse side; the foreign key lives on Target.
	OneToMany
)

// Column binds a struct field to a column name.
type Column struct {
	Field string
	Name  string
}

// Relation describes a navigation between two mapped entities.
type Relation struct {
	Kind RelationKind
	// Navigation is the struct field holding the related record(s).
	Navigation string
	// Target is the related entity name.
	Target string
	// ForeignKey is the field carrying the key. For ManyToOne it is on the owner,
	// for OneToMany it is on Target.
	ForeignKey string
	Required   bool
}

// Entity is the mapping of one domain type.
type Entity struct {
	Name      string
	Schema    string
	Table     string
	Key       string
	Columns   []Column
	Relations []Relation

	typ reflect.Type
}

// ErrUnmapped is returned for values whose type has no mapping.
var ErrUnmapped = errors.New("mapping: type is not mapped")

// ErrMissingRequired is returned when a required many-to-one relation has no key.
var ErrMissingRequired = errors.New("mapping: required relation missing")

// Type returns the Go struct type the entity maps.
func (e *Entity) Type() reflect.Type { return e.typ }

// QualifiedTable returns schema.table.
func (e *Entity) QualifiedTable() string {
	if e.Schema == "" {
		return e.Table
	}
	return e.Schema + "." + e.Table
}

// KeyColumn returns the column bound to the key field.
func (e *Entity) KeyColumn() string {
	for _, c := range e.Columns {
		if c.Field == e.Key {
			return c.Name
		}
	}
	return ""
}

// Column returns the column name for field, or "" when unmapped.
func (e *Entity) Column(field string) string {
	for _, c := range e.Columns {
		if c.Field == field {
			return c.Name
		}
	}
	return ""
}

// ColumnList returns the comma separated column list, each prefixed with alias when set.
func (e *Entity) ColumnList(alias string) string {
	names := make([]string, 0, len(e.Columns))
	for _, c := range e.Columns {
		if alias != "" {
			names = append(names, alias+"."+c.Name)
			continue
		}
		names = append(names, c.Name)
	}
	return strings.Join(names, ", ")
}

// Select returns SELECT <columns> FROM <table> [alias].
func (e *Entity) Select(alias string) string {
	from := e.QualifiedTable()
	if alias != "" {
		from += " " + alias
	}
	return "SELECT " + e.ColumnList(alias) + " FROM " + from
}

// Insert returns an INSERT for every non-key column, returning the generated key.
func (e *Entity) Insert() string {
	cols := e.nonKey()
	names := make([]string, len(cols))
	params := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
		params[i] = "$" + strconv.Itoa(i+1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		e.QualifiedTable(), strings.Join(names, ", "), strings.Join(params, ", "), e.KeyColumn())
}

// Update returns an UPDATE of every non-key column filtered by key.
func (e *Entity) Update() string {
	cols := e.nonKey()
	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = c.Name + " = $" + strconv.Itoa(i+1)
	}
	return fmt.Sprintf("UPDATE %s SET %s WHERE %s = $%d",
		e.QualifiedTable(), strings.Join(sets, ", "), e.KeyColumn(), len(cols)+1)
}

// Delete returns a DELETE filtered by key.
func (e *Entity) Delete() string {
	return fmt.Sprintf("DELETE FROM %s WHERE %s = $1", e.QualifiedTable(), e.KeyColumn())
}

// Values returns the non-key column values of record in Insert/Update order.
func (e *Entity) Values(record any) ([]any, error) {
	v, err := e.structValue(record)
	if err != nil {
		return nil, err
	}
	cols := e.nonKey()
	out := make([]any, len(cols))
	for i, c := range cols {
		out[i] = v.FieldByName(c.Field).Interface()
	}
	return out, nil
}

// KeyValue returns the key field value of record.
func (e *Entity) KeyValue(record any) (any, error) {
	v, err := e.structValue(record)
	if err != nil {
		return nil, err
	}
	return v.FieldByName(e.Key).Interface(), nil
}

// KeyTarget returns a pointer to the key field of record.
func (e *Entity) KeyTarget(record any) (any, error) {
	v, err := e.structValue(record)
	if err != nil {
		return nil, err
	}
	return v.FieldByName(e.Key).Addr().Interface(), nil
}

// Targets returns pointers to every mapped field of record in column order,
// suitable for Scan after a query built with Select or ColumnList.
func (e *Entity) Targets(record any) ([]any, error) {
	v, err := e.structValue(record)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(e.Columns))
	for i, c := range e.Columns {
		out[i] = v.FieldByName(c.Field).Addr().Interface()
	}
	return out, nil
}

// FixupForeignKeys copies the key of each populated many-to-one navigation into
// its foreign key field when that field is still zero. Related records staged
// earlier in the same save receive their generated key first, so the copy sees it.
func (e *Entity) FixupForeignKeys(record any) error {
	v, err := e.structValue(record)
	if err != nil {
		return err
	}
	for _, rel := range e.Relations {
		if rel.Kind != ManyToOne {
			continue
		}
		fk := v.FieldByName(rel.ForeignKey)
		if !fk.IsZero() {
			continue
		}
		nav := v.FieldByName(rel.Navigation)
		if nav.Kind() != reflect.Pointer || nav.IsNil() {
			continue
		}
		target, ok := Lookup(rel.Target)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnmapped, rel.Target)
		}
		key := nav.Elem().FieldByName(target.Key)
		if key.IsValid() && fk.Type() == key.Type() {
			fk.Set(key)
		}
	}
	return nil
}

// Snapshot captures the key and many-to-one foreign key fields of record. The
// returned func writes them back, undoing what a failed save assigned.
func (e *Entity) Snapshot(record any) (func(), error) {
	v, err := e.structValue(record)
	if err != nil {
		return nil, err
	}
	fields := []string{e.Key}
	for _, rel := range e.Relations {
		if rel.Kind == ManyToOne {
			fields = append(fields, rel.ForeignKey)
		}
	}
	saved := make([]reflect.Value, len(fields))
	for i, f := range fields {
		saved[i] = reflect.ValueOf(v.FieldByName(f).Interface())
	}
	return func() {
		for i, f := range fields {
			v.FieldByName(f).Set(saved[i])
		}
	}, nil
}

// CheckRequired reports required many-to-one relations whose foreign key is zero.
func (e *Entity) CheckRequired(record any) error {
	v, err := e.structValue(record)
	if err != nil {
		return err
	}
	for _, rel := range e.Relations {
		if rel.Kind != ManyToOne || !rel.Required {
			continue
		}
		if v.FieldByName(rel.ForeignKey).IsZero() {
			return fmt.Errorf("%w: %s.%s", ErrMissingRequired, e.Name, rel.ForeignKey)
		}
	}
	return nil
}

func (e *Entity) nonKey() []Column {
	cols := make([]Column, 0, len(e.Columns))
	for _, c := range e.Columns {
		if c.Field != e.Key {
			cols = append(cols, c)
		}
	}
	return cols
}

func (e *Entity) structValue(record any) (reflect.Value, error) {
	v := reflect.ValueOf(record)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return reflect.Value{}, fmt.Errorf("mapping: %s requires a non-nil pointer, got %T", e.Name, record)
	}
	v = v.Elem()
	if v.Type() != e.typ {
		return reflect.Value{}, fmt.Errorf("mapping: %s cannot bind %T", e.Name, record)
	}
	return v, nil
}
