// Copyright (c) 2019 Uber Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package orm

import (
	"reflect"
	"strings"
	"time"
	"unicode"

	"github.com/uber/cqlorm/pkg/storage/cql"
	"github.com/uber/cqlorm/pkg/storage/objects/base"

	"go.uber.org/yarpc/yarpcerrors"
)

const (
	// _cassandraTag annotates the embedded base.Object with the table name
	_cassandraTag = "cassandra"
	// _columnTag annotates every mapped field with its column name
	_columnTag = "column"
	// _skipTag excludes a field from the mapping: `column:"-"`
	_skipTag = "-"

	_nameKey       = "name"
	_primaryKeyKey = "primaryKey"
)

var (
	_objectType = reflect.TypeOf((*base.Object)(nil)).Elem()

	// the only primary key layouts accepted in the cassandra annotation
	_idPrimaryKeys = map[string]struct{}{
		"((id))": {},
		"(id)":   {},
		"id":     {},
	}
)

// Table is the ORM representation of a storage object registered against
// a single DB table. A Table is immutable once built.
type Table struct {
	base.Definition

	// Statements are the CQL statements of this table
	Statements *cql.Statements

	// objType is the struct type of the storage object
	objType reflect.Type
	// fieldIndex maps the position of a column in Definition.Columns to
	// the index of its field in objType
	fieldIndex []int
	// idField is the field index of the id column
	idField int
	// updatedAtField is the field index of the updated_at column, -1 if
	// the object does not map one
	updatedAtField int
}

// column is a column name and the index of the field holding it
type column struct {
	name  string
	field int
}

// TableFromObject builds a Table from the annotations of a storage
// object. The object must be a pointer to a struct that embeds
// base.Object annotated with `cassandra:"name=<table>"` and tags every
// mapped field with `column:"name=<column>"`. Column order follows the
// order in which the fields are declared.
func TableFromObject(o base.Object) (*Table, error) {
	typ, err := objectStructType(o)
	if err != nil {
		return nil, err
	}

	tableName, err := tableNameFromType(typ)
	if err != nil {
		return nil, err
	}

	var cols []column
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		if f.Anonymous && f.Type == _objectType {
			continue
		}
		tag, ok := f.Tag.Lookup(_columnTag)
		if !ok {
			return nil, newDescriptorError(typ.Name(),
				"field %s has no %s annotation", f.Name, _columnTag)
		}
		if tag == _skipTag {
			continue
		}
		name, err := columnNameFromTag(tag)
		if err != nil {
			return nil, newDescriptorError(typ.Name(),
				"field %s: %v", f.Name, err)
		}
		cols = append(cols, column{name: name, field: i})
	}
	return newTable(typ, tableName, cols)
}

// TableFromSchema builds a Table for a storage object from an explicit
// table name and ordered column list. The column order given here is the
// column order of the table, whatever the order of the struct fields.
// Every column must match a field, either by its `column` annotation or
// by the snake_case form of the field name, and every field must be
// covered by a column unless annotated `column:"-"`.
func TableFromSchema(
	o base.Object,
	tableName string,
	columnNames ...string,
) (*Table, error) {
	typ, err := objectStructType(o)
	if err != nil {
		return nil, err
	}

	fieldByColumn := make(map[string]int)
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		if f.Anonymous && f.Type == _objectType {
			continue
		}
		name := toSnakeCase(f.Name)
		if tag, ok := f.Tag.Lookup(_columnTag); ok {
			if tag == _skipTag {
				continue
			}
			if name, err = columnNameFromTag(tag); err != nil {
				return nil, newDescriptorError(typ.Name(),
					"field %s: %v", f.Name, err)
			}
		}
		if _, ok := fieldByColumn[name]; ok {
			return nil, newDescriptorError(typ.Name(),
				"column %q is mapped by more than one field", name)
		}
		fieldByColumn[name] = i
	}

	cols := make([]column, 0, len(columnNames))
	for _, name := range columnNames {
		i, ok := fieldByColumn[name]
		if !ok {
			return nil, newDescriptorError(typ.Name(),
				"no field for column %q", name)
		}
		cols = append(cols, column{name: name, field: i})
	}
	if len(cols) < len(fieldByColumn) {
		return nil, newDescriptorError(typ.Name(),
			"schema of table %q does not cover all fields", tableName)
	}
	return newTable(typ, tableName, cols)
}

// objectStructType returns the struct type behind a storage object.
func objectStructType(o base.Object) (reflect.Type, error) {
	typ := reflect.TypeOf(o)
	if typ == nil || typ.Kind() != reflect.Ptr ||
		typ.Elem().Kind() != reflect.Struct {
		return nil, newDescriptorError(
			typeName(typ), "storage object must be a pointer to a struct")
	}
	return typ.Elem(), nil
}

// tableNameFromType reads the table name from the annotation of the
// embedded base.Object.
func tableNameFromType(typ reflect.Type) (string, error) {
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		if !f.Anonymous || f.Type != _objectType {
			continue
		}
		tag, ok := f.Tag.Lookup(_cassandraTag)
		if !ok {
			return "", newDescriptorError(typ.Name(),
				"base.Object has no %s annotation", _cassandraTag)
		}
		kv := parseTag(tag)
		if pk, ok := kv[_primaryKeyKey]; ok {
			if _, ok := _idPrimaryKeys[strings.Replace(pk, " ", "", -1)]; !ok {
				return "", newDescriptorError(typ.Name(),
					"unsupported primary key %q, only (id) is supported", pk)
			}
		}
		name := kv[_nameKey]
		if name == "" {
			return "", newDescriptorError(typ.Name(), "table name is missing")
		}
		return name, nil
	}
	return "", newDescriptorError(typ.Name(), "base.Object is not embedded")
}

func columnNameFromTag(tag string) (string, error) {
	name := parseTag(tag)[_nameKey]
	if name == "" {
		return "", yarpcerrors.InvalidArgumentErrorf(
			"malformed column annotation %q", tag)
	}
	return name, nil
}

// parseTag splits an annotation like `name=jobs, primaryKey=((id), ck)`
// into its key/value pairs. Commas nested in parentheses do not split.
func parseTag(tag string) map[string]string {
	kv := make(map[string]string)
	depth, start := 0, 0
	add := func(part string) {
		if idx := strings.Index(part, "="); idx > 0 {
			kv[strings.TrimSpace(part[:idx])] = strings.TrimSpace(part[idx+1:])
		}
	}
	for i, r := range tag {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				add(tag[start:i])
				start = i + 1
			}
		}
	}
	add(tag[start:])
	return kv
}

// newTable validates the ordered columns of a storage object and renders
// the table statements.
func newTable(typ reflect.Type, tableName string, cols []column) (*Table, error) {
	if len(cols) == 0 {
		return nil, newDescriptorError(typ.Name(), "no named fields to map")
	}

	t := &Table{
		Definition: base.Definition{
			Name: tableName,
			Key: &base.PrimaryKey{
				PartitionKeys: []string{base.IDColumn},
			},
			Columns:      make([]string, 0, len(cols)),
			ColumnToType: make(map[string]reflect.Type, len(cols)),
		},
		objType:        typ,
		fieldIndex:     make([]int, 0, len(cols)),
		idField:        -1,
		updatedAtField: -1,
	}

	for _, c := range cols {
		f := typ.Field(c.field)
		if f.PkgPath != "" {
			return nil, newDescriptorError(typ.Name(),
				"field %s is not exported", f.Name)
		}
		if !cql.IsValidIdentifier(c.name) {
			return nil, newDescriptorError(typ.Name(),
				"invalid column name %q", c.name)
		}
		if _, ok := t.ColumnToType[c.name]; ok {
			return nil, newDescriptorError(typ.Name(),
				"duplicate column %q", c.name)
		}

		switch c.name {
		case base.IDColumn:
			t.idField = c.field
		case base.UpdatedAtColumn:
			if f.Type != reflect.TypeOf(time.Time{}) {
				return nil, newDescriptorError(typ.Name(),
					"column %s must be a time.Time, not %s", c.name, f.Type)
			}
			t.updatedAtField = c.field
		}

		t.Columns = append(t.Columns, c.name)
		t.ColumnToType[c.name] = f.Type
		t.fieldIndex = append(t.fieldIndex, c.field)
	}

	if t.idField < 0 {
		return nil, newDescriptorError(typ.Name(),
			"primary key column %q is not mapped", base.IDColumn)
	}

	stmts, err := cql.NewStatements(tableName, t.Columns)
	if err != nil {
		return nil, newDescriptorError(typ.Name(), "%v", err)
	}
	t.Statements = stmts
	return t, nil
}

// ObjectType returns the struct type mapped by this table
func (t *Table) ObjectType() reflect.Type {
	return t.objType
}

// NewObject returns a new zero storage object of the mapped type
func (t *Table) NewObject() base.Object {
	return reflect.New(t.objType).Interface()
}

// objectValue returns the struct value behind e after checking that e is
// a non nil pointer to the mapped type.
func (t *Table) objectValue(e base.Object) (reflect.Value, error) {
	v := reflect.ValueOf(e)
	if !v.IsValid() || v.Type() != reflect.PtrTo(t.objType) || v.IsNil() {
		return reflect.Value{}, yarpcerrors.InvalidArgumentErrorf(
			"object of type %s does not belong to table %s",
			typeName(reflect.TypeOf(e)), t.Name)
	}
	return v.Elem(), nil
}

// BindValues returns the values of every column of e, in column order.
// The result matches the placeholders of the insert statement one to one.
func (t *Table) BindValues(e base.Object) ([]interface{}, error) {
	v, err := t.objectValue(e)
	if err != nil {
		return nil, err
	}

	values := make([]interface{}, len(t.Columns))
	for i, name := range t.Columns {
		fv := v.Field(t.fieldIndex[i])
		value, ok := bindValue(fv)
		if !ok {
			return nil, &BindError{Column: name, Type: bindTypeName(fv)}
		}
		values[i] = value
	}
	return values, nil
}

// GetRowFromObject translates a storage object into a row, which is the
// list of columns in column order.
func (t *Table) GetRowFromObject(e base.Object) ([]base.Column, error) {
	values, err := t.BindValues(e)
	if err != nil {
		return nil, err
	}
	row := make([]base.Column, len(values))
	for i, value := range values {
		row[i] = base.Column{
			Name:  t.Columns[i],
			Value: value,
		}
	}
	return row, nil
}

// GetKeyRowFromObject returns the primary key row of a storage object.
func (t *Table) GetKeyRowFromObject(e base.Object) ([]base.Column, error) {
	v, err := t.objectValue(e)
	if err != nil {
		return nil, err
	}
	fv := v.Field(t.idField)
	value, ok := bindValue(fv)
	if !ok {
		return nil, &BindError{Column: base.IDColumn, Type: bindTypeName(fv)}
	}
	return []base.Column{
		{
			Name:  base.IDColumn,
			Value: value,
		},
	}, nil
}

// SetObjectFromRow populates every column field of e from row. Either all
// columns are set or e is left untouched.
func (t *Table) SetObjectFromRow(e base.Object, row base.Row) error {
	v, err := t.objectValue(e)
	if err != nil {
		return err
	}

	out := reflect.New(t.objType).Elem()
	out.Set(v)
	for i, name := range t.Columns {
		raw, ok := row[name]
		if !ok {
			return &HydrationError{
				Table:  t.Name,
				Column: name,
				Reason: MissingColumn,
			}
		}
		value, err := convertValue(raw, t.ColumnToType[name])
		if err != nil {
			return &HydrationError{
				Table:  t.Name,
				Column: name,
				Reason: TypeMismatch,
				Detail: err.Error(),
			}
		}
		out.Field(t.fieldIndex[i]).Set(value)
	}
	v.Set(out)
	return nil
}

// SetUpdatedAt sets the updated_at column of e to ts. It returns false if
// the object has no updated_at column.
func (t *Table) SetUpdatedAt(e base.Object, ts time.Time) (bool, error) {
	v, err := t.objectValue(e)
	if err != nil {
		return false, err
	}
	if t.updatedAtField < 0 {
		return false, nil
	}
	v.Field(t.updatedAtField).Set(reflect.ValueOf(ts))
	return true, nil
}

// BindSingle wraps one value bound for column into a parameter list.
func BindSingle(column string, value interface{}) ([]interface{}, error) {
	bound, ok := bindValue(reflect.ValueOf(value))
	if !ok {
		return nil, &BindError{
			Column: column,
			Type:   typeName(reflect.TypeOf(value)),
		}
	}
	return []interface{}{bound}, nil
}

func bindTypeName(v reflect.Value) string {
	if v.Kind() == reflect.Interface && !v.IsNil() {
		return v.Elem().Type().String()
	}
	return v.Type().String()
}

func typeName(typ reflect.Type) string {
	if typ == nil {
		return "nil"
	}
	return typ.String()
}

// toSnakeCase turns a Go field name into its column name,
// e.g. JobID -> job_id, UpdatedAt -> updated_at.
func toSnakeCase(name string) string {
	runes := []rune(name)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) ||
				unicode.IsDigit(runes[i-1]) ||
				(i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}
