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

package base

import (
	"reflect"
)

// IDColumn is the primary key column every mapped table carries.
const IDColumn = "id"

// UpdatedAtColumn is the timestamp column overwritten on every save.
const UpdatedAtColumn = "updated_at"

// Definition stores schema information about an Object. A Definition is
// built once when the object is registered and never modified afterwards,
// so it may be shared freely between goroutines.
type Definition struct {
	// normalized object name, this is the table name
	Name string
	// Primary key of the object
	Key *PrimaryKey
	// Columns is the ordered list of column names. The order is the
	// parameter order of the insert statement.
	Columns []string
	// Column name to data type mapping of the object
	ColumnToType map[string]reflect.Type
}

// Column holds a column name and value for one row.
type Column struct {
	// Name of the column
	Name string
	// Value of the column
	Value interface{}
}

// Row is a single row returned by a connector, keyed by column name.
type Row map[string]interface{}

// PrimaryKey stores information about partition keys
type PrimaryKey struct {
	// List of partition key names
	PartitionKeys []string
}

// HasColumn returns true if the object maps a column with this name.
func (o *Definition) HasColumn(name string) bool {
	_, ok := o.ColumnToType[name]
	return ok
}

// Equal returns true when both definitions describe the same table with
// the same ordered columns and column types.
func (o *Definition) Equal(other *Definition) bool {
	if o.Name != other.Name || len(o.Columns) != len(other.Columns) {
		return false
	}
	for i, c := range o.Columns {
		if other.Columns[i] != c || other.ColumnToType[c] != o.ColumnToType[c] {
			return false
		}
	}
	return true
}

// Object is a marker interface that is used to add connector specific
// annotations to storage objects. Users can embed this interface in any
// storage object structure definition.
//
// For example, UserObject is a representation of the orm annotations:
//
//	type UserObject struct {
//		base.Object `cassandra:"name=users"`
//		ID          string    `column:"name=id"`
//		Email       string    `column:"name=email"`
//		UpdatedAt   time.Time `column:"name=updated_at"`
//	}
//
// Here, base.Object is embedded in UserObject just to specify the
// table name of that object. Every mapped field carries a `column` tag
// naming its column, and the order of the fields is the column order.
// The primary key is always the `id` column.
type Object interface {
}
