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

package cql

import (
	"strings"

	"github.com/pkg/errors"
)

// ColumnMarker marks the spot in the find-by-column template where the
// column name is substituted at call time.
const ColumnMarker = "{}"

const (
	_idColumn = "id"
	_allCols  = "*"
)

// Statements holds the CQL statements of one table. They are rendered
// once when the table is registered and reused by every call.
type Statements struct {
	// FindByID selects a row by its id
	FindByID string
	// FindByColumnTemplate selects rows by an arbitrary column. The
	// column name replaces ColumnMarker.
	FindByColumnTemplate string
	// Insert writes every column of a row, in column order
	Insert string
	// Delete removes a row by its id
	Delete string

	// FindByColumnTemplate split around ColumnMarker
	byColumnPrefix string
	byColumnSuffix string
}

// NewStatements renders the statements for a table with the given
// ordered columns. Table and column names must be valid identifiers.
func NewStatements(tableName string, cols []string) (*Statements, error) {
	if !IsValidTableName(tableName) {
		return nil, errors.Errorf("invalid table name %q", tableName)
	}
	if len(cols) == 0 {
		return nil, errors.Errorf("table %q has no columns", tableName)
	}
	for _, c := range cols {
		if !IsValidIdentifier(c) {
			return nil, errors.Errorf("invalid column name %q", c)
		}
	}

	findByID, err := SelectStmt(
		Table(tableName),
		Columns([]string{_allCols}),
		Conditions([]string{_idColumn}),
		AllowFiltering(true),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to render find by id statement")
	}

	findByColumn, err := SelectStmt(
		Table(tableName),
		Columns([]string{_allCols}),
		Conditions([]string{ColumnMarker}),
		AllowFiltering(true),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to render find by column statement")
	}

	insert, err := InsertStmt(
		Table(tableName),
		Columns(cols),
		Values(make([]interface{}, len(cols))),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to render insert statement")
	}
	if n := Placeholders(insert); n != len(cols) {
		return nil, errors.Errorf(
			"insert statement has %d bind markers for %d columns", n, len(cols))
	}

	del, err := DeleteStmt(
		Table(tableName),
		Conditions([]string{_idColumn}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to render delete statement")
	}

	idx := strings.Index(findByColumn, ColumnMarker)
	return &Statements{
		FindByID:             findByID,
		FindByColumnTemplate: findByColumn,
		Insert:               insert,
		Delete:               del,
		byColumnPrefix:       findByColumn[:idx],
		byColumnSuffix:       findByColumn[idx+len(ColumnMarker):],
	}, nil
}

// FindByColumn returns the find-by-column statement for column. The
// column is substituted textually, callers must make sure it is one of
// the table's own columns.
func (s *Statements) FindByColumn(column string) string {
	return s.byColumnPrefix + column + s.byColumnSuffix
}

// Placeholders returns the number of bind markers in stmt.
func Placeholders(stmt string) int {
	return strings.Count(stmt, "?")
}
