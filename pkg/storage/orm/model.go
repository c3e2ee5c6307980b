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
	"context"
	"time"

	"github.com/uber/cqlorm/pkg/storage/objects/base"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.uber.org/yarpc/yarpcerrors"
)

// Model offers find, save and delete operations for storage objects of
// type T. T must be a struct; operations take and return *T.
// A Model is safe for concurrent use.
type Model[T any] struct {
	table *Table
	now   func() time.Time
}

// ModelOption configures a Model
type ModelOption func(*modelOptions)

type modelOptions struct {
	registry  *Registry
	tableName string
	columns   []string
	now       func() time.Time
}

// WithRegistry registers the model in r instead of the default registry
func WithRegistry(r *Registry) ModelOption {
	return func(o *modelOptions) {
		o.registry = r
	}
}

// WithSchema maps the model to tableName with the given ordered columns
// instead of reading the object annotations.
func WithSchema(tableName string, columns ...string) ModelOption {
	return func(o *modelOptions) {
		o.tableName = tableName
		o.columns = columns
	}
}

// WithClock sets the clock used to stamp updated_at on save
func WithClock(now func() time.Time) ModelOption {
	return func(o *modelOptions) {
		o.now = now
	}
}

// NewModel builds the table of T and registers it. It fails with a
// DescriptorError if T cannot be mapped or was registered before with a
// different schema.
func NewModel[T any](opts ...ModelOption) (*Model[T], error) {
	options := &modelOptions{
		registry: _defaultRegistry,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(options)
	}

	var (
		table *Table
		err   error
	)
	if options.tableName != "" {
		table, err = TableFromSchema(new(T), options.tableName, options.columns...)
	} else {
		table, err = TableFromObject(new(T))
	}
	if err != nil {
		return nil, err
	}

	if table, err = options.registry.Register(table); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"table":   table.Name,
		"columns": table.Columns,
	}).Debug("storage object registered")

	return &Model[T]{
		table: table,
		now:   options.now,
	}, nil
}

// Table returns the table of the model
func (m *Model[T]) Table() *Table {
	return m.table
}

// FindByID returns the object with the given id, or nil if there is none.
func (m *Model[T]) FindByID(
	ctx context.Context,
	conn Connector,
	id interface{},
) (*T, error) {
	values, err := BindSingle(base.IDColumn, id)
	if err != nil {
		return nil, err
	}

	rows, err := conn.Execute(ctx, m.table.Statements.FindByID, values)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	if len(rows) > 1 {
		log.WithFields(log.Fields{
			"table": m.table.Name,
			"rows":  len(rows),
		}).Debug("find by id returned more than one row")
	}
	return m.hydrate(rows[0])
}

// FindByColumn returns every object whose column equals value. column
// must be one of the table columns.
func (m *Model[T]) FindByColumn(
	ctx context.Context,
	conn Connector,
	column string,
	value interface{},
) ([]*T, error) {
	// the column name is substituted into the statement, never let
	// anything but a known column through
	if !m.table.HasColumn(column) {
		return nil, errors.Wrapf(ErrUnknownColumn,
			"table %s has no column %q", m.table.Name, column)
	}

	values, err := BindSingle(column, value)
	if err != nil {
		return nil, err
	}

	rows, err := conn.Execute(
		ctx, m.table.Statements.FindByColumn(column), values)
	if err != nil {
		return nil, err
	}
	return m.FromRows(rows)
}

// Save writes the object to the DB, inserting or overwriting the row with
// the same id. The updated_at column is set to the current UTC time first.
func (m *Model[T]) Save(ctx context.Context, conn Connector, e *T) error {
	if e == nil {
		return yarpcerrors.InvalidArgumentErrorf(
			"cannot save nil object into %s", m.table.Name)
	}
	if _, err := m.table.SetUpdatedAt(e, m.now().UTC()); err != nil {
		return err
	}

	values, err := m.table.BindValues(e)
	if err != nil {
		return err
	}

	_, err = conn.Execute(ctx, m.table.Statements.Insert, values)
	return err
}

// Delete deletes the row of the object from the DB
func (m *Model[T]) Delete(ctx context.Context, conn Connector, e *T) error {
	if e == nil {
		return yarpcerrors.InvalidArgumentErrorf(
			"cannot delete nil object from %s", m.table.Name)
	}
	keyRow, err := m.table.GetKeyRowFromObject(e)
	if err != nil {
		return err
	}

	_, err = conn.Execute(
		ctx, m.table.Statements.Delete, []interface{}{keyRow[0].Value})
	return err
}

// FromRows hydrates one object per row. It fails on the first row that
// cannot be hydrated, in which case no objects are returned.
func (m *Model[T]) FromRows(rows []base.Row) ([]*T, error) {
	objs := make([]*T, 0, len(rows))
	for _, row := range rows {
		obj, err := m.hydrate(row)
		if err != nil {
			return nil, err
		}
		objs = append(objs, obj)
	}
	return objs, nil
}

func (m *Model[T]) hydrate(row base.Row) (*T, error) {
	obj := m.table.NewObject().(*T)
	if err := m.table.SetObjectFromRow(obj, row); err != nil {
		return nil, err
	}
	return obj, nil
}
