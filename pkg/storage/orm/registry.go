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
	"sort"
	"sync"

	"github.com/uber/cqlorm/pkg/storage/objects/base"

	"go.uber.org/multierr"
	"go.uber.org/yarpc/yarpcerrors"
)

// Registry indexes the registered Tables by the Go type of their storage
// object. A storage object type can only be registered with one schema.
type Registry struct {
	sync.RWMutex
	objectIndex map[reflect.Type]*Table
}

// _defaultRegistry is used by models that are not given a registry
var _defaultRegistry = NewRegistry()

// NewRegistry returns an empty registry
func NewRegistry() *Registry {
	return &Registry{
		objectIndex: make(map[reflect.Type]*Table),
	}
}

// Register adds a table to the registry. Registering a table for an
// object type that is already registered returns the existing table when
// both definitions are equal and a DescriptorError otherwise.
func (r *Registry) Register(t *Table) (*Table, error) {
	typ := t.ObjectType()

	r.Lock()
	defer r.Unlock()

	if existing, ok := r.objectIndex[typ]; ok {
		if !existing.Definition.Equal(&t.Definition) {
			return nil, newDescriptorError(typ.Name(),
				"already registered for table %s with a different schema",
				existing.Name)
		}
		return existing, nil
	}
	r.objectIndex[typ] = t
	return t, nil
}

// RegisterObjects builds the table of every object from its annotations
// and registers it. Objects that fail do not stop the others from being
// registered, their errors are combined.
func (r *Registry) RegisterObjects(objects ...base.Object) error {
	var errs error
	for _, o := range objects {
		t, err := TableFromObject(o)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if _, err := r.Register(t); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// GetTable gets the Table that matches the storage object provided.
// Returns an error when not found.
func (r *Registry) GetTable(e base.Object) (*Table, error) {
	r.RLock()
	defer r.RUnlock()

	t := reflect.TypeOf(e)
	if t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	table, ok := r.objectIndex[t]
	if !ok {
		return nil, yarpcerrors.NotFoundErrorf(
			"Table not found for object: %q", typeName(t))
	}
	return table, nil
}

// Tables returns every registered table sorted by table name
func (r *Registry) Tables() []*Table {
	r.RLock()
	defer r.RUnlock()

	tables := make([]*Table, 0, len(r.objectIndex))
	for _, t := range r.objectIndex {
		tables = append(tables, t)
	}
	sort.Slice(tables, func(i, j int) bool {
		return tables[i].Name < tables[j].Name
	})
	return tables
}
