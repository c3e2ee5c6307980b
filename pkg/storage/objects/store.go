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

package objects

import (
	"github.com/uber/cqlorm/pkg/storage"
	"github.com/uber/cqlorm/pkg/storage/connectors/cassandra"
	"github.com/uber/cqlorm/pkg/storage/objects/base"
	"github.com/uber/cqlorm/pkg/storage/orm"

	"github.com/uber-go/tally"
)

// Objs is a global list of storage objects. Every storage object will be added
// using an init method to this list. This list will be used when creating the
// Store.
var Objs []base.Object

// Store contains the DB connector, the models of every storage object and
// metrics
type Store struct {
	conn     orm.Connector
	registry *orm.Registry
	secrets  *orm.Model[SecretInfoObject]
	metrics  *storage.Metrics
}

// NewCassandraStore creates a new Cassandra storage client
func NewCassandraStore(
	config *cassandra.Config,
	scope tally.Scope,
) (*Store, error) {
	connector, err := cassandra.NewCassandraConnector(config, scope)
	if err != nil {
		return nil, err
	}
	s, err := NewStore(connector, scope)
	if err != nil {
		connector.Close()
		return nil, err
	}
	return s, nil
}

// NewStore creates a Store on top of an existing connector. Every object
// in Objs is registered up front so that a bad mapping fails here rather
// than on first use.
func NewStore(
	conn orm.Connector,
	scope tally.Scope,
	opts ...orm.ModelOption,
) (*Store, error) {
	registry := orm.NewRegistry()
	if err := registry.RegisterObjects(Objs...); err != nil {
		return nil, err
	}

	opts = append([]orm.ModelOption{orm.WithRegistry(registry)}, opts...)
	secrets, err := orm.NewModel[SecretInfoObject](opts...)
	if err != nil {
		return nil, err
	}

	return &Store{
		conn:     conn,
		registry: registry,
		secrets:  secrets,
		metrics:  storage.NewMetrics(scope),
	}, nil
}

// Tables returns the tables of every registered storage object
func (s *Store) Tables() []*orm.Table {
	return s.registry.Tables()
}

// Close closes the underlying connector if it can be closed
func (s *Store) Close() {
	if c, ok := s.conn.(interface{ Close() }); ok {
		c.Close()
	}
}
