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

/*
Package orm implements the ORM (object relational mapping) layer that maps
a Go struct to a single CQL table. There are four major components of this
layer:

  * Table - is the registered representation of a storage object. It is
            built once per object type from the object's annotations (or
            from an explicit column list) and holds the table definition,
            the CQL statements rendered for it and the field index of every
            column. A Table binds objects into ordered query values and
            hydrates objects from rows returned by the database.

  * Model - is the typed API exposed to the application layer. A Model[T]
            offers FindByID, FindByColumn, Save and Delete for objects of
            type T against a Connector supplied on each call.

  * Registry - indexes Tables by object type, so that registering the same
            object twice with a different schema is rejected.

  * Connector - is the interface to the database driver. It executes one
            statement with positional values and returns the rows. The
            cassandra connector in storage/connectors/cassandra implements
            it on top of gocql.
*/
package orm
