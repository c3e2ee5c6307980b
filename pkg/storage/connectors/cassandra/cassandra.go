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

package cassandra

import (
	"context"
	"strings"
	"time"

	"github.com/uber/cqlorm/pkg/common"
	"github.com/uber/cqlorm/pkg/storage/objects/base"
	"github.com/uber/cqlorm/pkg/storage/orm"

	"github.com/gocql/gocql"
	opentracing "github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/uber-go/tally"
	"go.uber.org/atomic"
	"go.uber.org/yarpc/yarpcerrors"
)

const (
	// operation tags for metrics
	create  = "create"
	get     = "get"
	update  = "update"
	del     = "delete"
	execute = "execute"

	_unknownTable = "unknown"
)

var (
	// ErrClosed is returned for statements executed after Close.
	ErrClosed = errors.New("cassandra connector is closed")
	// ErrOverCapacity is returned when the number of in-flight statements
	// has reached MaxGoRoutines.
	ErrOverCapacity = errors.New("cassandra connector is over capacity")
)

// Connector is an orm.Connector backed by a gocql session.
type Connector interface {
	orm.Connector
	// Close releases the session. Execute fails with ErrClosed afterwards.
	Close()
}

type cassandraConnector struct {
	// Session is the gocql session created for this connector
	Session *gocql.Session
	// scope is the storage scope for metrics
	scope tally.Scope
	// scope is the storage scope for success metrics
	executeSuccessScope tally.Scope
	// scope is the storage scope for failure metrics
	executeFailScope tally.Scope

	// Conf is the Cassandra connector config for this cluster
	Conf *Config

	inflight *atomic.Int64
	closed   *atomic.Bool
}

// NewCassandraConnector initializes a Cassandra Connector
func NewCassandraConnector(
	config *Config,
	scope tally.Scope,
) (Connector, error) {
	session, err := CreateStoreSession(
		config.CassandraConn, config.StoreName)
	if err != nil {
		return nil, err
	}
	return newConnector(session, config, scope), nil
}

func newConnector(
	session *gocql.Session,
	config *Config,
	scope tally.Scope,
) *cassandraConnector {
	// create a storeScope for the keyspace StoreName
	storeScope := scope.SubScope("cql").Tagged(
		map[string]string{"store": config.StoreName})

	return &cassandraConnector{
		Session: session,
		scope:   storeScope,
		executeSuccessScope: storeScope.Tagged(
			map[string]string{"result": "success"}),
		executeFailScope: storeScope.Tagged(
			map[string]string{"result": "fail"}),
		Conf:     config,
		inflight: atomic.NewInt64(0),
		closed:   atomic.NewBool(false),
	}
}

// ensure that implementation (cassandraConnector) satisfies the interface
var _ Connector = (*cassandraConnector)(nil)

// getGocqlErrorTag gets a error tag for metrics based on gocql error
// We cannot just use err.Error() as a tag because it contains invalid
// characters like = : etc. which will be rejected by M3
func getGocqlErrorTag(err error) string {
	if yarpcerrors.IsAlreadyExists(err) {
		return "already_exists"
	}
	if yarpcerrors.IsNotFound(err) {
		return "not_found"
	}
	switch errors.Cause(err) {
	case ErrClosed:
		return "closed"
	case ErrOverCapacity:
		return "over_capacity"
	case gocql.ErrNotFound:
		return "not_found"
	case gocql.ErrTimeoutNoResponse:
		return "timeout"
	case gocql.ErrNoConnections:
		return "no_connections"
	}
	switch err.(type) {
	case *gocql.RequestErrReadFailure:
		return "read_failure"
	case *gocql.RequestErrWriteFailure:
		return "write_failure"
	case *gocql.RequestErrAlreadyExists:
		return "already_exists"
	case *gocql.RequestErrReadTimeout:
		return "read_timeout"
	case *gocql.RequestErrWriteTimeout:
		return "write_timeout"
	case *gocql.RequestErrUnavailable:
		return "unavailable"
	case *gocql.RequestErrFunctionFailure:
		return "function_failure"
	case *gocql.RequestErrUnprepared:
		return "unprepared"
	default:
		return "unknown"
	}
}

// parseStmt returns the table a statement runs against and the operation
// tag used for its metrics.
func parseStmt(stmt string) (table string, operation string) {
	tokens := strings.Fields(stmt)
	if len(tokens) == 0 {
		return _unknownTable, execute
	}

	tokenAfter := func(keyword string) string {
		for i, t := range tokens[:len(tokens)-1] {
			if strings.EqualFold(t, keyword) {
				return tableToken(tokens[i+1])
			}
		}
		return _unknownTable
	}

	switch strings.ToUpper(tokens[0]) {
	case "SELECT":
		return tokenAfter("FROM"), get
	case "INSERT":
		return tokenAfter("INTO"), create
	case "DELETE":
		return tokenAfter("FROM"), del
	case "UPDATE":
		if len(tokens) > 1 {
			return tableToken(tokens[1]), update
		}
		return _unknownTable, update
	default:
		return _unknownTable, execute
	}
}

// tableToken strips a column list or statement terminator glued to a
// table name, as in "users(id)" or "users;".
func tableToken(tok string) string {
	if i := strings.IndexAny(tok, "(;"); i >= 0 {
		tok = tok[:i]
	}
	if tok == "" {
		return _unknownTable
	}
	return tok
}

// toRows converts the maps returned by gocql into rows.
func toRows(result []map[string]interface{}) []base.Row {
	rows := make([]base.Row, 0, len(result))
	for _, r := range result {
		rows = append(rows, base.Row(r))
	}
	return rows
}

// acquire reserves an in-flight slot for one statement.
func (c *cassandraConnector) acquire() error {
	if c.closed.Load() {
		return ErrClosed
	}
	n := c.inflight.Inc()
	if max := c.Conf.CassandraConn.MaxGoRoutines; max > 0 && n > int64(max) {
		c.inflight.Dec()
		return ErrOverCapacity
	}
	c.scope.Gauge("inflight").Update(float64(n))
	return nil
}

func (c *cassandraConnector) release() {
	c.scope.Gauge("inflight").Update(float64(c.inflight.Dec()))
}

// Execute runs one CQL statement with its positional values. Rows are only
// returned for SELECT statements. Driver errors are returned unmodified.
func (c *cassandraConnector) Execute(
	ctx context.Context,
	stmt string,
	values []interface{},
) ([]base.Row, error) {
	table, operation := parseStmt(stmt)

	if err := c.acquire(); err != nil {
		sendCounters(c.executeFailScope, table, operation, err)
		return nil, err
	}
	defer c.release()

	span, ctx := opentracing.StartSpanFromContext(ctx, "cql."+operation)
	defer span.Finish()
	span.SetTag("db.type", "cassandra")
	span.SetTag("db.statement", stmt)

	log.WithFields(log.Fields{
		common.DBStmtLogField:  stmt,
		common.DBArgsLogField:  values,
		common.DBTableLogField: table,
	}).Debug("Executing CQL statement")

	q := c.Session.Query(stmt, values...).WithContext(ctx)

	var rows []base.Row
	var err error
	if operation == get {
		cqlIter := q.Iter()
		var result []map[string]interface{}
		result, err = cqlIter.SliceMap()
		if closeErr := cqlIter.Close(); err == nil {
			err = closeErr
		}
		if err == nil {
			rows = toRows(result)
		}
	} else {
		err = q.Exec()
	}

	if err != nil {
		span.SetTag("error", true)
		sendCounters(c.executeFailScope, table, operation, err)
		return nil, err
	}

	sendLatency(c.scope, table, operation, time.Duration(q.Latency()))
	sendCounters(c.executeSuccessScope, table, operation, nil)
	return rows, nil
}

// Close closes the underlying session. It is safe to call more than once.
func (c *cassandraConnector) Close() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	if c.Session != nil {
		c.Session.Close()
	}
	log.WithField("store", c.Conf.StoreName).Info("C* connector closed")
}

// helper function to record call latency metric
func sendLatency(
	scope tally.Scope,
	table, operation string,
	d time.Duration,
) {
	s := scope.Tagged(map[string]string{
		"table":     table,
		"operation": operation,
	})
	s.Timer("execute_latency").Record(d)
}

// helper function to record cql query success/failure metrics
func sendCounters(
	scope tally.Scope,
	table, operation string,
	err error,
) {
	errMsg := "none"
	if err != nil {
		errMsg = getGocqlErrorTag(err)
	}
	s := scope.Tagged(map[string]string{
		"table":     table,
		"operation": operation,
		"error":     errMsg,
	})
	s.Counter("execute").Inc(1)
}
