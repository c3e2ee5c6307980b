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
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/uber/cqlorm/pkg/storage/objects/base"
	ormmocks "github.com/uber/cqlorm/pkg/storage/orm/mocks"

	"github.com/golang/mock/gomock"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	pkgerrors "github.com/pkg/errors"
	"go.uber.org/goleak"
)

const (
	_findValidByID   = "SELECT * FROM valid_object WHERE id = ? ALLOW FILTERING;"
	_findValidByName = "SELECT * FROM valid_object WHERE name = ? ALLOW FILTERING;"
	_insertValid     = "INSERT INTO valid_object (id, name, data, updated_at) VALUES (?, ?, ?, ?);"
	_deleteValid     = "DELETE FROM valid_object WHERE id = ?;"
)

var errDriver = errors.New("request timed out")

func (suite *ORMTestSuite) newValidModel() *Model[ValidObject] {
	m, err := NewModel[ValidObject](
		WithRegistry(suite.registry),
		WithClock(func() time.Time { return _testTime }),
	)
	suite.Require().NoError(err)
	return m
}

func (suite *ORMTestSuite) newUserModel() (*Model[UserObject], *fakeConnector) {
	m, err := NewModel[UserObject](WithRegistry(suite.registry))
	suite.Require().NoError(err)
	return m, newFakeConnector(m.Table())
}

// TestNewModel tests creating models of valid and invalid objects
func (suite *ORMTestSuite) TestNewModel() {
	m := suite.newValidModel()
	suite.Equal("valid_object", m.Table().Name)

	_, err := NewModel[InvalidObject1](WithRegistry(suite.registry))
	suite.Error(err)
	suite.True(IsDescriptorError(err))

	// same object, different schema
	_, err = NewModel[ValidObject](
		WithRegistry(suite.registry),
		WithSchema("valid_object", "id", "data", "name", "updated_at"),
	)
	suite.True(IsDescriptorError(err))

	// same object, same schema
	again, err := NewModel[ValidObject](WithRegistry(suite.registry))
	suite.NoError(err)
	suite.True(m.Table() == again.Table())
}

// TestNewModelWithSchema tests a model registered from an explicit schema
func (suite *ORMTestSuite) TestNewModelWithSchema() {
	m, err := NewModel[SchemaObject](
		WithRegistry(suite.registry),
		WithSchema("schema_object", "id", "a", "b", "c", "updated_at"),
		WithClock(func() time.Time { return _testTime }),
	)
	suite.NoError(err)

	conn := ormmocks.NewMockConnector(suite.ctrl)
	conn.EXPECT().Execute(
		suite.ctx,
		"INSERT INTO schema_object (id, a, b, c, updated_at) VALUES (?, ?, ?, ?, ?);",
		[]interface{}{"1", "va", "vb", "vc", _testTime},
	).Return(nil, nil)

	suite.NoError(m.Save(
		suite.ctx, conn, &SchemaObject{ID: "1", A: "va", B: "vb", C: "vc"}))
}

// TestFindByID tests find by id against the connector
func (suite *ORMTestSuite) TestFindByID() {
	m := suite.newValidModel()
	conn := ormmocks.NewMockConnector(suite.ctrl)

	conn.EXPECT().Execute(suite.ctx, _findValidByID, []interface{}{uint64(1)}).
		Return([]base.Row{testRow}, nil)

	obj, err := m.FindByID(suite.ctx, conn, uint64(1))
	suite.NoError(err)
	suite.Equal(testValidObject, obj)
}

// TestFindByIDUnsignedBigint tests that an id saved above MaxInt64 is
// found again when the driver hands it back as a negative bigint
func (suite *ORMTestSuite) TestFindByIDUnsignedBigint() {
	m := suite.newValidModel()
	conn := ormmocks.NewMockConnector(suite.ctrl)
	id := uint64(math.MaxUint64 - 1)

	e := &ValidObject{ID: id, Name: "big", Data: "d"}
	conn.EXPECT().Execute(suite.ctx, _insertValid,
		[]interface{}{id, "big", "d", _testTime}).Return(nil, nil)
	suite.NoError(m.Save(suite.ctx, conn, e))

	conn.EXPECT().Execute(suite.ctx, _findValidByID, []interface{}{id}).
		Return([]base.Row{{
			"id":         int64(-2),
			"name":       "big",
			"data":       "d",
			"updated_at": _testTime,
		}}, nil)
	got, err := m.FindByID(suite.ctx, conn, id)
	suite.NoError(err)
	suite.Equal(e, got)
}

// TestFindByIDNotFound tests that no rows is not an error
func (suite *ORMTestSuite) TestFindByIDNotFound() {
	m := suite.newValidModel()
	conn := ormmocks.NewMockConnector(suite.ctrl)

	conn.EXPECT().Execute(suite.ctx, _findValidByID, []interface{}{uint64(2)}).
		Return(nil, nil)

	obj, err := m.FindByID(suite.ctx, conn, uint64(2))
	suite.NoError(err)
	suite.Nil(obj)
}

// TestFindByIDFirstRow tests that only the first row is used
func (suite *ORMTestSuite) TestFindByIDFirstRow() {
	m := suite.newValidModel()
	conn := ormmocks.NewMockConnector(suite.ctrl)

	second := base.Row{
		"id":         uint64(1),
		"name":       "second",
		"data":       "",
		"updated_at": _testTime,
	}
	conn.EXPECT().Execute(suite.ctx, _findValidByID, []interface{}{uint64(1)}).
		Return([]base.Row{testRow, second}, nil)

	obj, err := m.FindByID(suite.ctx, conn, uint64(1))
	suite.NoError(err)
	suite.Equal("test", obj.Name)
}

// TestFindByIDErrors tests that driver and hydration errors are returned
func (suite *ORMTestSuite) TestFindByIDErrors() {
	m := suite.newValidModel()
	conn := ormmocks.NewMockConnector(suite.ctrl)

	conn.EXPECT().Execute(suite.ctx, _findValidByID, []interface{}{uint64(1)}).
		Return(nil, errDriver)
	obj, err := m.FindByID(suite.ctx, conn, uint64(1))
	suite.Nil(obj)
	suite.True(err == errDriver)

	conn.EXPECT().Execute(suite.ctx, _findValidByID, []interface{}{uint64(1)}).
		Return([]base.Row{{"id": uint64(1)}}, nil)
	obj, err = m.FindByID(suite.ctx, conn, uint64(1))
	suite.Nil(obj)
	suite.True(IsHydrationError(err))

	// unbindable id never reaches the connector
	_, err = m.FindByID(suite.ctx, conn, make(chan int))
	suite.True(IsBindError(err))
}

// TestFindByColumn tests find by column against the connector
func (suite *ORMTestSuite) TestFindByColumn() {
	m := suite.newValidModel()
	conn := ormmocks.NewMockConnector(suite.ctrl)

	other := base.Row{
		"id":         uint64(2),
		"name":       "test",
		"data":       "other",
		"updated_at": _testTime,
	}
	conn.EXPECT().Execute(suite.ctx, _findValidByName, []interface{}{"test"}).
		Return([]base.Row{testRow, other}, nil)

	objs, err := m.FindByColumn(suite.ctx, conn, "name", "test")
	suite.NoError(err)
	suite.Len(objs, 2)
	suite.Equal(testValidObject, objs[0])
	suite.Equal("other", objs[1].Data)

	conn.EXPECT().Execute(suite.ctx, _findValidByName, []interface{}{"none"}).
		Return(nil, nil)
	objs, err = m.FindByColumn(suite.ctx, conn, "name", "none")
	suite.NoError(err)
	suite.NotNil(objs)
	suite.Empty(objs)
}

// TestFindByColumnUnknownColumn tests that only mapped columns can be
// substituted into the statement
func (suite *ORMTestSuite) TestFindByColumnUnknownColumn() {
	m := suite.newValidModel()
	conn := ormmocks.NewMockConnector(suite.ctrl)

	for _, column := range []string{"password", "name = 'x' OR id", ""} {
		objs, err := m.FindByColumn(suite.ctx, conn, column, "x")
		suite.Nil(objs)
		suite.True(pkgerrors.Cause(err) == ErrUnknownColumn)
	}
}

// TestFindByColumnAllOrNothing tests that a row failing to hydrate
// discards the rows already hydrated
func (suite *ORMTestSuite) TestFindByColumnAllOrNothing() {
	m := suite.newValidModel()
	conn := ormmocks.NewMockConnector(suite.ctrl)

	var rows []base.Row
	for i := 1; i <= 5; i++ {
		row := base.Row{
			"id":         uint64(i),
			"name":       "test",
			"data":       fmt.Sprintf("data%d", i),
			"updated_at": _testTime,
		}
		if i == 3 {
			delete(row, "data")
		}
		rows = append(rows, row)
	}
	conn.EXPECT().Execute(suite.ctx, _findValidByName, []interface{}{"test"}).
		Return(rows, nil)

	objs, err := m.FindByColumn(suite.ctx, conn, "name", "test")
	suite.Nil(objs)
	suite.True(IsHydrationError(err))
	suite.Equal(MissingColumn, err.(*HydrationError).Reason)
}

// TestSave tests that save stamps updated_at and binds every column in
// order
func (suite *ORMTestSuite) TestSave() {
	m := suite.newValidModel()
	conn := ormmocks.NewMockConnector(suite.ctrl)

	e := &ValidObject{ID: 1, Name: "test", Data: "testdata"}
	conn.EXPECT().Execute(
		suite.ctx,
		_insertValid,
		[]interface{}{uint64(1), "test", "testdata", _testTime},
	).Return(nil, nil)

	suite.NoError(m.Save(suite.ctx, conn, e))
	suite.Equal(_testTime, e.UpdatedAt)

	// driver errors are returned as is
	conn.EXPECT().Execute(suite.ctx, _insertValid, gomock.Any()).
		Return(nil, errDriver)
	suite.True(m.Save(suite.ctx, conn, e) == errDriver)

	suite.Error(m.Save(suite.ctx, conn, nil))
}

// TestSaveBindError tests that a value that cannot be bound is never sent
func (suite *ORMTestSuite) TestSaveBindError() {
	m, err := NewModel[ChanObject](WithRegistry(suite.registry))
	suite.NoError(err)
	conn := ormmocks.NewMockConnector(suite.ctrl)

	err = m.Save(suite.ctx, conn, &ChanObject{ID: "1", Events: make(chan int)})
	suite.True(IsBindError(err))
}

// TestDelete tests deleting by id
func (suite *ORMTestSuite) TestDelete() {
	m := suite.newValidModel()
	conn := ormmocks.NewMockConnector(suite.ctrl)

	conn.EXPECT().Execute(suite.ctx, _deleteValid, []interface{}{uint64(1)}).
		Return(nil, nil)
	suite.NoError(m.Delete(suite.ctx, conn, testValidObject))

	conn.EXPECT().Execute(suite.ctx, _deleteValid, []interface{}{uint64(1)}).
		Return(nil, errDriver)
	suite.True(m.Delete(suite.ctx, conn, testValidObject) == errDriver)

	suite.Error(m.Delete(suite.ctx, conn, nil))
}

// TestFromRows tests the bulk conversion helper
func (suite *ORMTestSuite) TestFromRows() {
	m := suite.newValidModel()

	objs, err := m.FromRows(nil)
	suite.NoError(err)
	suite.Empty(objs)

	objs, err = m.FromRows([]base.Row{testRow, testRow})
	suite.NoError(err)
	suite.Len(objs, 2)
	suite.False(objs[0] == objs[1])

	_, err = m.FromRows([]base.Row{testRow, {"id": "x"}})
	suite.True(IsHydrationError(err))
}

// TestRoundTrip saves an object and reads it back
func (suite *ORMTestSuite) TestRoundTrip() {
	m, conn := suite.newUserModel()

	e := &UserObject{
		ID:     "u1",
		Email:  "u1@example.com",
		Team:   &base.OptionalString{Value: "infra"},
		Logins: 42,
		Tags:   []string{"admin", "oncall"},
		Active: true,
	}
	before := time.Now().UTC()
	suite.NoError(m.Save(suite.ctx, conn, e))

	got, err := m.FindByID(suite.ctx, conn, "u1")
	suite.NoError(err)
	suite.NotNil(got)
	suite.Empty(cmp.Diff(e, got,
		cmpopts.IgnoreFields(UserObject{}, "UpdatedAt"),
		cmpopts.IgnoreUnexported(UserObject{}),
	))
	suite.False(got.UpdatedAt.Before(before))
	suite.Equal(time.UTC, got.UpdatedAt.Location())
}

// TestSaveOverwrites tests that save of an existing id replaces the row
func (suite *ORMTestSuite) TestSaveOverwrites() {
	m, conn := suite.newUserModel()

	e := &UserObject{ID: "u1", Email: "old@example.com"}
	suite.NoError(m.Save(suite.ctx, conn, e))
	first := e.UpdatedAt

	e.Email = "new@example.com"
	suite.NoError(m.Save(suite.ctx, conn, e))
	suite.False(e.UpdatedAt.Before(first))

	got, err := m.FindByID(suite.ctx, conn, "u1")
	suite.NoError(err)
	suite.Equal("new@example.com", got.Email)

	all, err := m.FindByColumn(suite.ctx, conn, "id", "u1")
	suite.NoError(err)
	suite.Len(all, 1)
}

// TestSaveDeleteFind tests that a deleted object is not found
func (suite *ORMTestSuite) TestSaveDeleteFind() {
	m, conn := suite.newUserModel()

	e := &UserObject{ID: "u1", Email: "u1@example.com"}
	suite.NoError(m.Save(suite.ctx, conn, e))
	suite.NoError(m.Delete(suite.ctx, conn, e))

	got, err := m.FindByID(suite.ctx, conn, "u1")
	suite.NoError(err)
	suite.Nil(got)

	// deleting twice is a noop
	suite.NoError(m.Delete(suite.ctx, conn, e))
}

// TestFindByColumnCompleteness tests that every object sharing a column
// value is found
func (suite *ORMTestSuite) TestFindByColumnCompleteness() {
	m, conn := suite.newUserModel()

	var infra []string
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("infra-%d", i)
		infra = append(infra, id)
		suite.NoError(m.Save(suite.ctx, conn, &UserObject{
			ID:   id,
			Team: &base.OptionalString{Value: "infra"},
		}))
	}
	for i := 0; i < 3; i++ {
		suite.NoError(m.Save(suite.ctx, conn, &UserObject{
			ID:   fmt.Sprintf("web-%d", i),
			Team: &base.OptionalString{Value: "web"},
		}))
	}

	objs, err := m.FindByColumn(suite.ctx, conn, "team", "infra")
	suite.NoError(err)
	var ids []string
	for _, o := range objs {
		ids = append(ids, o.ID)
		suite.Equal("infra", o.Team.String())
	}
	suite.ElementsMatch(infra, ids)

	objs, err = m.FindByColumn(suite.ctx, conn, "team", "mobile")
	suite.NoError(err)
	suite.Empty(objs)
}

// TestHydrationFailureFromStore tests that rows missing a column fail
// both lookups
func (suite *ORMTestSuite) TestHydrationFailureFromStore() {
	m, conn := suite.newUserModel()

	suite.NoError(m.Save(suite.ctx, conn, &UserObject{ID: "u1", Active: true}))
	conn.dropColumn = "active"

	got, err := m.FindByID(suite.ctx, conn, "u1")
	suite.Nil(got)
	suite.True(IsHydrationError(err))

	objs, err := m.FindByColumn(suite.ctx, conn, "id", "u1")
	suite.Nil(objs)
	suite.True(IsHydrationError(err))
}

// TestConcurrentUse tests that a model can be shared between goroutines
func (suite *ORMTestSuite) TestConcurrentUse() {
	defer goleak.VerifyNone(suite.T())
	m, conn := suite.newUserModel()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("u%d", i)
			if err := m.Save(suite.ctx, conn, &UserObject{ID: id}); err != nil {
				suite.Fail(err.Error())
				return
			}
			got, err := m.FindByID(suite.ctx, conn, id)
			if err != nil || got == nil {
				suite.Fail("object not found", id)
			}
		}(i)
	}
	wg.Wait()
	suite.Len(conn.rows, 20)
}
