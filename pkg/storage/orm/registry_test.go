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
	"go.uber.org/multierr"
	"go.uber.org/yarpc/yarpcerrors"
)

// TestRegisterObjects tests building the object index
func (suite *ORMTestSuite) TestRegisterObjects() {
	suite.NoError(suite.registry.RegisterObjects(&ValidObject{}, &UserObject{}))

	table, err := suite.registry.GetTable(&ValidObject{})
	suite.NoError(err)
	suite.Equal("valid_object", table.Name)

	tables := suite.registry.Tables()
	suite.Len(tables, 2)
	suite.Equal("users", tables[0].Name)
	suite.Equal("valid_object", tables[1].Name)

	suite.Error(suite.registry.RegisterObjects(&InvalidObject1{}))

	_, err = suite.registry.GetTable(&InvalidObject1{})
	suite.True(yarpcerrors.IsNotFound(err))
}

// TestRegisterObjectsCombinesErrors tests that one bad object does not
// keep the others from being registered
func (suite *ORMTestSuite) TestRegisterObjectsCombinesErrors() {
	err := suite.registry.RegisterObjects(
		&InvalidObject1{}, &ValidObject{}, &NoIDObject{})
	suite.Error(err)

	errs := multierr.Errors(err)
	suite.Len(errs, 2)
	for _, e := range errs {
		suite.True(IsDescriptorError(e))
	}

	_, err = suite.registry.GetTable(&ValidObject{})
	suite.NoError(err)
}

// TestRegisterSameSchemaTwice tests that registering the same object with
// the same schema returns the first table
func (suite *ORMTestSuite) TestRegisterSameSchemaTwice() {
	t1, err := TableFromObject(&ValidObject{})
	suite.NoError(err)
	t2, err := TableFromObject(&ValidObject{})
	suite.NoError(err)

	r1, err := suite.registry.Register(t1)
	suite.NoError(err)
	r2, err := suite.registry.Register(t2)
	suite.NoError(err)
	suite.True(r1 == r2)
}

// TestRegisterDifferentSchema tests that an object cannot be registered
// with two schemas, whatever the registration order
func (suite *ORMTestSuite) TestRegisterDifferentSchema() {
	byTag, err := TableFromObject(&ValidObject{})
	suite.NoError(err)
	bySchema, err := TableFromSchema(
		&ValidObject{}, "valid_object", "id", "data", "name", "updated_at")
	suite.NoError(err)

	for _, order := range [][]*Table{{byTag, bySchema}, {bySchema, byTag}} {
		registry := NewRegistry()
		_, err := registry.Register(order[0])
		suite.NoError(err)
		_, err = registry.Register(order[1])
		suite.Error(err)
		suite.True(IsDescriptorError(err))

		table, err := registry.GetTable(&ValidObject{})
		suite.NoError(err)
		suite.True(order[0] == table)
	}
}
