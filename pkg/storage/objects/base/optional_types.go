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

// OptionalString type can be used for primary key of type string
// to be evaluated as either nil or some string value
// different than empty string
type OptionalString struct {
	Value string
}

// NewOptionalString returns either new *OptionalString or nil
func NewOptionalString(v interface{}) *OptionalString {
	s, ok := v.(string)
	if ok && len(s) > 0 {
		return &OptionalString{Value: s}
	}
	return nil
}

// String for *OptionalString type
func (s *OptionalString) String() string {
	return s.Value
}

// OptionalUInt64 type can be used for a column of type uint64
// to be evaluated as either nil or some uint64 value
type OptionalUInt64 struct {
	Value uint64
}

// NewOptionalUInt64 returns either new *OptionalUInt64 or nil
func NewOptionalUInt64(v interface{}) *OptionalUInt64 {
	switch i := v.(type) {
	case uint64:
		return &OptionalUInt64{Value: i}
	case int64:
		// C* stores uint64 as bigint, values above MaxInt64 come back negative
		return &OptionalUInt64{Value: uint64(i)}
	}
	return nil
}

// UInt64 for *OptionalUInt64 type
func (i *OptionalUInt64) UInt64() uint64 {
	return i.Value
}

var (
	_optionalStringType = reflect.TypeOf(&OptionalString{})
	_optionalUInt64Type = reflect.TypeOf(&OptionalUInt64{})
)

// IsOptionalType returns whether typ is one of the custom optional types
func IsOptionalType(typ reflect.Type) bool {
	switch typ {
	case _optionalStringType, _optionalUInt64Type:
		return true
	default:
		return false
	}
}

// ConvertFromOptionalToRawType returns an interface of raw type
// understandable by the DB layer, extracted from a custom
// optional type. A nil optional converts to nil.
func ConvertFromOptionalToRawType(value reflect.Value) interface{} {
	if value.IsNil() {
		return nil
	}
	switch v := value.Interface().(type) {
	case *OptionalString:
		return v.String()
	case *OptionalUInt64:
		return v.UInt64()
	}
	return nil
}

