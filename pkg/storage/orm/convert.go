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
	"fmt"
	"math"
	"reflect"
	"time"

	"github.com/uber/cqlorm/pkg/storage/objects/base"
)

var (
	_timeType           = reflect.TypeOf(time.Time{})
	_uint64Type         = reflect.TypeOf(uint64(0))
	_optionalStringType = reflect.TypeOf(&base.OptionalString{})
	_optionalUInt64Type = reflect.TypeOf(&base.OptionalUInt64{})
)

// isBindableType returns true if values of typ can be handed to the
// driver as query parameters. Interface types are checked on the dynamic
// value when binding.
func isBindableType(typ reflect.Type) bool {
	if base.IsOptionalType(typ) || typ == _timeType {
		return true
	}
	switch typ.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32,
		reflect.Uint64,
		reflect.Float32, reflect.Float64,
		reflect.String,
		reflect.Interface:
		return true
	case reflect.Ptr, reflect.Slice, reflect.Array:
		// slices and arrays map to CQL lists/sets, byte arrays to UUIDs
		return isBindableType(typ.Elem())
	case reflect.Map:
		return isBindableType(typ.Key()) && isBindableType(typ.Elem())
	case reflect.Struct:
		return typ.ConvertibleTo(_timeType)
	default:
		return false
	}
}

// bindValue converts v into a value the driver understands.
func bindValue(v reflect.Value) (interface{}, bool) {
	if !v.IsValid() {
		return nil, false
	}
	typ := v.Type()
	if base.IsOptionalType(typ) {
		return base.ConvertFromOptionalToRawType(v), true
	}
	switch typ.Kind() {
	case reflect.Interface:
		if v.IsNil() {
			return nil, true
		}
		return bindValue(v.Elem())
	case reflect.Ptr:
		if !isBindableType(typ.Elem()) {
			return nil, false
		}
		if v.IsNil() {
			return nil, true
		}
		return bindValue(v.Elem())
	}
	if !isBindableType(typ) {
		return nil, false
	}
	if typ.Kind() == reflect.Struct && typ != _timeType {
		// named time types are sent as time.Time
		return v.Convert(_timeType).Interface(), true
	}
	return v.Interface(), true
}

// convertValue converts a raw value returned by the driver into a value
// of type typ. nil converts to the zero value.
func convertValue(raw interface{}, typ reflect.Type) (reflect.Value, error) {
	if raw == nil {
		return reflect.Zero(typ), nil
	}
	v, ok := convertReflect(reflect.ValueOf(raw), typ)
	if !ok {
		return reflect.Value{}, fmt.Errorf("cannot convert %T to %s", raw, typ)
	}
	return v, nil
}

func convertReflect(rv reflect.Value, typ reflect.Type) (reflect.Value, bool) {
	// unwrap interfaces and pointers handed back by the driver
	for (rv.Kind() == reflect.Interface || rv.Kind() == reflect.Ptr) &&
		rv.Type() != typ {
		if rv.IsNil() {
			return reflect.Zero(typ), true
		}
		rv = rv.Elem()
	}

	if rv.Type().AssignableTo(typ) {
		return rv, true
	}
	if base.IsOptionalType(typ) {
		return convertOptional(rv, typ)
	}

	switch typ.Kind() {
	case reflect.Ptr:
		elem, ok := convertReflect(rv, typ.Elem())
		if !ok {
			return reflect.Value{}, false
		}
		p := reflect.New(typ.Elem())
		p.Elem().Set(elem)
		return p, true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return convertInt(rv, typ)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32,
		reflect.Uint64:
		return convertUint(rv, typ)
	case reflect.Float32, reflect.Float64:
		return convertFloat(rv, typ)
	case reflect.Bool:
		if rv.Kind() == reflect.Bool {
			return rv.Convert(typ), true
		}
	case reflect.String:
		return convertString(rv, typ)
	case reflect.Slice:
		return convertSlice(rv, typ)
	case reflect.Map:
		return convertMap(rv, typ)
	case reflect.Struct, reflect.Array:
		// named time types and UUID arrays
		if rv.Kind() == typ.Kind() && rv.Type().ConvertibleTo(typ) {
			return rv.Convert(typ), true
		}
	}
	return reflect.Value{}, false
}

func convertInt(rv reflect.Value, typ reflect.Type) (reflect.Value, bool) {
	var i int64
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i = rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32,
		reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return reflect.Value{}, false
		}
		i = int64(u)
	default:
		return reflect.Value{}, false
	}
	out := reflect.New(typ).Elem()
	if out.OverflowInt(i) {
		return reflect.Value{}, false
	}
	out.SetInt(i)
	return out, true
}

func convertUint(rv reflect.Value, typ reflect.Type) (reflect.Value, bool) {
	var u uint64
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// C* internally uses int and int64 for unsigned fields
		i := rv.Int()
		if i >= 0 {
			u = uint64(i)
			break
		}
		var ok bool
		if u, ok = reinterpretSigned(rv.Kind(), i, typ.Kind()); !ok {
			return reflect.Value{}, false
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32,
		reflect.Uint64:
		u = rv.Uint()
	default:
		return reflect.Value{}, false
	}
	out := reflect.New(typ).Elem()
	if out.OverflowUint(u) {
		return reflect.Value{}, false
	}
	out.SetUint(u)
	return out, true
}

// reinterpretSigned undoes the driver writing an unsigned value into a
// signed column of the same width: uint64 is stored as bigint (int64) and
// uint32 as int (int, int32). Any other negative value does not fit.
func reinterpretSigned(from reflect.Kind, i int64, to reflect.Kind) (uint64, bool) {
	switch {
	case to == reflect.Uint64 && from == reflect.Int64:
		return uint64(i), true
	case to == reflect.Uint32 && (from == reflect.Int || from == reflect.Int32) &&
		i >= math.MinInt32:
		return uint64(uint32(int32(i))), true
	}
	return 0, false
}

func convertFloat(rv reflect.Value, typ reflect.Type) (reflect.Value, bool) {
	var f float64
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		f = rv.Float()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		f = float64(rv.Int())
	default:
		return reflect.Value{}, false
	}
	out := reflect.New(typ).Elem()
	if out.OverflowFloat(f) {
		return reflect.Value{}, false
	}
	out.SetFloat(f)
	return out, true
}

func convertString(rv reflect.Value, typ reflect.Type) (reflect.Value, bool) {
	switch {
	case rv.Kind() == reflect.String:
		return rv.Convert(typ), true
	case rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8:
		return reflect.ValueOf(string(rv.Bytes())).Convert(typ), true
	case rv.Kind() == reflect.Array:
		// UUIDs are returned as byte arrays implementing fmt.Stringer
		if s, ok := rv.Interface().(fmt.Stringer); ok {
			return reflect.ValueOf(s.String()).Convert(typ), true
		}
	}
	return reflect.Value{}, false
}

func convertSlice(rv reflect.Value, typ reflect.Type) (reflect.Value, bool) {
	if typ.Elem().Kind() == reflect.Uint8 && rv.Kind() == reflect.String {
		return reflect.ValueOf([]byte(rv.String())).Convert(typ), true
	}
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return reflect.Value{}, false
	}
	out := reflect.MakeSlice(typ, rv.Len(), rv.Len())
	for i := 0; i < rv.Len(); i++ {
		elem, ok := convertReflect(rv.Index(i), typ.Elem())
		if !ok {
			return reflect.Value{}, false
		}
		out.Index(i).Set(elem)
	}
	return out, true
}

func convertMap(rv reflect.Value, typ reflect.Type) (reflect.Value, bool) {
	if rv.Kind() != reflect.Map {
		return reflect.Value{}, false
	}
	out := reflect.MakeMapWithSize(typ, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		k, ok := convertReflect(iter.Key(), typ.Key())
		if !ok {
			return reflect.Value{}, false
		}
		v, ok := convertReflect(iter.Value(), typ.Elem())
		if !ok {
			return reflect.Value{}, false
		}
		out.SetMapIndex(k, v)
	}
	return out, true
}

// convertOptional builds one of the custom optional types from a raw
// value. Empty strings hydrate to a nil *OptionalString.
func convertOptional(rv reflect.Value, typ reflect.Type) (reflect.Value, bool) {
	switch typ {
	case _optionalStringType:
		if rv.Kind() != reflect.String {
			return reflect.Value{}, false
		}
		return reflect.ValueOf(base.NewOptionalString(rv.String())), true
	case _optionalUInt64Type:
		u, ok := convertUint(rv, _uint64Type)
		if !ok {
			return reflect.Value{}, false
		}
		return reflect.ValueOf(base.NewOptionalUInt64(u.Uint())), true
	}
	return reflect.Value{}, false
}
