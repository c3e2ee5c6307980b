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

	"github.com/pkg/errors"
)

// ErrUnknownColumn is returned when a lookup names a column the table
// does not map. The statement is never sent to the database.
var ErrUnknownColumn = errors.New("unknown column")

// DescriptorError is returned when a storage object cannot be registered.
// It indicates a programming error in the object definition.
type DescriptorError struct {
	// Object is the Go type name of the storage object
	Object string
	// Reason describes what is wrong with the object
	Reason string
}

func (e *DescriptorError) Error() string {
	return fmt.Sprintf("invalid storage object %s: %s", e.Object, e.Reason)
}

func newDescriptorError(object string, format string, args ...interface{}) error {
	return &DescriptorError{
		Object: object,
		Reason: fmt.Sprintf(format, args...),
	}
}

// BindError is returned when a value cannot be converted into a query
// parameter.
type BindError struct {
	// Column the value was bound for
	Column string
	// Type is the Go type of the value
	Type string
}

func (e *BindError) Error() string {
	return fmt.Sprintf("cannot bind column %q: unsupported type %s",
		e.Column, e.Type)
}

// HydrationReason tells why a row could not be turned into an object.
type HydrationReason string

const (
	// MissingColumn means the row did not contain a mapped column
	MissingColumn HydrationReason = "missing_column"
	// TypeMismatch means a column value could not be converted to the
	// type of its field
	TypeMismatch HydrationReason = "type_mismatch"
)

// HydrationError is returned when a row read from the database cannot be
// converted into a storage object.
type HydrationError struct {
	// Table the row was read from
	Table string
	// Column that failed
	Column string
	// Reason of the failure
	Reason HydrationReason
	// Detail is an optional human readable explanation
	Detail string
}

func (e *HydrationError) Error() string {
	msg := fmt.Sprintf("cannot hydrate %s.%s: %s", e.Table, e.Column, e.Reason)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// IsDescriptorError returns true if the cause of err is a DescriptorError
func IsDescriptorError(err error) bool {
	_, ok := errors.Cause(err).(*DescriptorError)
	return ok
}

// IsBindError returns true if the cause of err is a BindError
func IsBindError(err error) bool {
	_, ok := errors.Cause(err).(*BindError)
	return ok
}

// IsHydrationError returns true if the cause of err is a HydrationError
func IsHydrationError(err error) bool {
	_, ok := errors.Cause(err).(*HydrationError)
	return ok
}
