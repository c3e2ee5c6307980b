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

	"github.com/uber/cqlorm/pkg/storage/objects/base"
)

// Connector is the interface that must be implemented for a backend service
type Connector interface {
	// Execute runs stmt with the positional values and returns the rows
	// it produced. Statements that produce no rows return an empty result.
	// Errors are returned as produced by the driver.
	Execute(
		ctx context.Context,
		stmt string,
		values []interface{},
	) ([]base.Row, error)
}
