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

package common

const (
	// AppLogField is the log field key for app name
	AppLogField = "app"
	// DBStmtLogField is the log field key for a DB statement
	DBStmtLogField = "db_stmt"
	// DBArgsLogField is the log field key for the values bound to a DB
	// statement
	DBArgsLogField = "db_args"
	// DBTableLogField is the log field key for a DB table
	DBTableLogField = "db_table"
)
