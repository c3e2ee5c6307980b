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

package storage

import (
	"github.com/uber-go/tally"
)

// OrmSecretMetrics tracks counters for the secret_info table accessed
// through the ORM layer
type OrmSecretMetrics struct {
	SecretInfoCreate     tally.Counter
	SecretInfoCreateFail tally.Counter
	SecretInfoGet        tally.Counter
	SecretInfoGetFail    tally.Counter
	SecretInfoNotFound   tally.Counter
	SecretInfoGetAll     tally.Counter
	SecretInfoGetAllFail tally.Counter
	SecretInfoUpdate     tally.Counter
	SecretInfoUpdateFail tally.Counter
	SecretInfoDelete     tally.Counter
	SecretInfoDeleteFail tally.Counter

	SecretInfoGetAllDuration tally.Timer
}

// Metrics is a struct for tracking all the storage level metrics
type Metrics struct {
	OrmSecretMetrics *OrmSecretMetrics
}

// NewMetrics returns a new Metrics struct, with all metrics initialized and rooted at the given tally.Scope
func NewMetrics(scope tally.Scope) *Metrics {
	ormScope := scope.SubScope("orm")

	secretInfoScope := ormScope.SubScope("secret_info")
	secretInfoSuccessScope := secretInfoScope.Tagged(
		map[string]string{"result": "success"})
	secretInfoFailScope := secretInfoScope.Tagged(
		map[string]string{"result": "fail"})
	secretInfoNotFoundScope := secretInfoScope.Tagged(
		map[string]string{"result": "not_found"})

	ormSecretMetrics := &OrmSecretMetrics{
		SecretInfoCreate:     secretInfoSuccessScope.Counter("create"),
		SecretInfoCreateFail: secretInfoFailScope.Counter("create"),
		SecretInfoGet:        secretInfoSuccessScope.Counter("get"),
		SecretInfoGetFail:    secretInfoFailScope.Counter("get"),
		SecretInfoNotFound:   secretInfoNotFoundScope.Counter("get"),
		SecretInfoGetAll:     secretInfoSuccessScope.Counter("getAll"),
		SecretInfoGetAllFail: secretInfoFailScope.Counter("getAll"),
		SecretInfoUpdate:     secretInfoSuccessScope.Counter("update"),
		SecretInfoUpdateFail: secretInfoFailScope.Counter("update"),
		SecretInfoDelete:     secretInfoSuccessScope.Counter("delete"),
		SecretInfoDeleteFail: secretInfoFailScope.Counter("delete"),

		SecretInfoGetAllDuration: secretInfoSuccessScope.Timer(
			"get_all_duration"),
	}

	return &Metrics{
		OrmSecretMetrics: ormSecretMetrics,
	}
}
