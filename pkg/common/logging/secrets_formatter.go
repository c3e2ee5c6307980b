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

package logging

import (
	"strings"

	"github.com/uber/cqlorm/pkg/common"

	log "github.com/sirupsen/logrus"
)

const (
	redactedStr = "REDACTED"

	secretTable = "secret_info"
)

// Redactable is implemented by values that carry secrets. Redacted
// returns a copy that is safe to log.
type Redactable interface {
	Redacted() interface{}
}

// SecretsFormatter scrubs sensitive information from logs and formats logs into
// parsable json.
type SecretsFormatter struct {
	*log.JSONFormatter
}

// Format is called by logrus and returns the formatted string.
// It looks for secrets data in each entry and redacts it.
func (f *SecretsFormatter) Format(entry *log.Entry) ([]byte, error) {
	for k, v := range entry.Data {
		switch v := v.(type) {
		case string:
			// filter DB statement so it doesn't contain secret_info
			if k == common.DBStmtLogField && strings.Contains(v, secretTable) {
				entry.Data[k] = redactedStr
				// CQL Query is on secret_info. The DBArgsLogField holds the
				// bound values, secret data included, so replace all of it.
				if _, ok := entry.Data[common.DBArgsLogField]; ok {
					entry.Data[common.DBArgsLogField] = redactedStr
				}
				if _, ok := entry.Data[common.DBTableLogField]; ok {
					entry.Data[common.DBTableLogField] = redactedStr
				}
			}
		case Redactable:
			entry.Data[k] = v.Redacted()
		}
	}
	return f.JSONFormatter.Format(entry)
}
