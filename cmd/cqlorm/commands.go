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

package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/uber/cqlorm/pkg/storage/objects"
	"github.com/uber/cqlorm/pkg/storage/orm"

	"github.com/natefinch/atomic"
	"gopkg.in/yaml.v2"
)

// renderStatements writes the CQL statements of every table to w.
func renderStatements(w io.Writer, tables []*orm.Table) error {
	for _, t := range tables {
		stmts := t.Statements
		if _, err := fmt.Fprintf(w,
			"-- %s\n%s\n%s\n%s\n%s\n\n",
			t.Name,
			stmts.FindByID,
			stmts.FindByColumnTemplate,
			stmts.Insert,
			stmts.Delete,
		); err != nil {
			return err
		}
	}
	return nil
}

// writeStatements renders the statements of every storage object, to
// stdout or atomically to output if it is set.
func writeStatements(output string) error {
	registry := orm.NewRegistry()
	if err := registry.RegisterObjects(objects.Objs...); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := renderStatements(&buf, registry.Tables()); err != nil {
		return err
	}
	if output == "" {
		_, err := buf.WriteTo(os.Stdout)
		return err
	}
	return atomic.WriteFile(output, &buf)
}

// secretView is the printed form of a secret.
type secretView struct {
	SecretID     string    `yaml:"secret_id"`
	JobID        string    `yaml:"job_id"`
	Version      int64     `yaml:"version"`
	Valid        bool      `yaml:"valid"`
	Path         string    `yaml:"path"`
	Data         string    `yaml:"data"`
	CreationTime time.Time `yaml:"creation_time"`
	UpdatedAt    time.Time `yaml:"updated_at"`
}

// printSecrets writes the secrets as YAML. Secret data is redacted unless
// reveal is set.
func printSecrets(
	w io.Writer,
	secrets []*objects.SecretInfoObject,
	reveal bool,
) error {
	out := make([]secretView, 0, len(secrets))
	for _, s := range secrets {
		if !reveal {
			s = s.Redacted().(*objects.SecretInfoObject)
		}
		out = append(out, secretView{
			SecretID:     s.SecretID,
			JobID:        s.JobID,
			Version:      s.Version,
			Valid:        s.Valid,
			Path:         s.Path,
			Data:         s.Data,
			CreationTime: s.CreationTime,
			UpdatedAt:    s.UpdatedAt,
		})
	}
	b, err := yaml.Marshal(out)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}
