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

package objects

import (
	"context"
	"time"

	"github.com/uber/cqlorm/pkg/storage/objects/base"

	"github.com/pborman/uuid"
	log "github.com/sirupsen/logrus"
	"go.uber.org/yarpc/yarpcerrors"
)

const (
	secretInfoTable  = "secret_info"
	secretJobIDField = "job_id"

	redactedSecret = "REDACTED"
)

// SecretInfoObject corresponds to a row in secret_info table.
type SecretInfoObject struct {
	// base.Object DB specific annotations.
	base.Object `cassandra:"name=secret_info, primaryKey=((id))"`
	// SecretID is the id of the secret
	SecretID string `column:"name=id"`
	// JobID of the job this secret belongs to
	JobID string `column:"name=job_id"`
	// Version of the secret data, bumped on every data update
	Version int64 `column:"name=version"`
	// Valid is false once the secret should no longer be used
	Valid bool `column:"name=valid"`
	// Path is where the secret is mounted in the container
	Path string `column:"name=path"`
	// Data is the base64 encoded secret
	Data string `column:"name=data"`
	// CreationTime of the secret
	CreationTime time.Time `column:"name=creation_time"`
	// UpdatedAt is set on every write
	UpdatedAt time.Time `column:"name=updated_at"`
}

// Redacted returns a copy of the object that is safe to log.
func (o *SecretInfoObject) Redacted() interface{} {
	c := *o
	c.Data = redactedSecret
	return &c
}

// SecretInfoOps provides methods for manipulating secret_info table.
type SecretInfoOps interface {
	// CreateSecret creates a secret in the secret_info table.
	CreateSecret(
		ctx context.Context,
		jobID string,
		now time.Time,
		secretID, secretString, secretPath string,
	) error

	// GetSecret gets a secret from the secret_info table.
	GetSecret(ctx context.Context, secretID string) (*SecretInfoObject, error)

	// GetSecretsForJob gets every secret of a job.
	GetSecretsForJob(
		ctx context.Context,
		jobID string,
	) ([]*SecretInfoObject, error)

	// UpdateSecretData updates the data of an existing secret.
	UpdateSecretData(ctx context.Context, secretID, secretString string) error

	// DeleteSecret deletes a secret from the secret_info table.
	DeleteSecret(ctx context.Context, secretID string) error
}

// secretInfoOps implements SecretInfoOps using a particular Store.
type secretInfoOps struct {
	store *Store
}

// init adds a SecretInfoObject instance to the global list of storage objects.
func init() {
	Objs = append(Objs, &SecretInfoObject{})
}

// Default secretInfoOps implementation.
var _ SecretInfoOps = (*secretInfoOps)(nil)

// NewSecretInfoOps constructs a SecretInfoOps object for provided Store.
func NewSecretInfoOps(s *Store) SecretInfoOps {
	return &secretInfoOps{store: s}
}

// validateID returns an InvalidArgument error if id is not a UUID.
func validateID(kind, id string) error {
	if uuid.Parse(id) == nil {
		return yarpcerrors.InvalidArgumentErrorf("invalid %s %q", kind, id)
	}
	return nil
}

// CreateSecret creates a secret in the secret_info table.
func (d *secretInfoOps) CreateSecret(
	ctx context.Context,
	jobID string,
	now time.Time,
	secretID, secretString, secretPath string,
) error {
	if err := validateID("job id", jobID); err != nil {
		return err
	}
	if err := validateID("secret id", secretID); err != nil {
		return err
	}

	obj := &SecretInfoObject{
		SecretID:     secretID,
		JobID:        jobID,
		Version:      0,
		Valid:        true,
		Path:         secretPath,
		Data:         secretString,
		CreationTime: now.UTC(),
	}

	if err := d.store.secrets.Save(ctx, d.store.conn, obj); err != nil {
		d.store.metrics.OrmSecretMetrics.SecretInfoCreateFail.Inc(1)
		return err
	}
	d.store.metrics.OrmSecretMetrics.SecretInfoCreate.Inc(1)
	return nil
}

// GetSecret gets a secret from the secret_info table.
func (d *secretInfoOps) GetSecret(
	ctx context.Context,
	secretID string,
) (*SecretInfoObject, error) {
	if err := validateID("secret id", secretID); err != nil {
		return nil, err
	}

	obj, err := d.store.secrets.FindByID(ctx, d.store.conn, secretID)
	if err != nil {
		d.store.metrics.OrmSecretMetrics.SecretInfoGetFail.Inc(1)
		return nil, err
	}
	if obj == nil {
		d.store.metrics.OrmSecretMetrics.SecretInfoNotFound.Inc(1)
		return nil, yarpcerrors.NotFoundErrorf(
			"secret %s not found", secretID)
	}
	d.store.metrics.OrmSecretMetrics.SecretInfoGet.Inc(1)
	return obj, nil
}

// GetSecretsForJob gets every secret of a job.
func (d *secretInfoOps) GetSecretsForJob(
	ctx context.Context,
	jobID string,
) ([]*SecretInfoObject, error) {
	if err := validateID("job id", jobID); err != nil {
		return nil, err
	}

	callStart := time.Now()
	objs, err := d.store.secrets.FindByColumn(
		ctx, d.store.conn, secretJobIDField, jobID)
	if err != nil {
		d.store.metrics.OrmSecretMetrics.SecretInfoGetAllFail.Inc(1)
		return nil, err
	}
	d.store.metrics.OrmSecretMetrics.SecretInfoGetAllDuration.Record(
		time.Since(callStart))
	d.store.metrics.OrmSecretMetrics.SecretInfoGetAll.Inc(1)
	return objs, nil
}

// UpdateSecretData updates the data of an existing secret and bumps its
// version.
func (d *secretInfoOps) UpdateSecretData(
	ctx context.Context,
	secretID, secretString string,
) error {
	obj, err := d.GetSecret(ctx, secretID)
	if err != nil {
		d.store.metrics.OrmSecretMetrics.SecretInfoUpdateFail.Inc(1)
		return err
	}

	obj.Data = secretString
	obj.Version++
	if err := d.store.secrets.Save(ctx, d.store.conn, obj); err != nil {
		d.store.metrics.OrmSecretMetrics.SecretInfoUpdateFail.Inc(1)
		return err
	}

	log.WithFields(log.Fields{
		"secret_id": secretID,
		"version":   obj.Version,
	}).Debug("secret data updated")
	d.store.metrics.OrmSecretMetrics.SecretInfoUpdate.Inc(1)
	return nil
}

// DeleteSecret deletes a secret from the secret_info table.
func (d *secretInfoOps) DeleteSecret(
	ctx context.Context,
	secretID string,
) error {
	if err := validateID("secret id", secretID); err != nil {
		return err
	}

	obj := &SecretInfoObject{SecretID: secretID}
	if err := d.store.secrets.Delete(ctx, d.store.conn, obj); err != nil {
		d.store.metrics.OrmSecretMetrics.SecretInfoDeleteFail.Inc(1)
		return err
	}
	d.store.metrics.OrmSecretMetrics.SecretInfoDelete.Inc(1)
	return nil
}
