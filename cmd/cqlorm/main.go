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
	"context"
	"os"

	"github.com/uber/cqlorm/pkg/common"
	"github.com/uber/cqlorm/pkg/common/config"
	"github.com/uber/cqlorm/pkg/common/logging"
	"github.com/uber/cqlorm/pkg/storage/connectors/cassandra"
	"github.com/uber/cqlorm/pkg/storage/objects"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/uber-go/tally"
	_ "go.uber.org/automaxprocs"
	"gopkg.in/alecthomas/kingpin.v2"
)

var (
	version string
	app     = kingpin.New("cqlorm", "Tool to inspect CQL mapped storage objects")

	debug = app.Flag(
		"debug", "enable debug mode (log every CQL statement)").
		Short('d').
		Default("false").
		Envar("ENABLE_DEBUG_LOGGING").
		Bool()

	configFiles = app.Flag(
		"config",
		"YAML config files (can be provided multiple times to merge configs)").
		Short('c').
		ExistingFiles()

	secretsFile = app.Flag(
		"secrets-file", "YAML file holding the Cassandra credentials").
		Envar("CASSANDRA_SECRETS_FILE").
		ExistingFile()

	cassandraHosts = app.Flag(
		"cassandra-hosts", "Cassandra hosts").
		Envar("CASSANDRA_HOSTS").
		Strings()

	cassandraStore = app.Flag(
		"cassandra-store", "Cassandra store name").
		Default("").
		Envar("CASSANDRA_STORE").
		String()

	cassandraPort = app.Flag(
		"cassandra-port", "Cassandra port to connect").
		Default("0").
		Envar("CASSANDRA_PORT").
		Int()

	statementsCmd    = app.Command("statements", "Print the CQL statements of every storage object")
	statementsOutput = statementsCmd.Flag(
		"output", "Write the statements to this file instead of stdout").
		Short('o').
		String()

	getSecretCmd    = app.Command("get-secret", "Print a secret")
	getSecretID     = getSecretCmd.Arg("secret-id", "Secret ID").Required().String()
	getSecretReveal = getSecretCmd.Flag("reveal", "Print the secret data").Bool()

	listSecretsCmd    = app.Command("list-secrets", "Print every secret of a job")
	listSecretsJobID  = listSecretsCmd.Arg("job-id", "Job ID").Required().String()
	listSecretsReveal = listSecretsCmd.Flag("reveal", "Print the secret data").Bool()
)

func main() {
	app.Version(version)
	app.HelpFlag.Short('h')
	cmd := kingpin.MustParse(app.Parse(os.Args[1:]))

	log.SetFormatter(
		&logging.LogFieldFormatter{
			Formatter: &logging.SecretsFormatter{JSONFormatter: &log.JSONFormatter{}},
			Fields: log.Fields{
				common.AppLogField: app.Name,
			},
		},
	)
	// stdout carries the command output
	log.SetOutput(os.Stderr)

	initialLevel := log.InfoLevel
	if *debug {
		initialLevel = log.DebugLevel
	}
	log.SetLevel(initialLevel)

	if cmd == statementsCmd.FullCommand() {
		if err := writeStatements(*statementsOutput); err != nil {
			log.WithError(err).Fatal("Cannot render statements")
		}
		return
	}

	store := newStore()
	defer store.Close()

	ctx := context.Background()
	secretOps := objects.NewSecretInfoOps(store)

	switch cmd {
	case getSecretCmd.FullCommand():
		secret, err := secretOps.GetSecret(ctx, *getSecretID)
		if err != nil {
			log.WithError(err).
				WithField("secret_id", *getSecretID).
				Fatal("Cannot get secret")
		}
		if err := printSecrets(
			os.Stdout,
			[]*objects.SecretInfoObject{secret},
			*getSecretReveal,
		); err != nil {
			log.WithError(err).Fatal("Cannot print secret")
		}
	case listSecretsCmd.FullCommand():
		secrets, err := secretOps.GetSecretsForJob(ctx, *listSecretsJobID)
		if err != nil {
			log.WithError(err).
				WithField("job_id", *listSecretsJobID).
				Fatal("Cannot list secrets")
		}
		if err := printSecrets(os.Stdout, secrets, *listSecretsReveal); err != nil {
			log.WithError(err).Fatal("Cannot print secrets")
		}
	}
}

// configOverrides are the flag and environment values applied on top of
// the config files.
type configOverrides struct {
	hosts       []string
	store       string
	port        int
	secretsFile string
}

// loadConfig merges the config files, applies the overrides and only then
// validates the result, so required settings may come from either.
func loadConfig(files []string, o configOverrides) (*Config, error) {
	var cfg Config
	if err := config.Load(&cfg, files...); err != nil {
		return nil, err
	}

	if cfg.Storage.Cassandra.CassandraConn == nil {
		cfg.Storage.Cassandra.CassandraConn = &cassandra.CassandraConn{}
	}
	conn := cfg.Storage.Cassandra.CassandraConn
	if len(o.hosts) > 0 {
		conn.ContactPoints = o.hosts
	}

	if o.store != "" {
		cfg.Storage.Cassandra.StoreName = o.store
	}

	if o.port != 0 {
		conn.Port = o.port
	}

	if o.secretsFile != "" {
		var secrets config.CassandraSecretsConfig
		if err := config.Parse(&secrets, o.secretsFile); err != nil {
			return nil, errors.Wrap(err, "cannot parse secrets file")
		}
		conn.Username = secrets.CassandraUsername
		conn.Password = secrets.CassandraPassword
	}

	if err := config.Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// newStore loads the config, applies the flag overrides and connects to
// Cassandra.
func newStore() *objects.Store {
	if len(*configFiles) == 0 {
		log.Fatal("--config is required to connect to Cassandra")
	}
	log.WithField("files", *configFiles).Debug("Loading cqlorm config")

	cfg, err := loadConfig(*configFiles, configOverrides{
		hosts:       *cassandraHosts,
		store:       *cassandraStore,
		port:        *cassandraPort,
		secretsFile: *secretsFile,
	})
	if err != nil {
		log.WithField("error", err).Fatal("Cannot load cqlorm config")
	}

	log.WithFields(log.Fields{
		"store": cfg.Storage.Cassandra.StoreName,
		"hosts": cfg.Storage.Cassandra.CassandraConn.ContactPoints,
	}).Debug("Loaded cqlorm config")

	store, err := objects.NewCassandraStore(
		&cfg.Storage.Cassandra, tally.NoopScope)
	if err != nil {
		log.WithError(err).Fatal("Cannot create Cassandra store")
	}
	return store
}
