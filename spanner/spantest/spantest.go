// Copyright 2019 The LUCI Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package spantest implements creation/destruction of a temporary Spanner
// database on the Cloud Spanner Emulator.
package spantest

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"cloud.google.com/go/spanner"
	spandb "cloud.google.com/go/spanner/admin/database/apiv1"
	dbpb "cloud.google.com/go/spanner/admin/database/apiv1/databasepb"
	spanins "cloud.google.com/go/spanner/admin/instance/apiv1"
	inspb "cloud.google.com/go/spanner/admin/instance/apiv1/instancepb"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	sp "go.chromium.org/gcpdata/spanner"
)

// emulatorCfg is the instance config the emulator provides.
const emulatorCfg = "emulator-config"

// Emulator is a running Cloud Spanner Emulator.
type Emulator struct {
	hostport string
}

// FromEnv returns the emulator at $SPANNER_EMULATOR_HOST, or nil if it is not
// set.
func FromEnv() *Emulator {
	if host := os.Getenv(sp.EmulatorHostEnv); host != "" {
		return &Emulator{hostport: host}
	}
	return nil
}

// Host is the host:port of the emulator.
func (e *Emulator) Host() string {
	return e.hostport
}

func (e *Emulator) opts() []option.ClientOption {
	return sp.EmulatorOptions(e.hostport)
}

// NewInstance creates an instance in the emulator, reusing an existing one
// with the same ID.
//
// It returns the full instance name.
func (e *Emulator) NewInstance(ctx context.Context, project, instanceID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client, err := spanins.NewInstanceAdminClient(ctx, e.opts()...)
	if err != nil {
		return "", err
	}
	defer client.Close()

	parent := "projects/" + project
	name := parent + "/instances/" + instanceID
	insOp, err := client.CreateInstance(ctx, &inspb.CreateInstanceRequest{
		Parent:     parent,
		InstanceId: instanceID,
		Instance: &inspb.Instance{
			Config:      parent + "/instanceConfigs/" + emulatorCfg,
			DisplayName: instanceID,
			NodeCount:   1,
		},
	})
	switch {
	case status.Code(err) == codes.AlreadyExists:
		return name, nil
	case err != nil:
		return "", errors.Wrap(err, "failed to create instance")
	}

	switch ins, err := insOp.Wait(ctx); {
	case err != nil:
		return "", errors.Wrap(err, "failed to get instance state")
	case ins.State != inspb.Instance_READY:
		return "", errors.Newf("instance is not ready, got state %v", ins.State)
	default:
		return ins.Name, nil
	}
}

// TempDBConfig specifies how to create a temporary database.
type TempDBConfig struct {
	// InstanceName is the name of Spanner instance where to create the
	// temporary database.
	// Format: projects/{project}/instances/{instance}.
	InstanceName string

	// Statements are DDL statements initializing the database.
	Statements []string

	// InitScriptPath is a path to a DDL script to initialize the database,
	// executed after Statements.
	//
	// In lieu of a proper DDL parser, it is parsed using regexes.
	// Therefore the script MUST:
	//   - Use `#`` and/or `--`` for comments. No block comments.
	//   - Separate DDL statements with `;\n`.
	InitScriptPath string
}

var ddlStatementSepRe = regexp.MustCompile(`;\s*\n`)
var commentRe = regexp.MustCompile(`(--|#)[^\n]*`)

// ddlStatements returns Statements followed by the statements of the init
// script.
func (cfg *TempDBConfig) ddlStatements() ([]string, error) {
	ret := append([]string(nil), cfg.Statements...)
	if cfg.InitScriptPath == "" {
		return ret, nil
	}

	contents, err := os.ReadFile(cfg.InitScriptPath)
	if err != nil {
		return nil, err
	}
	return append(ret, ParseDDL(string(contents))...), nil
}

// ParseDDL splits a DDL script into statements, dropping comments.
func ParseDDL(script string) []string {
	var ret []string
	for _, stmt := range ddlStatementSepRe.Split(script, -1) {
		stmt = commentRe.ReplaceAllString(stmt, "")
		stmt = strings.TrimSpace(stmt)
		stmt = strings.TrimSuffix(stmt, ";")
		if stmt != "" {
			ret = append(ret, stmt)
		}
	}
	return ret
}

// TempDB is a temporary Spanner database.
type TempDB struct {
	Name string
	opts []option.ClientOption
}

// Client returns a spanner client connected to the database.
func (db *TempDB) Client(ctx context.Context) (*spanner.Client, error) {
	return spanner.NewClient(ctx, db.Name, db.opts...)
}

// Drop deletes the database.
func (db *TempDB) Drop(ctx context.Context) error {
	client, err := spandb.NewDatabaseAdminClient(ctx, db.opts...)
	if err != nil {
		return err
	}
	defer client.Close()

	return client.DropDatabase(ctx, &dbpb.DropDatabaseRequest{
		Database: db.Name,
	})
}

var dbNameAlphabetInversedRe = regexp.MustCompile(`[^\w]+`)

// NewTempDB creates a temporary database with a random name in the emulator.
//
// The caller is responsible for calling Drop on the returned TempDB to
// cleanup resources after usage.
func NewTempDB(ctx context.Context, cfg TempDBConfig, e *Emulator) (*TempDB, error) {
	if e == nil {
		return nil, errors.New("the Cloud Spanner Emulator is required")
	}
	if cfg.InstanceName == "" {
		return nil, errors.New("InstanceName is required")
	}

	initStatements, err := cfg.ddlStatements()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %q", cfg.InitScriptPath)
	}

	opts := e.opts()
	client, err := spandb.NewDatabaseAdminClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	// Generate a random database name.
	dbName := fmt.Sprintf("tmp%s-%s", time.Now().Format("20060102"), uuid.NewString()[:8])
	dbName = SanitizeDBName(dbName)

	dbOp, err := client.CreateDatabase(ctx, &dbpb.CreateDatabaseRequest{
		Parent:          cfg.InstanceName,
		CreateStatement: "CREATE DATABASE " + dbName,
		ExtraStatements: initStatements,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create database")
	}
	db, err := dbOp.Wait(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create database")
	}

	return &TempDB{
		Name: db.Name,
		opts: opts,
	}, nil
}

// SanitizeDBName tranforms name to a valid one.
// If name is already valid, returns it without changes.
func SanitizeDBName(name string) string {
	name = strings.ToLower(name)
	name = dbNameAlphabetInversedRe.ReplaceAllLiteralString(name, "_")
	const maxLen = 30
	if len(name) > maxLen {
		name = name[:maxLen]
	}
	name = strings.TrimRight(name, "_")
	return name
}
