// Copyright 2026 The LUCI Authors.
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

package spanner

import (
	"context"
	"flag"
	"fmt"
	"os"

	"cloud.google.com/go/spanner"
	"github.com/cockroachdb/errors"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"go.chromium.org/gcpdata/common/logging"
)

// EmulatorHostEnv is read by Cloud Spanner client libraries to find the
// emulator.
const EmulatorHostEnv = "SPANNER_EMULATOR_HOST"

// Options configure the Cloud Spanner client.
type Options struct {
	Project      string // Cloud project ID
	Instance     string // Spanner instance ID
	Database     string // database ID
	EmulatorHost string // host:port of the emulator, $SPANNER_EMULATOR_HOST if unset
}

// Register registers the command line flags.
func (o *Options) Register(f *flag.FlagSet) {
	f.StringVar(
		&o.Project,
		"spanner-project",
		o.Project,
		`Cloud project with the Spanner instance.`,
	)
	f.StringVar(
		&o.Instance,
		"spanner-instance",
		o.Instance,
		`Spanner instance ID.`,
	)
	f.StringVar(
		&o.Database,
		"spanner-database",
		o.Database,
		`Spanner database ID.`,
	)
	f.StringVar(
		&o.EmulatorHost,
		"spanner-emulator-host",
		o.EmulatorHost,
		`If set, connect to the Spanner emulator at this host:port instead of the real service.`,
	)
}

// DatabasePath is the full resource name of the database.
func (o *Options) DatabasePath() string {
	return fmt.Sprintf("projects/%s/instances/%s/databases/%s", o.Project, o.Instance, o.Database)
}

// ClientOptions are the options connecting to the configured service.
func (o *Options) ClientOptions() []option.ClientOption {
	host := o.EmulatorHost
	if host == "" {
		host = os.Getenv(EmulatorHostEnv)
	}
	if host == "" {
		return nil
	}
	return EmulatorOptions(host)
}

// EmulatorOptions are the client options connecting to the emulator at host.
func EmulatorOptions(host string) []option.ClientOption {
	return []option.ClientOption{
		option.WithEndpoint(host),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		option.WithoutAuthentication(),
	}
}

// NewClientFromOptions creates a Cloud Spanner client.
//
// The caller is responsible for closing it.
func NewClientFromOptions(ctx context.Context, o *Options) (*spanner.Client, error) {
	if o.Project == "" || o.Instance == "" || o.Database == "" {
		return nil, errors.New("spanner project, instance and database are required")
	}
	logging.Infof(ctx, "Setting up spanner client for %s", o.DatabasePath())

	client, err := spanner.NewClient(ctx, o.DatabasePath(), o.ClientOptions()...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to instantiate the spanner client")
	}
	return client, nil
}
