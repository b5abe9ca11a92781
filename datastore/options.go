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

package datastore

import (
	"context"
	"flag"
	"os"

	"cloud.google.com/go/datastore"
	"github.com/cockroachdb/errors"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"go.chromium.org/gcpdata/common/logging"
)

// EmulatorHostEnv is read by Cloud Datastore client libraries to find the
// emulator.
const EmulatorHostEnv = "DATASTORE_EMULATOR_HOST"

// Options configure the Cloud Datastore client.
type Options struct {
	Project      string // Cloud project ID
	Namespace    string // namespace of keys and queries
	EmulatorHost string // host:port of the emulator, $DATASTORE_EMULATOR_HOST if unset
}

// Register registers the command line flags.
func (o *Options) Register(f *flag.FlagSet) {
	f.StringVar(
		&o.Project,
		"datastore-project",
		o.Project,
		`Cloud project with the Datastore database.`,
	)
	f.StringVar(
		&o.Namespace,
		"datastore-namespace",
		o.Namespace,
		`Datastore namespace to read and write entities in.`,
	)
	f.StringVar(
		&o.EmulatorHost,
		"datastore-emulator-host",
		o.EmulatorHost,
		`If set, connect to the Datastore emulator at this host:port instead of the real service.`,
	)
}

// TemplateOptions are the template options implied by the configuration.
func (o *Options) TemplateOptions() []Option {
	if o.Namespace == "" {
		return nil
	}
	return []Option{WithNamespace(o.Namespace)}
}

// NewClientFromOptions creates a Cloud Datastore client.
//
// The caller is responsible for closing it.
func NewClientFromOptions(ctx context.Context, o *Options) (*datastore.Client, error) {
	if o.Project == "" {
		return nil, errors.New("datastore project is required")
	}
	logging.Infof(ctx, "Setting up datastore client for project %q", o.Project)

	// Enable auth only when using the real datastore.
	var clientOpts []option.ClientOption
	host := o.EmulatorHost
	if host == "" {
		host = os.Getenv(EmulatorHostEnv)
	}
	if host != "" {
		logging.Infof(ctx, "Using the datastore emulator at %s", host)
		clientOpts = []option.ClientOption{
			option.WithEndpoint(host),
			option.WithoutAuthentication(),
			option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		}
	}

	client, err := datastore.NewClient(ctx, o.Project, clientOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to instantiate the datastore client")
	}
	return client, nil
}
