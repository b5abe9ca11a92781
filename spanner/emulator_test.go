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

package spanner_test

import (
	"context"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"go.chromium.org/gcpdata"
	"go.chromium.org/gcpdata/common/logging"
	"go.chromium.org/gcpdata/common/logging/gologger"
	sp "go.chromium.org/gcpdata/spanner"
	"go.chromium.org/gcpdata/spanner/spantest"
)

const testDDL = `
CREATE TABLE Book (
  ISBN STRING(MAX) NOT NULL,
  Title STRING(MAX) NOT NULL,
  Pages INT64 NOT NULL,
) PRIMARY KEY (ISBN);
`

func TestEmulator(t *testing.T) {
	emulator := spantest.FromEnv()
	if emulator == nil {
		t.Skipf("%s is not set", sp.EmulatorHostEnv)
	}

	Convey(`Against the Spanner emulator`, t, func() {
		ctx := logging.SetLevel(gologger.StdConfig.Use(context.Background()), logging.Debug)
		ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		defer cancel()

		instance, err := emulator.NewInstance(ctx, "gcpdata-test", "testing")
		So(err, ShouldBeNil)
		db, err := spantest.NewTempDB(ctx, spantest.TempDBConfig{
			InstanceName: instance,
			Statements:   spantest.ParseDDL(testDDL),
		}, emulator)
		So(err, ShouldBeNil)
		defer db.Drop(ctx)

		cloud, err := db.Client(ctx)
		So(err, ShouldBeNil)
		defer cloud.Close()

		tmpl := sp.NewTemplate(sp.NewDatabaseClient(cloud))

		So(tmpl.Save(ctx, &Book{ISBN: "1", Title: "one", Pages: 1}), ShouldBeNil)
		err = tmpl.PerformReadWriteTransaction(ctx, func(ctx context.Context, tx *sp.Template) error {
			if err := tx.Save(ctx, &Book{ISBN: "2", Title: "two", Pages: 2}); err != nil {
				return err
			}
			return tx.Save(ctx, &Book{ISBN: "3", Title: "three", Pages: 3})
		})
		So(err, ShouldBeNil)
		committed := time.Now()

		book, err := gcpdata.FindByID[Book](ctx, tmpl, "2")
		So(err, ShouldBeNil)
		So(book, ShouldResemble, &Book{ISBN: "2", Title: "two", Pages: 2})

		missing, err := gcpdata.FindByID[Book](ctx, tmpl, "404")
		So(err, ShouldBeNil)
		So(missing, ShouldBeNil)

		So(tmpl.DeleteByID(ctx, "1", Book{}), ShouldBeNil)

		err = tmpl.PerformReadOnlyTransaction(ctx, func(ctx context.Context, tx *sp.Template) error {
			n, err := tx.Count(ctx, Book{})
			So(n, ShouldEqual, int64(3))
			return err
		}, &sp.ReadOptions{Timestamp: committed})
		So(err, ShouldBeNil)

		books, err := gcpdata.FindAllByID[Book](ctx, tmpl, "3", "1", "2")
		So(err, ShouldBeNil)
		So(books, ShouldHaveLength, 2)

		n, err := gcpdata.DeleteAll[Book](ctx, tmpl)
		So(err, ShouldBeNil)
		So(n, ShouldEqual, 2)
	})
}
