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

package gologger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"

	gol "github.com/op/go-logging"
	. "github.com/smartystreets/goconvey/convey"

	"go.chromium.org/gcpdata/common/logging"
)

const testFormat = `[%{level:.1s} %{shortfile}] %{message}`

var lre = regexp.MustCompile(`\[([A-Z]) (.+?):\d+\] (.*)`)

func parse(buf *bytes.Buffer) [][]string {
	return lre.FindAllStringSubmatch(buf.String(), -1)
}

func TestGoLogger(t *testing.T) {
	t.Parallel()

	Convey(`A new Go Logger instance`, t, func() {
		buf := bytes.Buffer{}
		cfg := &LoggerConfig{Format: testFormat, Out: &buf, Level: gol.DEBUG}
		l := cfg.NewLogger(nil)

		for _, entry := range []struct {
			L logging.Level
			F func(string, ...any)
			T string
		}{
			{logging.Debug, l.Debugf, "D"},
			{logging.Info, l.Infof, "I"},
			{logging.Warning, l.Warningf, "W"},
			{logging.Error, l.Errorf, "E"},
		} {
			Convey(fmt.Sprintf("Can log to: %s", entry.L), func() {
				entry.F("Test logging %s", entry.L)
				matches := parse(&buf)
				So(matches, ShouldHaveLength, 1)
				So(matches[0][1], ShouldEqual, entry.T)
				So(matches[0][2], ShouldEqual, "gologger_test.go")
				So(matches[0][3], ShouldEqual, fmt.Sprintf("Test logging %s", entry.L))
			})
		}
	})

	Convey(`A Go Logger instance installed in a Context at Info`, t, func() {
		buf := bytes.Buffer{}
		lc := &LoggerConfig{Format: testFormat, Out: &buf, Level: gol.DEBUG}
		ctx := logging.SetLevel(lc.Use(context.Background()), logging.Info)

		Convey(`Should log through top-level Context methods`, func() {
			logging.Infof(ctx, "hello %d", 1)
			logging.Errorf(ctx, "bye")

			matches := parse(&buf)
			So(matches, ShouldHaveLength, 2)
			So(matches[0][1], ShouldEqual, "I")
			So(matches[0][2], ShouldEqual, "gologger_test.go")
			So(matches[0][3], ShouldEqual, "hello 1")
			So(matches[1][1], ShouldEqual, "E")
		})

		Convey(`Should drop messages below the context level`, func() {
			logging.Debugf(ctx, "hidden")
			So(buf.String(), ShouldBeEmpty)
		})

		Convey(`Should append context fields`, func() {
			logging.WithError(errors.New("boom")).Warningf(ctx, "rollback failed")
			ctx = logging.SetField(ctx, "kind", "Book")
			logging.Infof(ctx, "query")

			matches := parse(&buf)
			So(matches, ShouldHaveLength, 2)
			So(matches[0][3], ShouldEqual, "rollback failed {error=boom}")
			So(matches[1][3], ShouldEqual, "query {kind=Book}")
		})
	})

	Convey(`Backend level filters messages`, t, func() {
		buf := bytes.Buffer{}
		l := (&LoggerConfig{Format: testFormat, Out: &buf, Level: gol.WARNING}).NewLogger(nil)
		l.Infof("dropped")
		l.Warningf("kept")

		matches := parse(&buf)
		So(matches, ShouldHaveLength, 1)
		So(matches[0][3], ShouldEqual, "kept")
	})
}
