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

// Package main implements a simple CLI tool to store books in Cloud Datastore
// or Cloud Spanner.
//
// Example:
//
//	bookshelf -store spanner -spanner-project p -spanner-instance i \
//	    -spanner-database d put -isbn 123 -title "Go" -pages 300
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/maruel/subcommands"
	"github.com/prometheus/client_golang/prometheus"

	"go.chromium.org/gcpdata"
	log "go.chromium.org/gcpdata/common/logging"
	"go.chromium.org/gcpdata/common/logging/gologger"
	ds "go.chromium.org/gcpdata/datastore"
	"go.chromium.org/gcpdata/metrics"
	sp "go.chromium.org/gcpdata/spanner"
)

// Book is the entity managed by the tool.
type Book struct {
	_     struct{} `gcpdata:"$kind,Book"`
	ISBN  string   `gcpdata:"$id"`
	Title string
	Pages int64
}

////////////////////////////////////////////////////////////////////////////////
// main
////////////////////////////////////////////////////////////////////////////////

// shelf is a template of either store.
type shelf interface {
	gcpdata.Operations

	// Transaction runs f with a template scoped to a new transaction.
	Transaction(ctx context.Context, readOnly bool, f func(context.Context, gcpdata.Operations) error) error
	// FindByIDAt reads an entity as of ts.
	FindByIDAt(ctx context.Context, ts time.Time, id, dst any) (bool, error)
}

type application struct {
	subcommands.DefaultApplication

	ctx context.Context
	out io.Writer

	store       string
	dumpMetrics bool
	dsOpts      ds.Options
	spOpts      sp.Options

	registry *prometheus.Registry

	// open returns the shelf of the configured store and a function closing
	// it.
	open func(ctx context.Context) (shelf, func(), error)
}

func getApplication(base subcommands.Application) (*application, context.Context) {
	app := base.(*application)
	return app, app.ctx
}

func (app *application) addFlags(fs *flag.FlagSet) {
	fs.StringVar(&app.store, "store", "datastore", `Store to use: "datastore" or "spanner".`)
	fs.BoolVar(&app.dumpMetrics, "dump-metrics", false, "Log operation counters before exiting.")
	app.dsOpts.Register(fs)
	app.spOpts.Register(fs)
}

// openShelf connects to the configured store.
func (app *application) openShelf(c context.Context) (shelf, func(), error) {
	rec, err := metrics.New(app.registry)
	if err != nil {
		return nil, nil, err
	}

	switch app.store {
	case "datastore":
		client, err := ds.NewClientFromOptions(c, &app.dsOpts)
		if err != nil {
			return nil, nil, err
		}
		opts := append(app.dsOpts.TemplateOptions(), ds.WithMetrics(rec))
		return dsShelf{ds.NewTemplate(ds.NewClient(client), opts...)}, func() { client.Close() }, nil

	case "spanner":
		client, err := sp.NewClientFromOptions(c, &app.spOpts)
		if err != nil {
			return nil, nil, err
		}
		return spShelf{sp.NewTemplate(sp.NewDatabaseClient(client), sp.WithMetrics(rec))}, client.Close, nil

	default:
		return nil, nil, errors.Newf("unknown store %q", app.store)
	}
}

// logMetrics logs the operation counters gathered so far.
func (app *application) logMetrics(c context.Context) {
	mfs, err := app.registry.Gather()
	if err != nil {
		log.WithError(err).Warningf(c, "Failed to gather metrics.")
		return
	}
	for _, mf := range mfs {
		if mf.GetName() != "gcpdata_operations_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			fields := log.Fields{}
			for _, lp := range m.GetLabel() {
				fields[lp.GetName()] = lp.GetValue()
			}
			fields.Infof(c, "%s = %v", mf.GetName(), m.GetCounter().GetValue())
		}
	}
}

type dsShelf struct {
	*ds.Template
}

func (s dsShelf) Transaction(ctx context.Context, readOnly bool, f func(context.Context, gcpdata.Operations) error) error {
	body := func(ctx context.Context, tx *ds.Template) error { return f(ctx, tx) }
	if readOnly {
		return s.PerformReadOnlyTransaction(ctx, body, nil)
	}
	return s.PerformReadWriteTransaction(ctx, body)
}

func (s dsShelf) FindByIDAt(ctx context.Context, ts time.Time, id, dst any) (found bool, err error) {
	err = s.PerformReadOnlyTransaction(ctx, func(ctx context.Context, tx *ds.Template) error {
		found, err = tx.FindByID(ctx, id, dst)
		return err
	}, &ds.ReadOptions{Timestamp: ts})
	return
}

type spShelf struct {
	*sp.Template
}

func (s spShelf) Transaction(ctx context.Context, readOnly bool, f func(context.Context, gcpdata.Operations) error) error {
	body := func(ctx context.Context, tx *sp.Template) error { return f(ctx, tx) }
	if readOnly {
		return s.PerformReadOnlyTransaction(ctx, body, nil)
	}
	return s.PerformReadWriteTransaction(ctx, body)
}

func newApplication(out io.Writer) *application {
	app := &application{
		DefaultApplication: subcommands.DefaultApplication{
			Name:  "bookshelf",
			Title: "Stores books in Cloud Datastore or Cloud Spanner.",
			Commands: []*subcommands.Command{
				subcommands.CmdHelp,

				&subcommandPut,
				&subcommandGet,
				&subcommandList,
				&subcommandCount,
				&subcommandDelete,
			},
		},
		out:      out,
		registry: prometheus.NewRegistry(),
	}
	app.open = app.openShelf
	return app
}

func mainImpl(c context.Context, app *application, args []string) int {
	c = gologger.StdConfig.Use(c)

	logConfig := log.Config{
		Level: log.Warning,
	}

	fs := flag.NewFlagSet("flags", flag.ContinueOnError)
	app.addFlags(fs)
	logConfig.AddFlags(fs)
	if err := fs.Parse(args); err != nil {
		return 1
	}
	app.ctx = logConfig.Set(c)

	if app.store != "datastore" && app.store != "spanner" {
		log.Errorf(c, "Invalid -store %q, expecting \"datastore\" or \"spanner\".", app.store)
		return 1
	}

	// Execute our subcommand.
	ret := subcommands.Run(app, fs.Args())
	if app.dumpMetrics {
		app.logMetrics(log.SetLevel(app.ctx, log.Info))
	}
	return ret
}

func main() {
	os.Exit(mainImpl(context.Background(), newApplication(os.Stdout), os.Args[1:]))
}

func renderErr(c context.Context, err error) {
	log.Errorf(c, "Error encountered during operation: %+v", err)
}

func printBook(out io.Writer, b *Book) {
	fmt.Fprintf(out, "%s\t%s\t%d\n", b.ISBN, b.Title, b.Pages)
}

// withShelf opens the shelf, runs f and closes the shelf.
func withShelf(c context.Context, app *application, f func(shelf) error) int {
	s, closeFn, err := app.open(c)
	if err != nil {
		renderErr(c, errors.Wrap(err, "failed to open the store"))
		return 1
	}
	defer closeFn()

	if err := f(s); err != nil {
		renderErr(c, err)
		return 1
	}
	return 0
}

////////////////////////////////////////////////////////////////////////////////
// Subcommand: put
////////////////////////////////////////////////////////////////////////////////

type cmdRunPut struct {
	subcommands.CommandRunBase

	isbn  string
	title string
	pages int64
}

var subcommandPut = subcommands.Command{
	UsageLine: "put -isbn <isbn> -title <title> [-pages <n>]",
	ShortDesc: "Saves a book in a read-write transaction.",
	CommandRun: func() subcommands.CommandRun {
		var cmd cmdRunPut

		cmd.Flags.StringVar(&cmd.isbn, "isbn", "", "Book ISBN.")
		cmd.Flags.StringVar(&cmd.title, "title", "", "Book title.")
		cmd.Flags.Int64Var(&cmd.pages, "pages", 0, "Number of pages.")

		return &cmd
	},
}

func (cmd *cmdRunPut) Run(baseApp subcommands.Application, args []string, _ subcommands.Env) int {
	app, c := getApplication(baseApp)

	switch {
	case cmd.isbn == "":
		log.Errorf(c, "Missing required argument (-isbn).")
		return 1
	case cmd.title == "":
		log.Errorf(c, "Missing required argument (-title).")
		return 1
	}

	return withShelf(c, app, func(s shelf) error {
		return s.Transaction(c, false, func(c context.Context, tx gcpdata.Operations) error {
			prev, err := gcpdata.FindByID[Book](c, tx, cmd.isbn)
			if err != nil {
				return err
			}
			if prev != nil {
				log.Fields{"isbn": cmd.isbn}.Infof(c, "Replacing %q.", prev.Title)
			}
			return tx.Save(c, &Book{ISBN: cmd.isbn, Title: cmd.title, Pages: cmd.pages})
		})
	})
}

////////////////////////////////////////////////////////////////////////////////
// Subcommand: get
////////////////////////////////////////////////////////////////////////////////

type cmdRunGet struct {
	subcommands.CommandRunBase

	isbn string
	at   string
}

var subcommandGet = subcommands.Command{
	UsageLine: "get -isbn <isbn> [-at <RFC3339 time>]",
	ShortDesc: "Prints a book.",
	CommandRun: func() subcommands.CommandRun {
		var cmd cmdRunGet

		cmd.Flags.StringVar(&cmd.isbn, "isbn", "", "Book ISBN.")
		cmd.Flags.StringVar(&cmd.at, "at", "", "Read the book as of this time.")

		return &cmd
	},
}

func (cmd *cmdRunGet) Run(baseApp subcommands.Application, args []string, _ subcommands.Env) int {
	app, c := getApplication(baseApp)

	if cmd.isbn == "" {
		log.Errorf(c, "Missing required argument (-isbn).")
		return 1
	}
	var at time.Time
	if cmd.at != "" {
		var err error
		if at, err = time.Parse(time.RFC3339, cmd.at); err != nil {
			log.WithError(err).Errorf(c, "Bad -at.")
			return 1
		}
	}

	return withShelf(c, app, func(s shelf) error {
		b := &Book{}
		var found bool
		var err error
		if at.IsZero() {
			found, err = s.FindByID(c, cmd.isbn, b)
		} else {
			found, err = s.FindByIDAt(c, at, cmd.isbn, b)
		}
		switch {
		case err != nil:
			return err
		case !found:
			return errors.Newf("no book with ISBN %q", cmd.isbn)
		}
		printBook(app.out, b)
		return nil
	})
}

////////////////////////////////////////////////////////////////////////////////
// Subcommand: list
////////////////////////////////////////////////////////////////////////////////

type cmdRunList struct {
	subcommands.CommandRunBase
}

var subcommandList = subcommands.Command{
	UsageLine: "list",
	ShortDesc: "Prints all books from one read-only snapshot.",
	CommandRun: func() subcommands.CommandRun {
		return &cmdRunList{}
	},
}

func (cmd *cmdRunList) Run(baseApp subcommands.Application, args []string, _ subcommands.Env) int {
	app, c := getApplication(baseApp)

	return withShelf(c, app, func(s shelf) error {
		return s.Transaction(c, true, func(c context.Context, tx gcpdata.Operations) error {
			books, err := gcpdata.FindAll[Book](c, tx)
			if err != nil {
				return err
			}
			for _, b := range books {
				printBook(app.out, b)
			}
			return nil
		})
	})
}

////////////////////////////////////////////////////////////////////////////////
// Subcommand: count
////////////////////////////////////////////////////////////////////////////////

type cmdRunCount struct {
	subcommands.CommandRunBase
}

var subcommandCount = subcommands.Command{
	UsageLine: "count",
	ShortDesc: "Prints the number of books.",
	CommandRun: func() subcommands.CommandRun {
		return &cmdRunCount{}
	},
}

func (cmd *cmdRunCount) Run(baseApp subcommands.Application, args []string, _ subcommands.Env) int {
	app, c := getApplication(baseApp)

	return withShelf(c, app, func(s shelf) error {
		n, err := gcpdata.Count[Book](c, s)
		if err != nil {
			return err
		}
		fmt.Fprintln(app.out, n)
		return nil
	})
}

////////////////////////////////////////////////////////////////////////////////
// Subcommand: delete
////////////////////////////////////////////////////////////////////////////////

type cmdRunDelete struct {
	subcommands.CommandRunBase

	isbn string
	all  bool
}

var subcommandDelete = subcommands.Command{
	UsageLine: "delete (-isbn <isbn> | -all)",
	ShortDesc: "Deletes one or all books.",
	CommandRun: func() subcommands.CommandRun {
		var cmd cmdRunDelete

		cmd.Flags.StringVar(&cmd.isbn, "isbn", "", "Book ISBN.")
		cmd.Flags.BoolVar(&cmd.all, "all", false, "Delete all books.")

		return &cmd
	},
}

func (cmd *cmdRunDelete) Run(baseApp subcommands.Application, args []string, _ subcommands.Env) int {
	app, c := getApplication(baseApp)

	if (cmd.isbn == "") == !cmd.all {
		log.Errorf(c, "Exactly one of -isbn and -all is required.")
		return 1
	}

	return withShelf(c, app, func(s shelf) error {
		if !cmd.all {
			return gcpdata.DeleteByID[Book](c, s, cmd.isbn)
		}
		n, err := gcpdata.DeleteAll[Book](c, s)
		if err != nil {
			return err
		}
		log.Infof(c, "Deleted %d books.", n)
		fmt.Fprintln(app.out, n)
		return nil
	})
}
