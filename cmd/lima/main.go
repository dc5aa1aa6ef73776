/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

/*
Lima inspects and maintains the license manager tables.

Usage:

	lima [flags] COMMAND

The commands are:

	count   print the number of rows, and for licenses the count per status
	list    print one page of rows
	find    print the row with the given --id
	reset   remove every row of the resource; needs --yes and a
	        configuration that allows truncation
	health  report the database connection health

The flags are:

	-c, --config PATH
		Load the YAML configuration from PATH. DB_* and LIMA_* environment
		variables override it.

	-r, --resource NAME
		Operate on "licenses" (the default) or "generators".

	--id N
		Row id for find.

	--status LIST
		Comma separated license statuses (names or numbers) for list and
		count.

	--order-by COLUMN, --sort ASC|DESC
		Ordering for list.

	--page N, --limit N
		Page number and page size for list.

	-y, --yes
		Confirm reset.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"
	"github.com/tomoncle/lima"
	"github.com/tomoncle/lima/database"
	"github.com/tomoncle/lima/resources"
	"github.com/tomoncle/lima/types"
	"github.com/tomoncle/lima/utils"
)

const (
	exitSuccess = 0
	exitError   = 1
	exitUsage   = 2
)

const (
	resourceLicenses   = "licenses"
	resourceGenerators = "generators"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type options struct {
	config   string
	resource string
	id       int64
	statuses []string
	orderBy  string
	sort     string
	page     int
	limit    int
	yes      bool
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var opts options
	fs := pflag.NewFlagSet("lima", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVarP(&opts.config, "config", "c", "", "Path to configuration file")
	fs.StringVarP(&opts.resource, "resource", "r", resourceLicenses, "Resource to operate on: licenses or generators")
	fs.Int64Var(&opts.id, "id", 0, "Row id for find")
	fs.StringSliceVar(&opts.statuses, "status", nil, "License statuses for list and count")
	fs.StringVar(&opts.orderBy, "order-by", "", "Column to order list output by")
	fs.StringVar(&opts.sort, "sort", "", "Sort direction for --order-by: ASC or DESC")
	fs.IntVar(&opts.page, "page", 1, "Page number for list")
	fs.IntVar(&opts.limit, "limit", 50, "Page size for list")
	fs.BoolVarP(&opts.yes, "yes", "y", false, "Confirm reset")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitSuccess
		}
		return exitUsage
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "ERROR: expected exactly one command: count, list, find, reset or health")
		return exitUsage
	}
	if opts.resource != resourceLicenses && opts.resource != resourceGenerators {
		fmt.Fprintf(stderr, "ERROR: unknown resource %q\n", opts.resource)
		return exitUsage
	}

	cfg, err := database.LoadConfig(opts.config)
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %s\n", err.Error())
		return exitError
	}
	utils.Configure(cfg.Logging)

	store, err := lima.Open(ctx, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %s\n", err.Error())
		return exitError
	}
	defer func() { _ = store.Close() }()

	c := &command{store: store, opts: opts, out: stdout}
	switch cmd := fs.Arg(0); cmd {
	case "count":
		err = c.count(ctx)
	case "list":
		err = c.list(ctx)
	case "find":
		err = c.find(ctx)
	case "reset":
		err = c.reset(ctx)
	case "health":
		err = c.health(ctx)
	default:
		fmt.Fprintf(stderr, "ERROR: unknown command %q\n", cmd)
		return exitUsage
	}
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %s\n", err.Error())
		return exitError
	}
	return exitSuccess
}

type command struct {
	store *lima.Store
	opts  options
	out   io.Writer
}

func (c *command) licenses() bool { return c.opts.resource == resourceLicenses }

func (c *command) statusFilter() (types.Filter, error) {
	if len(c.opts.statuses) == 0 {
		return nil, nil
	}
	if !c.licenses() {
		return nil, errors.New("--status only applies to licenses")
	}
	values := make([]int, 0, len(c.opts.statuses))
	for _, s := range c.opts.statuses {
		st, err := resources.ParseLicenseStatus(s)
		if err != nil {
			return nil, err
		}
		values = append(values, st.Number())
	}
	return types.Filter{resources.LicenseStatusColumn: values}, nil
}

func (c *command) count(ctx context.Context) error {
	filter, err := c.statusFilter()
	if err != nil {
		return err
	}
	if !c.licenses() {
		repo, err := c.store.Generators()
		if err != nil {
			return err
		}
		n, err := repo.Count(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "%s\t%d\n", repo.Table(), n)
		return nil
	}

	repo, err := c.store.Licenses()
	if err != nil {
		return err
	}
	if filter != nil {
		n, err := repo.CountBy(ctx, filter)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "%s\t%d\n", repo.Table(), n)
		return nil
	}

	total, err := repo.Count(ctx)
	if err != nil {
		return err
	}
	perStatus, err := repo.CountByStatus(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "%s\t%d\n", repo.Table(), total)
	for _, s := range resources.LicenseStatuses() {
		fmt.Fprintf(w, "  %s\t%d\n", s.Name(), perStatus[s])
	}
	return w.Flush()
}

func (c *command) pageRequest() (*types.PageRequest, error) {
	filter, err := c.statusFilter()
	if err != nil {
		return nil, err
	}
	var orders []types.Order
	if c.opts.orderBy != "" || c.opts.sort != "" {
		orders = append(orders, types.NewOrder(c.opts.orderBy, types.Direction(c.opts.sort)))
	}
	return types.NewPageRequest(c.opts.page, c.opts.limit, filter, orders), nil
}

func (c *command) list(ctx context.Context) error {
	req, err := c.pageRequest()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	if c.licenses() {
		repo, err := c.store.Licenses()
		if err != nil {
			return err
		}
		page, err := repo.Page(ctx, req)
		if err != nil {
			return err
		}
		writeRow(w, licenseHeader)
		for _, l := range page.Items {
			writeRow(w, licenseRow(l))
		}
		fmt.Fprintf(w, "page %d/%d, %d total\n", page.Page, page.Pages(), page.Total)
		return w.Flush()
	}

	repo, err := c.store.Generators()
	if err != nil {
		return err
	}
	page, err := repo.Page(ctx, req)
	if err != nil {
		return err
	}
	writeRow(w, generatorHeader)
	for _, g := range page.Items {
		writeRow(w, generatorRow(g))
	}
	fmt.Fprintf(w, "page %d/%d, %d total\n", page.Page, page.Pages(), page.Total)
	return w.Flush()
}

func (c *command) find(ctx context.Context) error {
	if c.opts.id <= 0 {
		return errors.New("find needs a positive --id")
	}

	w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	if c.licenses() {
		repo, err := c.store.Licenses()
		if err != nil {
			return err
		}
		l, err := repo.Find(ctx, c.opts.id)
		if err != nil {
			return err
		}
		writeRow(w, licenseHeader)
		writeRow(w, licenseRow(l))
		return w.Flush()
	}

	repo, err := c.store.Generators()
	if err != nil {
		return err
	}
	g, err := repo.Find(ctx, c.opts.id)
	if err != nil {
		return err
	}
	writeRow(w, generatorHeader)
	writeRow(w, generatorRow(g))
	return w.Flush()
}

type truncater interface {
	Truncate(ctx context.Context) error
	Table() string
}

func (c *command) reset(ctx context.Context) error {
	if !c.opts.yes {
		return errors.New("reset removes every row; pass --yes to confirm")
	}

	var repo truncater
	var err error
	if c.licenses() {
		repo, err = c.store.Licenses()
	} else {
		repo, err = c.store.Generators()
	}
	if err != nil {
		return err
	}
	if err := repo.Truncate(ctx); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s reset\n", repo.Table())
	return nil
}

func (c *command) health(ctx context.Context) error {
	status := c.store.HealthStatus(ctx)
	fmt.Fprintf(c.out, "healthy=%t connected=%t response_time=%s open=%d idle=%d\n",
		status.Healthy, status.Connected, status.ResponseTime.Round(time.Microsecond), status.ActiveConns, status.IdleConns)
	if !status.Healthy {
		return fmt.Errorf("database unhealthy: %s", status.LastError)
	}
	return nil
}

var licenseHeader = []string{"ID", "KEY", "STATUS", "ORDER", "PRODUCT", "EXPIRES", "ACTIVATIONS"}

func licenseRow(l *resources.License) []string {
	activations := strconv.FormatInt(l.TimesActivated, 10)
	if l.TimesActivatedMax != nil {
		activations += "/" + strconv.FormatInt(*l.TimesActivatedMax, 10)
	}
	return []string{
		strconv.FormatInt(l.ID, 10),
		l.LicenseKey,
		l.Status.Name(),
		optionalInt(l.OrderID),
		optionalInt(l.ProductID),
		optionalTime(l.ExpiresAt),
		activations,
	}
}

var generatorHeader = []string{"ID", "NAME", "CHARSET", "CHUNKS", "KEY_LENGTH", "EXPIRES_IN"}

func generatorRow(g *resources.Generator) []string {
	return []string{
		strconv.FormatInt(g.ID, 10),
		g.Name,
		g.Charset,
		fmt.Sprintf("%dx%d", g.Chunks, g.ChunkLength),
		strconv.FormatInt(g.KeyLength(), 10),
		optionalInt(g.ExpiresIn),
	}
}

func writeRow(w io.Writer, cols []string) {
	fmt.Fprintln(w, strings.Join(cols, "\t"))
}

func optionalInt(p *int64) string {
	if p == nil {
		return "-"
	}
	return strconv.FormatInt(*p, 10)
}

func optionalTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
