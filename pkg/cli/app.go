// Package cli implements the ekaya-datasources command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/jinzhu/inflection"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datasources/pkg/config"
	"github.com/ekaya-inc/ekaya-datasources/pkg/datasources"
	"github.com/ekaya-inc/ekaya-datasources/pkg/logging"
)

// ErrUsage is returned for unknown commands and wrong argument counts.
var ErrUsage = errors.New("usage")

type command struct {
	name    string
	args    string
	minArgs int
	maxArgs int
	run     func(ctx context.Context, args []string) error
}

// App runs one command against a datasource client.
type App struct {
	client *datasources.Client
	cfg    *config.Config
	logger *zap.Logger
	out    io.Writer
	errOut io.Writer
	format string

	commands []command
}

// New creates an App writing results to out and status lines to errOut.
func New(client *datasources.Client, cfg *config.Config, logger *zap.Logger, out, errOut io.Writer, format string) (*App, error) {
	if format != FormatJSON && format != FormatYAML {
		return nil, fmt.Errorf("%w: unknown output format %q", ErrUsage, format)
	}

	a := &App{
		client: client,
		cfg:    cfg,
		logger: logger.Named("cli"),
		out:    out,
		errOut: errOut,
		format: format,
	}
	a.commands = []command{
		{"list", "", 0, 0, a.list},
		{"get", "<id>", 1, 1, a.get},
		{"delete", "<id>", 1, 1, a.delete},
		{"hive", "", 0, 0, a.hive},
		{"new-jdbc", "", 0, 0, a.newJdbc},
		{"tables", "<id> [query]", 1, 2, a.tables},
		{"schema", "<id> <table> [schema]", 2, 3, a.schema},
		{"columns", "<id> <schema>", 2, 2, a.columns},
		{"query", "<id> <sql>", 2, 2, a.query},
		{"preview", "<id> <schema> <table> [limit]", 3, 4, a.preview},
		{"preview-sql", "<id> <schema> <table> [limit]", 3, 4, a.previewSQL},
		{"refs", "<controller-service-id>", 1, 1, a.refs},
		{"save", "<file.yaml|file.json>", 1, 1, a.save},
		{"test", "<file.yaml|file.json>", 1, 1, a.test},
		{"roles", "<file.yaml|file.json>", 1, 1, a.roles},
		{"dump-schemas", "<id> [query]", 1, 2, a.dumpSchemas},
	}
	return a, nil
}

// Usage writes the command summary to w.
func (a *App) Usage(w io.Writer) {
	fmt.Fprintf(w, "Commands:\n")
	for _, c := range a.commands {
		fmt.Fprintf(w, "  %-13s %s\n", c.name, c.args)
	}
}

// Run executes the command named by args[0].
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: no command given", ErrUsage)
	}

	for _, c := range a.commands {
		if c.name != args[0] {
			continue
		}
		rest := args[1:]
		if len(rest) < c.minArgs || len(rest) > c.maxArgs {
			return fmt.Errorf("%w: %s %s", ErrUsage, c.name, c.args)
		}
		a.logger.Debug("Running command", zap.String("command", c.name))
		return c.run(ctx, rest)
	}
	return fmt.Errorf("%w: unknown command %q", ErrUsage, args[0])
}

func (a *App) list(ctx context.Context, _ []string) error {
	list, err := a.client.FindAll(ctx)
	if err != nil {
		return err
	}
	a.status("%s", countOf(len(list), "datasource"))
	return encode(a.out, a.format, list)
}

func (a *App) get(ctx context.Context, args []string) error {
	ds, err := a.client.FindByID(ctx, args[0])
	if err != nil {
		return err
	}
	return encode(a.out, a.format, ds)
}

func (a *App) delete(ctx context.Context, args []string) error {
	if err := a.client.DeleteByID(ctx, args[0]); err != nil {
		return err
	}
	a.status("Deleted datasource %s", args[0])
	return nil
}

func (a *App) hive(_ context.Context, _ []string) error {
	return encode(a.out, a.format, a.client.HiveDatasource())
}

func (a *App) newJdbc(_ context.Context, _ []string) error {
	ds := a.client.NewJdbcDatasource()
	return encode(a.out, a.format, a.client.EnsureDefaultIcon(ds))
}

func (a *App) tables(ctx context.Context, args []string) error {
	query := optional(args, 1)
	tables, err := a.client.ListTables(ctx, args[0], query)
	if err != nil {
		return err
	}
	a.status("%s", countOf(len(tables), "table"))
	return encode(a.out, a.format, tables)
}

func (a *App) schema(ctx context.Context, args []string) error {
	var schema *string
	if len(args) > 2 {
		schema = &args[2]
	}
	ts, err := a.client.GetTableSchema(ctx, args[0], args[1], schema)
	if err != nil {
		return err
	}
	return encode(a.out, a.format, ts)
}

func (a *App) columns(ctx context.Context, args []string) error {
	raw, err := a.client.TablesAndColumns(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	return encode(a.out, a.format, raw)
}

func (a *App) query(ctx context.Context, args []string) error {
	result, err := a.client.Query(ctx, args[0], datasources.QueryEscape(args[1]))
	if err != nil {
		return err
	}
	a.status("%s", countOf(result.RowCount(), "row"))
	return encode(a.out, a.format, result)
}

func (a *App) preview(ctx context.Context, args []string) error {
	limit, err := a.limit(args)
	if err != nil {
		return err
	}
	result, err := a.client.Preview(ctx, args[0], args[1], args[2], limit)
	if err != nil {
		return err
	}
	a.status("%s", countOf(result.RowCount(), "row"))
	return encode(a.out, a.format, result)
}

func (a *App) previewSQL(ctx context.Context, args []string) error {
	limit, err := a.limit(args)
	if err != nil {
		return err
	}
	sql, err := a.client.PreviewSQL(ctx, args[0], args[1], args[2], limit)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.out, sql)
	return err
}

func (a *App) refs(ctx context.Context, args []string) error {
	raw, err := a.client.FindControllerServiceReferences(ctx, args[0])
	if err != nil {
		return err
	}
	return encode(a.out, a.format, raw)
}

// save creates or updates the datasource in the file, then saves its role
// memberships when it carries any.
func (a *App) save(ctx context.Context, args []string) error {
	ds, err := readDatasource(args[0])
	if err != nil {
		return err
	}

	saved, err := a.client.Save(ctx, ds)
	if err != nil {
		return err
	}

	if memberships := ds.Common().RoleMemberships; len(memberships) > 0 {
		saved.Common().RoleMemberships = memberships
		if err := a.client.SaveRoles(ctx, saved); err != nil {
			return fmt.Errorf("datasource %s saved but roles were not: %w", saved.GetID(), err)
		}
	}

	a.status("Saved datasource %s", saved.GetID())
	return encode(a.out, a.format, a.client.EnsureDefaultIcon(saved))
}

func (a *App) test(ctx context.Context, args []string) error {
	ds, err := readDatasource(args[0])
	if err != nil {
		return err
	}
	if err := a.client.TestConnection(ctx, ds); err != nil {
		return err
	}
	a.status("Connection to %s succeeded", ds.Common().Name)
	return nil
}

func (a *App) roles(ctx context.Context, args []string) error {
	ds, err := readDatasource(args[0])
	if err != nil {
		return err
	}
	if err := a.client.SaveRoles(ctx, ds); err != nil {
		return err
	}
	a.status("Saved %s on datasource %s", countOf(len(ds.Common().RoleMemberships), "role"), ds.GetID())
	return nil
}

// limit reads the optional fourth argument, defaulting to the configured preview limit.
func (a *App) limit(args []string) (int, error) {
	raw := optional(args, 3)
	if raw == "" {
		return a.cfg.PreviewLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: limit must be a positive integer, got %q", ErrUsage, raw)
	}
	return n, nil
}

func (a *App) status(format string, args ...any) {
	color.New(color.FgGreen).Fprintf(a.errOut, format+"\n", args...)
}

// Fail writes err as a red status line with credentials removed.
func (a *App) Fail(err error) {
	color.New(color.FgRed).Fprintf(a.errOut, "Error: %s\n", logging.SanitizeError(err))
}

func optional(args []string, i int) string {
	if i < len(args) {
		return strings.TrimSpace(args[i])
	}
	return ""
}

func countOf(n int, noun string) string {
	if n != 1 {
		noun = inflection.Plural(noun)
	}
	return strconv.Itoa(n) + " " + noun
}
