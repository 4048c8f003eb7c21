package cli

import (
	"context"
	"fmt"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ekaya-inc/ekaya-datasources/pkg/models"
)

// dumpSchemas fetches the schema of every table matching the optional query,
// at most cfg.Concurrency at a time. Results keep the table listing order.
func (a *App) dumpSchemas(ctx context.Context, args []string) error {
	id, query := args[0], optional(args, 1)

	tables, err := a.client.ListTables(ctx, id, query)
	if err != nil {
		return err
	}
	if len(tables) == 0 {
		a.status("%s", countOf(0, "table"))
		return encode(a.out, a.format, []*models.TableSchema{})
	}

	progress := mpb.NewWithContext(ctx, mpb.WithOutput(a.errOut), mpb.WithWidth(48))
	bar := progress.AddBar(int64(len(tables)),
		mpb.PrependDecorators(
			decor.Name("schemas ", decor.WC{W: 8}),
			decor.CountersNoUnit("%d / %d"),
		),
		mpb.AppendDecorators(decor.Percentage()),
	)

	schemas := make([]*models.TableSchema, len(tables))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Concurrency)
	for i, t := range tables {
		g.Go(func() error {
			defer bar.Increment()

			var schema *string
			if t.Schema != "" {
				schema = &t.Schema
			}
			ts, err := a.client.GetTableSchema(gctx, id, t.TableName, schema)
			if err != nil {
				return fmt.Errorf("failed to fetch schema of %s: %w", t.FullName, err)
			}
			schemas[i] = ts
			return nil
		})
	}

	err = g.Wait()
	if err != nil {
		bar.Abort(false)
	}
	progress.Wait()
	if err != nil {
		return err
	}

	a.logger.Debug("Dumped schemas",
		zap.String("datasource_id", id),
		zap.Int("tables", len(schemas)))
	a.status("%s", countOf(len(schemas), "table"))
	return encode(a.out, a.format, schemas)
}
