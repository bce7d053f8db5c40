package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/Clark-Hu/sdqa/internal/catalog"
	"github.com/Clark-Hu/sdqa/internal/catalogclient"
	"github.com/Clark-Hu/sdqa/internal/domain"
	"github.com/Clark-Hu/sdqa/internal/formatter"
	"github.com/Clark-Hu/sdqa/internal/harvest"
	"github.com/Clark-Hu/sdqa/internal/sqlstore"
)

// runner carries the global flags shared by every command.
type runner struct {
	logger         logrus.FieldLogger
	stdout         io.Writer
	dbDriver       string
	dbDSN          string
	catalogURL     string
	catalogKey     string
	catalogTimeout time.Duration

	store *sqlstore.Store
}

func (r *runner) close() {
	if r.store != nil {
		_ = r.store.Close()
	}
}

func (r *runner) openStore(ctx context.Context) (*sqlstore.Store, error) {
	if r.store != nil {
		return r.store, nil
	}
	st, err := sqlstore.Open(ctx, sqlstore.Driver(r.dbDriver), r.dbDSN, r.logger)
	if err != nil {
		return nil, err
	}
	r.store = st
	return st, nil
}

// catalogLoader prefers the remote catalog service over the database.
func (r *runner) catalogLoader(ctx context.Context) (catalog.Loader, error) {
	if r.catalogURL != "" {
		return catalogclient.NewHTTPClient(r.catalogURL, r.catalogKey, r.catalogTimeout, r.logger)
	}
	return r.openStore(ctx)
}

func (r *runner) harvest(ctx context.Context, configPath, metadataPath string, parentID int64, format, out string) error {
	cfg, err := harvest.LoadConfig(configPath)
	if err != nil {
		return err
	}
	md, err := harvest.LoadMetadata(metadataPath)
	if err != nil {
		return err
	}
	set, err := harvest.FromMetadata(md, cfg)
	if err != nil {
		return err
	}

	route, err := formatter.RouteFor(set[0].Scope())
	if err != nil {
		return err
	}
	if parentID == 0 {
		if parentID, err = md.Int64(route.ContextKey); err != nil {
			return errors.Wrap(err, "no --parent-id given")
		}
	}
	props := formatter.Properties{route.ContextKey: parentID}
	return r.persist(ctx, set, props, format, out)
}

func (r *runner) astromVerify(ctx context.Context, inputPath, format, out string) error {
	in, err := harvest.LoadAstromInput(inputPath)
	if err != nil {
		return err
	}
	set, res, checkErr := harvest.AstromVerify(in.CCDExposureID, in.Extracted, in.References, in.Params, r.logger)
	if set == nil {
		return checkErr
	}
	props := formatter.Properties{formatter.KeyCCDExposureID: res.CCDExposureID}
	if err := r.persist(ctx, set, props, format, out); err != nil {
		return err
	}
	return checkErr
}

func (r *runner) persist(ctx context.Context, set domain.RatingSet, props formatter.Properties, format, out string) error {
	p := domain.NewPersistableRatings(set)
	switch format {
	case "archive":
		return r.writeFile(out, func(w io.Writer) error {
			return formatter.New(formatter.WithLogger(r.logger)).Write(ctx, p, &formatter.ArchiveStorage{W: w}, props)
		})
	case "tsv":
		loader, err := r.catalogLoader(ctx)
		if err != nil {
			return err
		}
		f := formatter.New(formatter.WithLogger(r.logger), formatter.WithCatalog(loader))
		return r.writeFile(out, func(w io.Writer) error {
			return f.Write(ctx, p, &formatter.TSVStorage{W: w}, props)
		})
	case "db":
		st, err := r.openStore(ctx)
		if err != nil {
			return err
		}
		opts := []formatter.Option{formatter.WithLogger(r.logger)}
		if r.catalogURL != "" {
			loader, err := r.catalogLoader(ctx)
			if err != nil {
				return err
			}
			opts = append(opts, formatter.WithCatalog(loader))
		}
		if err := formatter.New(opts...).Write(ctx, p, formatter.NewDBStorage(st), props); err != nil {
			return err
		}
		r.logger.WithField("count", p.Len()).Info("sdqactl: ratings stored")
		return nil
	}
	return domain.InvalidArgument("unknown output format %q", format)
}

func (r *runner) dump(ctx context.Context, archivePath, scope string, names []string) error {
	file, err := os.Open(archivePath)
	if err != nil {
		return errors.Wrap(err, "open archive")
	}
	defer file.Close()

	props := formatter.Properties{formatter.KeyScope: scope}
	if len(names) > 0 {
		props[formatter.KeyMetricNames] = names
	}
	p, err := formatter.New(formatter.WithLogger(r.logger)).Read(ctx, &formatter.ArchiveStorage{R: file}, props)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(r.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PARENT\tMETRIC\tVALUE\tERROR")
	for _, rating := range p.Ratings() {
		name := rating.Name()
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%g\t%g\n", rating.ParentID(), name, rating.Value(), rating.Err())
	}
	return tw.Flush()
}

func (r *runner) export(ctx context.Context, scopeName string, parentID int64, out string) error {
	scope, err := domain.ParseScope(scopeName)
	if err != nil {
		return err
	}
	route, err := formatter.RouteFor(scope)
	if err != nil {
		return err
	}
	st, err := r.openStore(ctx)
	if err != nil {
		return err
	}
	loader, err := r.catalogLoader(ctx)
	if err != nil {
		return err
	}
	f := formatter.New(formatter.WithLogger(r.logger), formatter.WithCatalog(loader))

	props := formatter.Properties{formatter.KeyScope: scope.String(), route.ContextKey: parentID}
	p, err := f.Read(ctx, formatter.NewDBStorage(st), props)
	if err != nil {
		return err
	}
	if p.Len() == 0 {
		return domain.Runtime("no %s ratings stored for parent %d", scope, parentID)
	}
	return r.writeFile(out, func(w io.Writer) error {
		return f.Write(ctx, p, &formatter.TSVStorage{W: w}, props)
	})
}

// writeFile runs write against out, or stdout when out is "-". A failed
// write removes the partial file.
func (r *runner) writeFile(out string, write func(io.Writer) error) error {
	if out == "-" || out == "" {
		return write(r.stdout)
	}
	file, err := os.Create(out)
	if err != nil {
		return errors.Wrap(err, "create output")
	}
	if err := write(file); err != nil {
		_ = file.Close()
		_ = os.Remove(out)
		return err
	}
	return file.Close()
}
