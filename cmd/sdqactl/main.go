package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/Clark-Hu/sdqa/internal/logging"
)

var (
	version string
	app     = kingpin.New("sdqactl", "SDQA rating tools")

	logLevel   = app.Flag("log-level", "log level").Default("info").Envar("SDQA_LOG_LEVEL").String()
	logFormat  = app.Flag("log-format", "log format (text or json)").Default("text").Envar("SDQA_LOG_FORMAT").Enum("text", "json")
	dbDriver   = app.Flag("db-driver", "ratings database driver").Default("sqlite").Envar("SDQA_DB_DRIVER").Enum("sqlite", "mysql", "postgres")
	dbDSN      = app.Flag("db-dsn", "ratings database DSN").Envar("SDQA_DB_URL").String()
	catalogURL = app.Flag("catalog-url", "remote catalog service; the database catalog is used when empty").Envar("SDQA_CATALOG_URL").String()
	catalogKey = app.Flag("catalog-api-key", "API key for the catalog service").Envar("SDQA_CATALOG_API_KEY").String()
	catalogTTL = app.Flag("catalog-timeout", "catalog request timeout").Default("5s").Duration()

	harvestCmd      = app.Command("harvest", "turn exposure metadata into ratings")
	harvestConfig   = harvestCmd.Arg("config", "YAML harvest configuration (scope, metric_names)").Required().ExistingFile()
	harvestMetadata = harvestCmd.Arg("metadata", "YAML exposure metadata").Required().ExistingFile()
	harvestParent   = harvestCmd.Flag("parent-id", "parent id; read from the metadata when omitted").Int64()
	harvestFormat   = harvestCmd.Flag("format", "output storage").Default("archive").Enum("archive", "tsv", "db")
	harvestOut      = harvestCmd.Flag("out", "output file for archive and tsv, - for stdout").Default("-").String()

	astromCmd    = app.Command("astrom-verify", "check astrometric matches and emit CCD ratings")
	astromInput  = astromCmd.Arg("input", "YAML run description").Required().ExistingFile()
	astromFormat = astromCmd.Flag("format", "output storage").Default("archive").Enum("archive", "tsv", "db")
	astromOut    = astromCmd.Flag("out", "output file for archive and tsv, - for stdout").Default("-").String()

	dumpCmd     = app.Command("dump", "print the ratings of an archive")
	dumpArchive = dumpCmd.Arg("archive", "archive file").Required().ExistingFile()
	dumpScope   = dumpCmd.Flag("scope", "rating scope of the archive").Required().String()
	dumpNames   = dumpCmd.Flag("name", "metric name of each archived rating, in order").Strings()

	exportCmd    = app.Command("export", "copy stored ratings into a bulk-load file")
	exportScope  = exportCmd.Arg("scope", "rating scope").Required().String()
	exportParent = exportCmd.Arg("parent-id", "parent id").Required().Int64()
	exportOut    = exportCmd.Flag("out", "output file, - for stdout").Default("-").String()
)

func main() {
	app.Version(version)
	app.HelpFlag.Short('h')
	cmd := kingpin.MustParse(app.Parse(os.Args[1:]))

	logger, err := logging.New("sdqactl", *logLevel, *logFormat)
	app.FatalIfError(err, "logger")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := &runner{
		logger:         logger,
		stdout:         os.Stdout,
		dbDriver:       *dbDriver,
		dbDSN:          *dbDSN,
		catalogURL:     *catalogURL,
		catalogKey:     *catalogKey,
		catalogTimeout: *catalogTTL,
	}
	defer r.close()

	switch cmd {
	case harvestCmd.FullCommand():
		err = r.harvest(ctx, *harvestConfig, *harvestMetadata, *harvestParent, *harvestFormat, *harvestOut)
	case astromCmd.FullCommand():
		err = r.astromVerify(ctx, *astromInput, *astromFormat, *astromOut)
	case dumpCmd.FullCommand():
		err = r.dump(ctx, *dumpArchive, *dumpScope, *dumpNames)
	case exportCmd.FullCommand():
		err = r.export(ctx, *exportScope, *exportParent, *exportOut)
	default:
		app.Fatalf("Unknown command %s", cmd)
	}
	app.FatalIfError(err, "")
}
