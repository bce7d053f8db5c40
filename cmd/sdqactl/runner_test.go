package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Clark-Hu/sdqa/internal/domain"
)

const (
	harvestConfigYAML = `
scope: CCD
metric_names:
  - img.stat.mean
  - nBadPix
`
	metadataYAML = `
img.stat.mean: 3.5
NBADPIX: 12
ccdExposureId: 77
`
)

func newTestRunner(t *testing.T) (*runner, *bytes.Buffer) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	var out bytes.Buffer
	r := &runner{
		logger:         logger,
		stdout:         &out,
		dbDriver:       "sqlite",
		dbDSN:          "file:" + filepath.Join(t.TempDir(), "sdqactl.db"),
		catalogTimeout: time.Second,
	}
	t.Cleanup(r.close)
	return r, &out
}

func writeTemp(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func seedStore(t *testing.T, r *runner) {
	t.Helper()
	ctx := context.Background()
	st, err := r.openStore(ctx)
	require.NoError(t, err)
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, st.PutMetric(ctx, domain.Metric{ID: 1, Name: "img.stat.mean", DataType: domain.DataTypeFloat}))
	require.NoError(t, st.PutMetric(ctx, domain.Metric{ID: 2, Name: "nBadPix", DataType: domain.DataTypeInt}))
	require.NoError(t, st.PutThreshold(ctx, domain.Threshold{ID: 10, MetricID: 1, Upper: 5, Lower: 0, CreatedDate: created}))
	require.NoError(t, st.PutThreshold(ctx, domain.Threshold{ID: 20, MetricID: 2, Upper: 100, Lower: 0, CreatedDate: created}))
}

func TestHarvestToArchiveAndDump(t *testing.T) {
	r, out := newTestRunner(t)
	ctx := context.Background()
	cfg := writeTemp(t, "harvest.yaml", harvestConfigYAML)
	md := writeTemp(t, "meta.yaml", metadataYAML)
	archive := filepath.Join(t.TempDir(), "ratings.sdqr")

	require.NoError(t, r.harvest(ctx, cfg, md, 0, "archive", archive))

	require.NoError(t, r.dump(ctx, archive, "CCD", []string{"img.stat.mean", "nBadPix"}))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"PARENT", "METRIC", "VALUE", "ERROR"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"77", "img.stat.mean", "3.5", "0"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"77", "nBadPix", "12", "0"}, strings.Fields(lines[2]))
}

func TestDumpWithoutNames(t *testing.T) {
	r, out := newTestRunner(t)
	ctx := context.Background()
	cfg := writeTemp(t, "harvest.yaml", harvestConfigYAML)
	md := writeTemp(t, "meta.yaml", metadataYAML)
	archive := filepath.Join(t.TempDir(), "ratings.sdqr")

	require.NoError(t, r.harvest(ctx, cfg, md, 5, "archive", archive))
	require.NoError(t, r.dump(ctx, archive, "CCD", nil))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"5", "-", "3.5", "0"}, strings.Fields(lines[1]))
}

func TestHarvestToDatabaseAndExport(t *testing.T) {
	r, out := newTestRunner(t)
	seedStore(t, r)
	ctx := context.Background()
	cfg := writeTemp(t, "harvest.yaml", harvestConfigYAML)
	md := writeTemp(t, "meta.yaml", metadataYAML)

	require.NoError(t, r.harvest(ctx, cfg, md, 0, "db", ""))
	require.NoError(t, r.export(ctx, "ccd", 77, "-"))

	assert.Equal(t, "1\t10\t77\t3.5\t0\n2\t20\t77\t12\t0\n", out.String())
}

func TestHarvestToTSVUsesDatabaseCatalog(t *testing.T) {
	r, out := newTestRunner(t)
	seedStore(t, r)
	cfg := writeTemp(t, "harvest.yaml", harvestConfigYAML)
	md := writeTemp(t, "meta.yaml", metadataYAML)

	require.NoError(t, r.harvest(context.Background(), cfg, md, 0, "tsv", "-"))
	assert.True(t, strings.HasPrefix(out.String(), "1\t10\t77\t3.5\t0\n"))
}

func TestExportWithNothingStored(t *testing.T) {
	r, _ := newTestRunner(t)
	seedStore(t, r)
	err := r.export(context.Background(), "CCD", 404, "-")
	assert.True(t, domain.IsRuntime(err))
}

func TestHarvestFailureRemovesPartialFile(t *testing.T) {
	r, _ := newTestRunner(t)
	seedStore(t, r)
	cfg := writeTemp(t, "harvest.yaml", "scope: CCD\nmetric_names: [unknown.metric]\n")
	md := writeTemp(t, "meta.yaml", "unknown.metric: 1\nccdExposureId: 3\n")
	out := filepath.Join(t.TempDir(), "ratings.tsv")

	err := r.harvest(context.Background(), cfg, md, 0, "tsv", out)
	assert.True(t, domain.IsRuntime(err))
	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr))
}

func TestHarvestNeedsParent(t *testing.T) {
	r, _ := newTestRunner(t)
	cfg := writeTemp(t, "harvest.yaml", harvestConfigYAML)
	md := writeTemp(t, "meta.yaml", "img.stat.mean: 1\nnBadPix: 2\n")

	err := r.harvest(context.Background(), cfg, md, 0, "archive", "-")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no --parent-id given")
}

func TestAstromVerifyWritesRatingsEvenWhenFailing(t *testing.T) {
	r, _ := newTestRunner(t)
	input := writeTemp(t, "astrom.yaml", `
ccd_exposure_id: 12
params:
  min_matches: 5
extracted:
  - {ra: 10, dec: 10, peak: 100, stellarity: 0.9, local_bkg: 1, local_bkg_sdev: 1}
references:
  - {ra: 10, dec: 10.0001}
`)
	archive := filepath.Join(t.TempDir(), "astrom.sdqr")

	err := r.astromVerify(context.Background(), input, "archive", archive)
	assert.True(t, domain.IsRuntime(err))

	var out bytes.Buffer
	r.stdout = &out
	require.NoError(t, r.dump(context.Background(), archive, "CCD", []string{"nAstromVerifMatches", "astromVerifRmsRadDist"}))
	assert.Contains(t, out.String(), "nAstromVerifMatches")
	assert.Equal(t, []string{"12", "nAstromVerifMatches", "1", "0"}, strings.Fields(strings.Split(out.String(), "\n")[1]))
}

func TestPersistRejectsUnknownFormat(t *testing.T) {
	r, _ := newTestRunner(t)
	set := domain.RatingSet{domain.MustRating("nBadPix", 1, 0, domain.ScopeCCD)}
	err := r.persist(context.Background(), set, nil, "parquet", "-")
	assert.True(t, domain.IsInvalidArgument(err))
}
