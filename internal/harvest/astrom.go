package harvest

import (
	"math"
	"sort"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/Clark-Hu/sdqa/internal/domain"
)

// Rating names produced by AstromVerify.
const (
	MetricAstromMatches = "nAstromVerifMatches"
	MetricAstromRmsDist = "astromVerifRmsRadDist"
)

const arcsecPerDegree = 3600.0

// AstromParams configures the astrometric verification check. Distances
// are in arcseconds.
type AstromParams struct {
	MinMatches     int     `koanf:"min_matches"`
	MaxRmsRadDist  float64 `koanf:"max_rms_rad_dist"`
	MatchRadius    float64 `koanf:"match_radius"`
	MinStellarity  float64 `koanf:"min_stellarity"`
	NLocalBkgSigma float64 `koanf:"n_local_bkg_sigma"`
}

// DefaultAstromParams returns the thresholds used when none are configured.
func DefaultAstromParams() AstromParams {
	return AstromParams{
		MinMatches:     10,
		MaxRmsRadDist:  1.0,
		MatchRadius:    2.0,
		MinStellarity:  0.8,
		NLocalBkgSigma: 5,
	}
}

// Validate rejects non-positive radii and negative counts.
func (p AstromParams) Validate() error {
	if p.MinMatches < 0 {
		return domain.InvalidArgument("min_matches must be non-negative")
	}
	if !(p.MatchRadius > 0) {
		return domain.InvalidArgument("match_radius must be positive")
	}
	if !(p.MaxRmsRadDist > 0) {
		return domain.InvalidArgument("max_rms_rad_dist must be positive")
	}
	return nil
}

// Source is a position on the sky in degrees.
type Source struct {
	RA  float64 `koanf:"ra"`
	Dec float64 `koanf:"dec"`
}

// ExtractedSource is a detection on the CCD image.
type ExtractedSource struct {
	RA           float64 `koanf:"ra"`
	Dec          float64 `koanf:"dec"`
	Peak         float64 `koanf:"peak"`
	Stellarity   float64 `koanf:"stellarity"`
	LocalBkg     float64 `koanf:"local_bkg"`
	LocalBkgSdev float64 `koanf:"local_bkg_sdev"`
	// Flags is non-zero for confused, saturated, edge or corrupted detections.
	Flags int `koanf:"flags"`
}

// Position returns the sky position of s.
func (s ExtractedSource) Position() Source { return Source{RA: s.RA, Dec: s.Dec} }

// Selected reports whether s passes the stellarity, flag and peak cuts.
func (p AstromParams) Selected(s ExtractedSource) bool {
	if s.Flags != 0 || s.Stellarity <= p.MinStellarity {
		return false
	}
	return s.Peak > s.LocalBkg+p.NLocalBkgSigma*s.LocalBkgSdev
}

// AstromResult is the outcome of one verification.
type AstromResult struct {
	CCDExposureID int64
	Selected      int
	Matches       int
	RmsRadDist    float64
}

// Passed reports whether the result meets p.
func (r AstromResult) Passed(p AstromParams) bool {
	return r.Matches >= p.MinMatches && r.RmsRadDist <= p.MaxRmsRadDist
}

// AstromVerify matches the selected extracted sources against the
// reference catalog and returns the two CCD ratings. The ratings are
// returned even when the check fails; the error then wraps ErrRuntime.
// With no matches the RMS distance is zero.
func AstromVerify(ccdExposureID int64, extracted []ExtractedSource, refs []Source, p AstromParams, logger logrus.FieldLogger) (domain.RatingSet, AstromResult, error) {
	if err := p.Validate(); err != nil {
		return nil, AstromResult{}, err
	}
	if ccdExposureID < 1 {
		return nil, AstromResult{}, domain.InvalidArgument("ccd exposure id must be positive, got %d", ccdExposureID)
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	selected := make([]Source, 0, len(extracted))
	for _, s := range extracted {
		if p.Selected(s) {
			selected = append(selected, s.Position())
		}
	}
	res := AstromResult{CCDExposureID: ccdExposureID, Selected: len(selected)}

	dists := matchSources(selected, refs, p.MatchRadius)
	res.Matches = len(dists)
	if len(dists) > 0 {
		var sum float64
		for _, d := range dists {
			sum += d * d
		}
		res.RmsRadDist = math.Sqrt(sum / float64(len(dists)))
	}

	set := domain.RatingSet{
		domain.MustRating(MetricAstromMatches, float64(res.Matches), 0, domain.ScopeCCD),
		domain.MustRating(MetricAstromRmsDist, res.RmsRadDist, 0, domain.ScopeCCD),
	}
	for _, r := range set {
		_ = r.SetParentID(ccdExposureID)
	}

	log := logger.WithFields(logrus.Fields{
		"ccdExposureId":     ccdExposureID,
		"extracted":         len(extracted),
		"selected":          res.Selected,
		MetricAstromMatches: res.Matches,
		MetricAstromRmsDist: res.RmsRadDist,
	})
	switch {
	case res.Matches < p.MinMatches:
		log.Warn("harvest: astrometric verification failed")
		return set, res, domain.Runtime("%d astrometric matches, need at least %d", res.Matches, p.MinMatches)
	case res.RmsRadDist > p.MaxRmsRadDist:
		log.Warn("harvest: astrometric verification failed")
		return set, res, domain.Runtime("rms radial distance %.4g arcsec exceeds %.4g", res.RmsRadDist, p.MaxRmsRadDist)
	}
	log.Info("harvest: astrometric verification passed")
	return set, res, nil
}

// matchSources pairs each source with its nearest reference inside radius
// (arcsec) and returns the match distances in arcsec. Both lists are
// sorted by right ascension so only a narrow band of references is
// scanned. A reference may match several sources.
func matchSources(sources, refs []Source, radius float64) []float64 {
	if len(sources) == 0 || len(refs) == 0 {
		return nil
	}
	sorted := append([]Source(nil), refs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].RA < sorted[j].RA })
	src := append([]Source(nil), sources...)
	sort.Slice(src, func(i, j int) bool { return src[i].RA < src[j].RA })

	radiusDeg := radius / arcsecPerDegree
	dists := make([]float64, 0, len(src))
	for _, s := range src {
		window := raWindow(s.Dec, radiusDeg)
		best := math.Inf(1)
		visit := func(lo, hi float64) {
			i := sort.Search(len(sorted), func(i int) bool { return sorted[i].RA >= lo })
			for ; i < len(sorted) && sorted[i].RA <= hi; i++ {
				if d := separation(s, sorted[i]) * arcsecPerDegree; d < best {
					best = d
				}
			}
		}
		if window >= 180 {
			visit(math.Inf(-1), math.Inf(1))
		} else {
			visit(s.RA-window, s.RA+window)
			// The band wraps across RA 0/360.
			if s.RA-window < 0 {
				visit(s.RA-window+360, 360)
			}
			if s.RA+window >= 360 {
				visit(0, s.RA+window-360)
			}
		}
		if best <= radius {
			dists = append(dists, best)
		}
	}
	return dists
}

// raWindow widens radius (degrees) by 1/cos(dec) near the poles.
func raWindow(dec, radius float64) float64 {
	c := math.Cos((math.Abs(dec) + radius) * math.Pi / 180)
	if c <= 1e-9 {
		return 180
	}
	return math.Min(radius/c, 180)
}

// separation is the great-circle distance in degrees (haversine).
func separation(a, b Source) float64 {
	const rad = math.Pi / 180
	dRA := (b.RA - a.RA) * rad
	dDec := (b.Dec - a.Dec) * rad
	h := math.Sin(dDec/2)*math.Sin(dDec/2) +
		math.Cos(a.Dec*rad)*math.Cos(b.Dec*rad)*math.Sin(dRA/2)*math.Sin(dRA/2)
	return 2 * math.Asin(math.Min(1, math.Sqrt(h))) / rad
}

// AstromInput is the file form of one verification run.
type AstromInput struct {
	CCDExposureID int64             `koanf:"ccd_exposure_id"`
	Params        AstromParams      `koanf:"params"`
	Extracted     []ExtractedSource `koanf:"extracted"`
	References    []Source          `koanf:"references"`
}

// LoadAstromInput reads a YAML run description. Parameters it omits keep
// their defaults.
func LoadAstromInput(path string) (AstromInput, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return AstromInput{}, errors.Wrapf(err, "read astrometry input %s", path)
	}
	in := AstromInput{Params: DefaultAstromParams()}
	if err := k.UnmarshalWithConf("", &in, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return AstromInput{}, errors.Wrap(err, "decode astrometry input")
	}
	return in, nil
}
