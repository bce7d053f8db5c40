package formatter

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/Clark-Hu/sdqa/internal/domain"
)

// Context property keys.
const (
	KeyExposureID    = "exposureId"
	KeyCCDExposureID = "ccdExposureId"
	KeyAmpExposureID = "ampExposureId"
	KeyScope         = "sdqaRatingScope"
	// KeyMetricNames optionally restores names when reading an archive.
	KeyMetricNames = "metricNames"
)

// Properties is the string-keyed context passed alongside a read or write.
type Properties map[string]interface{}

// Int64 returns an integer property. Numeric kinds and decimal strings are
// accepted; anything else is an invalid argument.
func (p Properties) Int64(key string) (int64, error) {
	raw, ok := p[key]
	if !ok || raw == nil {
		return 0, domain.InvalidArgument("missing property %q", key)
	}
	switch v := raw.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return 0, domain.InvalidArgument("property %q is not an integer: %v", key, v)
		}
		return int64(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, domain.InvalidArgument("property %q is not an integer: %s", key, v)
		}
		return n, nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, domain.InvalidArgument("property %q is not an integer: %q", key, v)
		}
		return n, nil
	}
	return 0, domain.InvalidArgument("property %q has unsupported type %T", key, raw)
}

// String returns a string property.
func (p Properties) String(key string) (string, error) {
	raw, ok := p[key]
	if !ok || raw == nil {
		return "", domain.InvalidArgument("missing property %q", key)
	}
	s, ok := raw.(string)
	if !ok {
		return "", domain.InvalidArgument("property %q has unsupported type %T", key, raw)
	}
	return s, nil
}

// Strings returns a string list property, or nil when the key is absent.
func (p Properties) Strings(key string) ([]string, error) {
	raw, ok := p[key]
	if !ok || raw == nil {
		return nil, nil
	}
	switch v := raw.(type) {
	case []string:
		return v, nil
	case []interface{}:
		out := make([]string, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, domain.InvalidArgument("property %q[%d] has unsupported type %T", key, i, item)
			}
			out[i] = s
		}
		return out, nil
	}
	return nil, domain.InvalidArgument("property %q has unsupported type %T", key, raw)
}
