package domain

import (
	"math"
	"strings"
	"time"
)

// MetricDataType is the storage type of a metric's values.
type MetricDataType int

const (
	DataTypeInvalid MetricDataType = iota
	DataTypeFloat
	DataTypeInt
)

func (d MetricDataType) String() string {
	switch d {
	case DataTypeFloat:
		return "FLOAT"
	case DataTypeInt:
		return "INT"
	default:
		return "INVALID"
	}
}

// ParseDataType maps FLOAT or INT (case-insensitive) to a data type.
func ParseDataType(name string) (MetricDataType, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "FLOAT":
		return DataTypeFloat, nil
	case "INT":
		return DataTypeInt, nil
	}
	return DataTypeInvalid, InvalidArgument("unknown metric data type %q", name)
}

// Metric is one row of the metric catalog.
type Metric struct {
	ID            int32
	Name          string
	PhysicalUnits string
	DataType      MetricDataType
	Definition    string
}

// NewMetric validates the data type before returning the metric.
func NewMetric(id int32, name, units string, dataType MetricDataType, definition string) (Metric, error) {
	var m Metric
	if err := m.Set(id, name, units, dataType, definition); err != nil {
		return Metric{}, err
	}
	return m, nil
}

// Set assigns all fields, leaving m untouched when dataType is invalid.
func (m *Metric) Set(id int32, name, units string, dataType MetricDataType, definition string) error {
	if dataType != DataTypeFloat && dataType != DataTypeInt {
		return InvalidArgument("metric data type has invalid value %d", int(dataType))
	}
	*m = Metric{
		ID:            id,
		Name:          name,
		PhysicalUnits: units,
		DataType:      dataType,
		Definition:    definition,
	}
	return nil
}

// Threshold bounds the acceptable values of one metric. Either bound may
// be NaN, meaning that side is open.
type Threshold struct {
	ID          int32
	MetricID    int32
	Upper       float64
	Lower       float64
	CreatedDate time.Time
}

// Within reports whether value lies inside the bounds.
func (t Threshold) Within(value float64) bool {
	if math.IsNaN(value) {
		return false
	}
	if !math.IsNaN(t.Upper) && value > t.Upper {
		return false
	}
	if !math.IsNaN(t.Lower) && value < t.Lower {
		return false
	}
	return true
}

// ImageStatus is one named status an image can be flagged with.
type ImageStatus struct {
	ID         int32
	Name       string
	Definition string
}
