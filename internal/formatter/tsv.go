package formatter

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/pkg/errors"

	"github.com/Clark-Hu/sdqa/internal/domain"
)

const tsvColumns = 5

func writeTSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'
	record := make([]string, tsvColumns)
	for _, row := range rows {
		record[0] = strconv.FormatInt(int64(row.MetricID), 10)
		record[1] = strconv.FormatInt(int64(row.ThresholdID), 10)
		record[2] = strconv.FormatInt(row.ParentID, 10)
		record[3] = strconv.FormatFloat(row.Value, 'g', -1, 64)
		record[4] = strconv.FormatFloat(row.Err, 'g', -1, 64)
		if err := cw.Write(record); err != nil {
			return errors.Wrap(err, "write tsv row")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flush tsv")
}

func readTSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.FieldsPerRecord = tsvColumns
	cr.ReuseRecord = true

	var rows []Row
	for line := 1; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, domain.Runtime("read tsv line %d: %v", line, err)
		}
		row, err := parseTSVRecord(record)
		if err != nil {
			return nil, domain.Runtime("parse tsv line %d: %v", line, err)
		}
		rows = append(rows, row)
	}
}

func parseTSVRecord(record []string) (Row, error) {
	metricID, err := strconv.ParseInt(record[0], 10, 32)
	if err != nil {
		return Row{}, err
	}
	thresholdID, err := strconv.ParseInt(record[1], 10, 32)
	if err != nil {
		return Row{}, err
	}
	parentID, err := strconv.ParseInt(record[2], 10, 64)
	if err != nil {
		return Row{}, err
	}
	value, err := strconv.ParseFloat(record[3], 64)
	if err != nil {
		return Row{}, err
	}
	metricErr, err := strconv.ParseFloat(record[4], 64)
	if err != nil {
		return Row{}, err
	}
	return Row{
		MetricID:    int32(metricID),
		ThresholdID: int32(thresholdID),
		ParentID:    parentID,
		Value:       value,
		Err:         metricErr,
	}, nil
}
