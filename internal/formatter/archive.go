package formatter

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"github.com/pkg/errors"

	"github.com/Clark-Hu/sdqa/internal/domain"
)

// Archive layout, little endian:
//
//	magic   [4]byte "SDQR"
//	version uint16
//	count   uint32
//	count x { parentDbId int64, metricValue float64, metricErr float64 }
//
// Names, scope and catalog ids are not stored.
const (
	archiveVersion    uint16 = 1
	archiveHeaderSize        = 4 + 2 + 4
	archiveRecordSize        = 8 + 8 + 8
)

var archiveMagic = [4]byte{'S', 'D', 'Q', 'R'}

type archiveRecord struct {
	ParentID int64
	Value    float64
	Err      float64
}

func encodeArchive(ratings domain.RatingSet) []byte {
	buf := make([]byte, 0, archiveHeaderSize+len(ratings)*archiveRecordSize)
	buf = append(buf, archiveMagic[:]...)
	buf = binary.LittleEndian.AppendUint16(buf, archiveVersion)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(ratings)))
	for _, r := range ratings {
		buf = binary.LittleEndian.AppendUint64(buf, uint64(r.ParentID()))
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(r.Value()))
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(r.Err()))
	}
	return buf
}

func writeArchive(w io.Writer, ratings domain.RatingSet) error {
	if _, err := io.Copy(w, bytes.NewReader(encodeArchive(ratings))); err != nil {
		return errors.Wrap(err, "write archive")
	}
	return nil
}

func readArchive(r io.Reader) ([]archiveRecord, error) {
	var header [archiveHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, domain.Runtime("read archive header: %v", err)
	}
	if !bytes.Equal(header[:4], archiveMagic[:]) {
		return nil, domain.Runtime("not a rating archive")
	}
	if v := binary.LittleEndian.Uint16(header[4:6]); v != archiveVersion {
		return nil, domain.Runtime("unsupported archive version %d", v)
	}
	count := binary.LittleEndian.Uint32(header[6:10])
	if count > MaxBatchSize {
		return nil, domain.Runtime("archive holds %d ratings, more than %d", count, MaxBatchSize)
	}

	out := make([]archiveRecord, 0, count)
	var rec [archiveRecordSize]byte
	for i := uint32(0); i < count; i++ {
		if _, err := io.ReadFull(r, rec[:]); err != nil {
			return nil, domain.Runtime("read archive record %d of %d: %v", i+1, count, err)
		}
		out = append(out, archiveRecord{
			ParentID: int64(binary.LittleEndian.Uint64(rec[0:8])),
			Value:    math.Float64frombits(binary.LittleEndian.Uint64(rec[8:16])),
			Err:      math.Float64frombits(binary.LittleEndian.Uint64(rec[16:24])),
		})
	}
	return out, nil
}
