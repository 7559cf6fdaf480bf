package transcript

import (
	"bytes"
	"errors"
	"fmt"
	"os"
)

type DecodeStats struct {
	Lines   int
	Records int
	Blank   int
	Dropped int
}

// Decode splits data into lines and decodes each one. Blank lines are
// skipped and lines that are not valid JSON are dropped; neither stops the
// rest of the file from loading.
func Decode(data []byte) ([]*Record, DecodeStats) {
	var stats DecodeStats
	records := make([]*Record, 0, bytes.Count(data, []byte{'\n'})+1)
	lineNo := 0
	for len(data) > 0 {
		var line []byte
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			line, data = data[:i], data[i+1:]
		} else {
			line, data = data, nil
		}
		lineNo++
		stats.Lines++
		if len(bytes.TrimSpace(line)) == 0 {
			stats.Blank++
			continue
		}
		rec, err := ParseRecord(line)
		if err != nil {
			stats.Dropped++
			continue
		}
		rec.Line = lineNo
		records = append(records, rec)
	}
	stats.Records = len(records)
	return records, stats
}

// Encode writes one record per line, each newline-terminated, in order.
func Encode(records []*Record) []byte {
	var buf bytes.Buffer
	for _, rec := range records {
		if rec == nil {
			continue
		}
		buf.Write(rec.Bytes())
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// ReadFile decodes a transcript file. A missing file is an empty transcript.
func ReadFile(path string) ([]*Record, DecodeStats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, DecodeStats{}, nil
		}
		return nil, DecodeStats{}, fmt.Errorf("read transcript %s: %w", path, err)
	}
	records, stats := Decode(data)
	return records, stats, nil
}
