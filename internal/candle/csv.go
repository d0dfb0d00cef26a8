// Package candle
package candle

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// csvDateLayouts are tried in order when parsing the date column. Broker
// exports vary between full datetimes and bare dates.
var csvDateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// LoadCSV reads 1m candles from a broker CSV export. Required columns:
// date, open, high, low, close. A volume column is optional and defaults
// to 0. Dates without a zone are interpreted in loc. UTF-16 exports (common
// from Windows terminal software) and UTF-8 BOMs are decoded transparently.
func LoadCSV(path, symbol string, loc *time.Location) ([]Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open csv: %w", err)
	}
	defer f.Close()

	reader, err := decodeBOM(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read csv %s: %w", path, err)
	}

	r := csv.NewReader(reader)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"date", "open", "high", "low", "close"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("required column %q not found in csv file", required)
		}
	}
	volumeIdx, hasVolume := cols["volume"]

	if loc == nil {
		loc = time.UTC
	}

	var candles []Candle
	line := 1
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv line %d: %w", line+1, err)
		}
		line++

		ts, err := parseCSVDate(record[cols["date"]], loc)
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}

		c := Candle{
			Timestamp: ts,
			Symbol:    symbol,
			Timeframe: "1m",
			Source:    "csv",
		}
		if c.Open, err = parseCSVFloat(record[cols["open"]]); err != nil {
			return nil, fmt.Errorf("csv line %d open: %w", line, err)
		}
		if c.High, err = parseCSVFloat(record[cols["high"]]); err != nil {
			return nil, fmt.Errorf("csv line %d high: %w", line, err)
		}
		if c.Low, err = parseCSVFloat(record[cols["low"]]); err != nil {
			return nil, fmt.Errorf("csv line %d low: %w", line, err)
		}
		if c.Close, err = parseCSVFloat(record[cols["close"]]); err != nil {
			return nil, fmt.Errorf("csv line %d close: %w", line, err)
		}
		if hasVolume && volumeIdx < len(record) && strings.TrimSpace(record[volumeIdx]) != "" {
			if c.Volume, err = parseCSVFloat(record[volumeIdx]); err != nil {
				return nil, fmt.Errorf("csv line %d volume: %w", line, err)
			}
		}
		candles = append(candles, c)
	}

	return candles, nil
}

// decodeBOM wraps the reader with a UTF-16 decoder when a UTF-16 BOM is
// present and strips a UTF-8 BOM.
func decodeBOM(f io.Reader) (io.Reader, error) {
	br := bufio.NewReader(f)
	head, err := br.Peek(3)
	if err != nil && err != io.EOF {
		return nil, err
	}

	if len(head) >= 2 && ((head[0] == 0xFF && head[1] == 0xFE) || (head[0] == 0xFE && head[1] == 0xFF)) {
		endianness := unicode.LittleEndian
		if head[0] == 0xFE {
			endianness = unicode.BigEndian
		}
		return transform.NewReader(br, unicode.UTF16(endianness, unicode.ExpectBOM).NewDecoder()), nil
	}
	if bytes.Equal(head, []byte{0xEF, 0xBB, 0xBF}) {
		if _, err := br.Discard(3); err != nil {
			return nil, err
		}
	}
	return br, nil
}

func parseCSVDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range csvDateLayouts {
		if ts, err := time.ParseInLocation(layout, s, loc); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}

func parseCSVFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}
