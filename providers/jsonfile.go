// Copyright (c) 2025 Neomantra Corp

package providers

import (
	"bufio"
	"fmt"
	"io"

	"github.com/valyala/fastjson"
)

// JsonFileReader scans newline-delimited JSON tick records from a reader,
// reusing a single fastjson.Parser across records the way json_scanner.go's
// JsonScanner does (fastjson.Parser is explicitly documented as unsafe to
// reuse concurrently but cheap to reuse sequentially — avoids an allocation
// per line).
type JsonFileReader struct {
	scanner *bufio.Scanner
	parser  fastjson.Parser
}

// NewJsonFileReader builds a JsonFileReader over r. Use (*JsonFileReader).Next
// as the `next` callback to providers.NewAdapter.
func NewJsonFileReader(r io.Reader) *JsonFileReader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return &JsonFileReader{scanner: s}
}

// Next parses the next line as a RawRecord. Returns io.EOF when the
// underlying stream is exhausted.
func (j *JsonFileReader) Next() (RawRecord, error) {
	if !j.scanner.Scan() {
		if err := j.scanner.Err(); err != nil {
			return RawRecord{}, fmt.Errorf("providers: scan ndjson: %w", err)
		}
		return RawRecord{}, io.EOF
	}
	line := j.scanner.Bytes()
	if len(line) == 0 {
		return j.Next()
	}
	val, err := j.parser.ParseBytes(line)
	if err != nil {
		return RawRecord{}, fmt.Errorf("providers: parse ndjson line: %w", err)
	}
	return RawRecord{
		AggTradeID:   val.GetInt64("a"),
		Price:        string(val.GetStringBytes("p")),
		Volume:       string(val.GetStringBytes("q")),
		FirstTradeID: val.GetInt64("f"),
		LastTradeID:  val.GetInt64("l"),
		Timestamp:    val.GetInt64("T"),
		IsBuyerMaker: val.GetBool("m"),
		Bid:          string(val.GetStringBytes("bid")),
		Ask:          string(val.GetStringBytes("ask")),
	}, nil
}
