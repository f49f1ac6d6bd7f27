package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/kbukum/etlkit/row"
)

// lineReader pulls one row per JSON object line. The schema is taken from
// the key order of the first object; later objects are mapped by key.
type lineReader struct {
	scanner *bufio.Scanner
	meta    *row.Meta
	pending row.Row
	line    int
}

func newLineReader(r io.Reader) *lineReader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return &lineReader{scanner: s}
}

// Schema reads the first record and returns the schema derived from it.
// An empty input has an empty schema.
func (lr *lineReader) Schema() (*row.Meta, error) {
	if lr.meta != nil {
		return lr.meta, nil
	}
	lr.meta = row.NewMeta()
	keys, values, ok, err := lr.nextObject()
	if err != nil || !ok {
		return lr.meta, err
	}
	for i, k := range keys {
		lr.meta.Add(row.NewValueMeta(k, typeOf(values[i])))
	}
	lr.pending = row.Row(values)
	return lr.meta, nil
}

// Next implements pipeline.Iterator.
func (lr *lineReader) Next(ctx context.Context) (row.Row, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if _, err := lr.Schema(); err != nil {
		return nil, false, err
	}
	if lr.pending != nil {
		r := lr.pending
		lr.pending = nil
		return r, true, nil
	}

	keys, values, ok, err := lr.nextObject()
	if err != nil || !ok {
		return nil, false, err
	}
	r := make(row.Row, lr.meta.Size())
	for i, k := range keys {
		idx := lr.meta.IndexOf(k)
		if idx < 0 {
			return nil, false, fmt.Errorf("line %d: field %q is not in the schema %s", lr.line, k, lr.meta)
		}
		r[idx] = conform(values[i], lr.meta.Value(idx).Type)
	}
	return r, true, nil
}

// Close implements pipeline.Iterator. The underlying reader is owned by the caller.
func (lr *lineReader) Close() error { return nil }

func (lr *lineReader) nextObject() ([]string, []any, bool, error) {
	for lr.scanner.Scan() {
		lr.line++
		line := bytes.TrimSpace(lr.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		keys, values, err := decodeObject(line)
		if err != nil {
			return nil, nil, false, fmt.Errorf("line %d: %w", lr.line, err)
		}
		return keys, values, true, nil
	}
	return nil, nil, false, lr.scanner.Err()
}

// decodeObject decodes a flat JSON object keeping its key order.
func decodeObject(data []byte) ([]string, []any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil, nil, fmt.Errorf("expected a JSON object")
	}
	var keys []string
	var values []any
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, _ := tok.(string)
		var raw any
		if err := dec.Decode(&raw); err != nil {
			return nil, nil, err
		}
		v, err := scalar(raw)
		if err != nil {
			return nil, nil, fmt.Errorf("field %q: %w", key, err)
		}
		keys = append(keys, key)
		values = append(values, v)
	}
	return keys, values, nil
}

func scalar(raw any) (any, error) {
	switch v := raw.(type) {
	case nil, string, bool:
		return v, nil
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i, nil
		}
		return v.Float64()
	default:
		return nil, fmt.Errorf("nested values are not supported")
	}
}

// conform maps a decoded number onto its column's numeric type when that
// loses nothing, so 2 and 2.0 in an integer column are the same key.
func conform(v any, t row.Type) any {
	switch x := v.(type) {
	case int64:
		if t == row.TypeNumber {
			return float64(x)
		}
	case float64:
		if t == row.TypeInteger && x == math.Trunc(x) && math.Abs(x) < math.MaxInt64 {
			return int64(x)
		}
	}
	return v
}

func typeOf(v any) row.Type {
	switch v.(type) {
	case int64:
		return row.TypeInteger
	case float64:
		return row.TypeNumber
	case bool:
		return row.TypeBoolean
	default:
		return row.TypeString
	}
}

// lineWriter emits every record as {"channel": ..., "record": {...}} on one line.
type lineWriter struct {
	mu       sync.Mutex
	w        io.Writer
	channels map[string]bool
}

// newLineWriter accepts only the listed channels; with none listed it accepts all.
func newLineWriter(w io.Writer, channels []string) *lineWriter {
	lw := &lineWriter{w: w}
	if len(channels) > 0 {
		lw.channels = make(map[string]bool, len(channels))
		for _, c := range channels {
			lw.channels[c] = true
		}
	}
	return lw
}

// HasChannel lets the executor reject bindings nobody consumes.
func (lw *lineWriter) HasChannel(name string) bool {
	return lw.channels == nil || lw.channels[name]
}

// Emit implements row.Emitter.
func (lw *lineWriter) Emit(_ context.Context, channel string, meta *row.Meta, r row.Row) error {
	var buf bytes.Buffer
	buf.WriteString(`{"channel":`)
	if err := writeJSON(&buf, channel); err != nil {
		return err
	}
	buf.WriteString(`,"record":{`)
	for i, vm := range meta.Values() {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeJSON(&buf, vm.Name); err != nil {
			return err
		}
		buf.WriteByte(':')
		v, _ := r.Get(i)
		if t, ok := v.(time.Time); ok {
			v = t.Format(time.RFC3339Nano)
		}
		if err := writeJSON(&buf, v); err != nil {
			return fmt.Errorf("channel %s field %s: %w", channel, vm.Name, err)
		}
	}
	buf.WriteString("}}\n")

	lw.mu.Lock()
	defer lw.mu.Unlock()
	_, err := lw.w.Write(buf.Bytes())
	return err
}

func writeJSON(buf *bytes.Buffer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	buf.Write(b)
	return nil
}
