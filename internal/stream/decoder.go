// Package stream decodes newline-framed execution output into records.
package stream

import (
	"bytes"
	"context"
	"errors"
	"io"
)

const dataPrefix = "data:"

const readChunkSize = 4096

// Decoder reassembles records from arbitrarily split byte chunks.
// Splitting happens on raw bytes, so runes cut across chunks survive.
type Decoder struct {
	residual []byte
}

// Feed appends a chunk and returns every record completed by it.
func (d *Decoder) Feed(chunk []byte) []string {
	d.residual = append(d.residual, chunk...)
	var out []string
	start := 0
	for {
		idx := bytes.IndexByte(d.residual[start:], '\n')
		if idx < 0 {
			break
		}
		if record, ok := normalizeLine(d.residual[start : start+idx]); ok {
			out = append(out, record)
		}
		start += idx + 1
	}
	if start > 0 {
		rest := make([]byte, len(d.residual)-start)
		copy(rest, d.residual[start:])
		d.residual = rest
	}
	return out
}

// Flush returns the trailing partial record, if it is not blank.
func (d *Decoder) Flush() (string, bool) {
	residual := d.residual
	d.residual = nil
	return normalizeLine(residual)
}

// normalizeLine strips an optional data: marker and suppresses blank lines.
// Lines without the marker are kept verbatim apart from a trailing CR.
func normalizeLine(line []byte) (string, bool) {
	line = bytes.TrimSuffix(line, []byte{'\r'})
	if len(bytes.TrimSpace(line)) == 0 {
		return "", false
	}
	trimmed := bytes.TrimLeft(line, " \t")
	if bytes.HasPrefix(trimmed, []byte(dataPrefix)) {
		payload := bytes.TrimSpace(trimmed[len(dataPrefix):])
		if len(payload) == 0 {
			return "", false
		}
		return string(payload), true
	}
	return string(line), true
}

// Reader yields records from an io.Reader as soon as they are complete.
type Reader struct {
	src     io.Reader
	dec     Decoder
	buf     []byte
	pending []string
	err     error
}

// NewReader wraps r.
func NewReader(r io.Reader) *Reader {
	return &Reader{src: r, buf: make([]byte, readChunkSize)}
}

// Next returns the next record, io.EOF after the last one, or the read error.
func (r *Reader) Next(ctx context.Context) (string, error) {
	for {
		if len(r.pending) > 0 {
			record := r.pending[0]
			r.pending = r.pending[1:]
			return record, nil
		}
		if r.err != nil {
			return "", r.err
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
		n, err := r.src.Read(r.buf)
		if n > 0 {
			r.pending = append(r.pending, r.dec.Feed(r.buf[:n])...)
		}
		if err != nil {
			if record, ok := r.dec.Flush(); ok {
				r.pending = append(r.pending, record)
			}
			if errors.Is(err, io.EOF) {
				err = io.EOF
			}
			r.err = err
		}
	}
}
