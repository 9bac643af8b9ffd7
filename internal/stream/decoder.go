package stream

import (
	"bytes"
	"io"
)

const readChunkSize = 4096

// LineDecoder turns an arbitrary byte stream into complete lines split on
// '\n', with a trailing '\r' stripped. A partial line at a chunk boundary is
// buffered until the newline arrives; whatever remains at stream end is
// flushed as one final line. Bytes are only converted to text at line
// granularity, so a multi-byte character split across chunks stays intact.
type LineDecoder struct {
	r       io.Reader
	chunk   []byte
	partial []byte
	lines   []string
	eof     bool
	flushed bool
}

func NewLineDecoder(r io.Reader) *LineDecoder {
	return &LineDecoder{
		r:     r,
		chunk: make([]byte, readChunkSize),
	}
}

// Next returns the next complete line, or io.EOF when the stream is
// exhausted. Any other error comes from the underlying reader.
func (d *LineDecoder) Next() (string, error) {
	for {
		if len(d.lines) > 0 {
			line := d.lines[0]
			d.lines = d.lines[1:]
			return line, nil
		}

		if d.eof {
			if len(d.partial) > 0 && !d.flushed {
				d.flushed = true
				line := trimCR(d.partial)
				d.partial = nil
				return line, nil
			}
			return "", io.EOF
		}

		n, err := d.r.Read(d.chunk)
		if n > 0 {
			d.split(d.chunk[:n])
		}
		if err == io.EOF {
			d.eof = true
			continue
		}
		if err != nil {
			return "", err
		}
	}
}

// split appends the chunk to any buffered partial line and queues every
// complete line found.
func (d *LineDecoder) split(chunk []byte) {
	d.partial = append(d.partial, chunk...)
	for {
		idx := bytes.IndexByte(d.partial, '\n')
		if idx < 0 {
			return
		}
		d.lines = append(d.lines, trimCR(d.partial[:idx]))
		d.partial = d.partial[idx+1:]
	}
}

func trimCR(line []byte) string {
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	return string(line)
}
