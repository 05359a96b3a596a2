package csvita

import (
	"bufio"
	"errors"
	"io"
)

var (
	// ErrWriterClosed is returned by writes issued after Close.
	ErrWriterClosed = errors.New("csvita: writer is closed")

	errNilWriter      = errors.New("csvita: writer is nil")
	errWriterNoTarget = errors.New("csvita: writer destination cannot be nil")
)

// Writer emits records through a field Policy with a configurable delimiter.
//
// A Writer starts open. Close flushes it and closes it for good; the first
// I/O error is sticky and returned by every later call.
type Writer struct {
	dst *bufio.Writer

	// Comma is the field delimiter. Default is ','.
	Comma byte
	// UseCRLF writes records terminated with \r\n when set.
	UseCRLF bool
	// Policy renders each field.
	Policy Policy

	err    error
	closed bool
}

// NewWriter creates a new Writer with internal buffering tuned for bulk writes.
func NewWriter(w io.Writer) *Writer {
	if w == nil {
		panic(errWriterNoTarget.Error())
	}
	return &Writer{
		dst:   bufio.NewWriterSize(w, defaultBufferSize),
		Comma: ',',
	}
}

// Reset updates the underlying writer while preserving the configuration flags.
// It reopens a closed Writer.
func (w *Writer) Reset(dst io.Writer) {
	if w == nil {
		panic(errNilWriter.Error())
	}
	if dst == nil {
		panic(errWriterNoTarget.Error())
	}
	if w.dst == nil {
		w.dst = bufio.NewWriterSize(dst, defaultBufferSize)
	} else {
		w.dst.Reset(dst)
	}
	w.err = nil
	w.closed = false
}

// Write emits a single record, joining the rendered fields with Comma and
// terminating it with the configured newline sequence.
func (w *Writer) Write(record []string) error {
	if err := w.check(); err != nil {
		return err
	}

	comma := w.Comma
	if comma == 0 {
		comma = ','
	}

	for i := range record {
		if i > 0 {
			if err := w.dst.WriteByte(comma); err != nil {
				w.err = err
				return err
			}
		}
		if err := w.writeField(record[i]); err != nil {
			w.err = err
			return err
		}
	}

	if w.UseCRLF {
		if _, err := w.dst.Write([]byte{'\r', '\n'}); err != nil {
			w.err = err
			return err
		}
	} else {
		if err := w.dst.WriteByte('\n'); err != nil {
			w.err = err
			return err
		}
	}
	return nil
}

// WriteAll writes multiple records, stopping at the first error.
func (w *Writer) WriteAll(records [][]string) error {
	if w == nil {
		return errNilWriter
	}
	for _, record := range records {
		if err := w.Write(record); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes pending buffered data to the underlying writer.
func (w *Writer) Flush() error {
	if err := w.check(); err != nil {
		return err
	}
	if err := w.dst.Flush(); err != nil {
		w.err = err
		return err
	}
	return nil
}

// Close flushes pending data and closes the Writer. Calling Close again is a
// no-op that returns the sticky error, if any. Close does not close the
// underlying io.Writer.
func (w *Writer) Close() error {
	if w == nil {
		return errNilWriter
	}
	if w.closed {
		return w.err
	}
	w.closed = true
	if w.dst == nil {
		return errWriterNoTarget
	}
	if w.err != nil {
		return w.err
	}
	if err := w.dst.Flush(); err != nil {
		w.err = err
		return err
	}
	return nil
}

// Error reports the first error encountered by the writer.
func (w *Writer) Error() error {
	if w == nil {
		return errNilWriter
	}
	return w.err
}

// Closed reports whether Close has been called.
func (w *Writer) Closed() bool {
	return w != nil && w.closed
}

func (w *Writer) check() error {
	if w == nil {
		return errNilWriter
	}
	if w.dst == nil {
		return errWriterNoTarget
	}
	if w.err != nil {
		return w.err
	}
	if w.closed {
		return ErrWriterClosed
	}
	return nil
}

func (w *Writer) writeField(field string) error {
	if !w.Policy.quotes(field) {
		_, err := w.dst.WriteString(field)
		return err
	}
	if err := w.dst.WriteByte('"'); err != nil {
		return err
	}

	escaped := w.Policy.escapedQuote()
	start := 0
	for i := 0; i < len(field); i++ {
		if field[i] == '"' {
			if start < i {
				if _, err := w.dst.WriteString(field[start:i]); err != nil {
					return err
				}
			}
			if _, err := w.dst.WriteString(escaped); err != nil {
				return err
			}
			start = i + 1
		}
	}
	if start < len(field) {
		if _, err := w.dst.WriteString(field[start:]); err != nil {
			return err
		}
	}
	return w.dst.WriteByte('"')
}
