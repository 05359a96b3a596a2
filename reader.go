package csvita

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"unsafe"
)

const defaultBufferSize = 1 << 10 // 1024 bytes

var (
	// ErrBareQuote is returned when an unexpected quote is found in an unquoted field.
	ErrBareQuote = errors.New("csvita: bare quote in non-quoted field")
	// ErrUnterminatedQuote is returned when a quoted field is not closed before EOF.
	ErrUnterminatedQuote = errors.New("csvita: unterminated quoted field")
	// ErrFieldCount is returned when a record contains an unexpected number of fields.
	ErrFieldCount = errors.New("csvita: wrong number of fields")
)

// ParseError contains location information for CSV parsing errors.
type ParseError struct {
	Line   int
	Column int
	Err    error
}

// Error formats the parse error message with the stored line, column, and Err values.
func (e *ParseError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("csvita: parse error on line %d, column %d: %v", e.Line, e.Column, e.Err)
}

// Unwrap returns the underlying Err so ParseError participates in errors.Unwrap.
func (e *ParseError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// FieldCountError reports a record whose width differs from the expected one.
// Line is the line on which the offending record starts.
type FieldCountError struct {
	Line int
	Want int
	Got  int
}

// Error formats the starting line of the record with its actual and expected widths.
func (e *FieldCountError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("csvita: record on line %d has %d fields, want %d", e.Line, e.Got, e.Want)
}

// Unwrap returns ErrFieldCount.
func (e *FieldCountError) Unwrap() error {
	if e == nil {
		return nil
	}
	return ErrFieldCount
}

// Reader provides streaming CSV parsing with support for customizable delimiters.
//
// Blank lines are skipped. The first line is returned as data like any other.
type Reader struct {
	src io.Reader

	// Comma is the field delimiter. Default is ','.
	Comma byte
	// Quote is the quote character. Default is '"'.
	Quote byte
	// ReuseRecord indicates whether Read should reuse the backing array of the returned slice.
	ReuseRecord bool
	// FieldsPerRecord controls width checking. Zero requires every record to match
	// the width of the record before it, a positive value fixes the width, and a
	// negative value accepts records of any width.
	FieldsPerRecord int
	// LazyQuotes treats a quote that does not open a field as a literal byte
	// instead of failing with ErrBareQuote.
	LazyQuotes bool

	buf    []byte
	bufPos int
	bufLen int
	bufErr error

	record      []string
	dataBuf     []byte
	fieldBounds []int
	finished    bool
	line        int
	recordLine  int
	width       int
}

// NewReader creates a Reader that consumes CSV data from r, panicking if r is nil,
// and initialises internal buffers sized for high-throughput parsing.
func NewReader(r io.Reader) *Reader {
	if r == nil {
		panic("csvita: reader source cannot be nil")
	}

	return &Reader{
		src:         r,
		Comma:       ',',
		Quote:       '"',
		buf:         make([]byte, defaultBufferSize),
		record:      make([]string, 0, 16),
		dataBuf:     make([]byte, 0, 512),
		fieldBounds: make([]int, 0, 32),
		line:        1,
	}
}

// Line returns the line the reader will resume parsing from.
func (r *Reader) Line() int {
	return r.line
}

// Read parses the next CSV record from the underlying stream. It returns dst containing
// the field values (which may reuse internal storage when ReuseRecord is true) and an err
// indicating success or failure; io.EOF signals that no more records remain.
//
// On a width mismatch the offending record is returned together with a *FieldCountError.
func (r *Reader) Read() (dst []string, err error) {
	if r == nil || r.src == nil {
		return nil, io.EOF
	}
	if r.finished {
		return nil, io.EOF
	}

	comma := r.comma()
	quote := r.Quote
	if quote == 0 {
		quote = '"'
	}

	// Reset state for assembling the next record, reusing slices when allowed.
	if r.ReuseRecord {
		r.record = r.record[:0]
	} else {
		r.record = nil
	}
	r.dataBuf = r.dataBuf[:0]
	r.fieldBounds = r.fieldBounds[:0]
	r.recordLine = r.line

	inQuotes := false
	sawQuotedField := false
	column := 1
	fieldStart := 0

	for {
		// Ensure the working buffer has data before parsing the next byte.
		if r.bufPos >= r.bufLen {
			if r.bufErr != nil {
				curColumn := column
				err := r.bufErr
				r.bufErr = nil
				if err == io.EOF {
					// Unterminated quotes at EOF are invalid.
					if inQuotes {
						r.finished = true
						return nil, r.wrapError(curColumn, ErrUnterminatedQuote)
					}
					// Flush a trailing field if data ended without a newline.
					if !r.blank(sawQuotedField) {
						r.fieldBounds = append(r.fieldBounds, fieldStart, len(r.dataBuf))
						r.finished = true
						return r.buildRecord()
					}
					r.finished = true
					return nil, io.EOF
				}
				return nil, err
			}

			// Pull the next chunk from the source.
			n, err := r.src.Read(r.buf)
			if n == 0 {
				if err != nil {
					r.bufErr = err
				}
				continue
			}
			r.bufPos = 0
			r.bufLen = n
			r.bufErr = err
		}

		if !inQuotes {
			// Fast-path plain bytes until a quote or delimiter is encountered.
			data := r.buf[r.bufPos:r.bufLen]
			if len(data) == 0 {
				continue
			}

			limit := r.bufLen
			if quoteIdx := bytes.IndexByte(data, quote); quoteIdx >= 0 {
				limit = r.bufPos + quoteIdx
			}
			if limit > r.bufPos {
				recordDone, err := r.consumePlain(limit, &column, &fieldStart, &sawQuotedField)
				if err != nil {
					return nil, err
				}
				if recordDone {
					return r.buildRecord()
				}
				if r.bufPos >= r.bufLen {
					continue
				}
			}
		}

		curColumn := column
		b := r.buf[r.bufPos]
		r.bufPos++

		if inQuotes {
			if b == quote {
				// Double quote inside quotes represents an escaped quote.
				next, err := r.peekByte()
				if err == nil && next == quote {
					r.bufPos++
					r.dataBuf = append(r.dataBuf, quote)
					column = curColumn + 2
					continue
				}
				if err != nil && err != io.EOF {
					return nil, err
				}
				inQuotes = false
				column = curColumn + 1
				continue
			}
			if b == '\n' {
				// Track logical line numbers for embedded newlines.
				r.dataBuf = append(r.dataBuf, b)
				r.line++
				column = 1
				continue
			}

			start := r.bufPos - 1
			run := 1
			if r.bufPos < r.bufLen {
				data := r.buf[r.bufPos:r.bufLen]
				for i := 0; i < len(data); i++ {
					c := data[i]
					if c == quote || c == '\n' {
						break
					}
					run++
				}
				r.bufPos += run - 1
			}
			column = curColumn + run
			// Append contiguous plain bytes within the quoted field.
			r.dataBuf = append(r.dataBuf, r.buf[start:start+run]...)
			continue
		}

		switch b {
		case comma:
			r.fieldBounds = append(r.fieldBounds, fieldStart, len(r.dataBuf))
			fieldStart = len(r.dataBuf)
			sawQuotedField = false
			column = curColumn + 1
		case '\n', '\r':
			if b == '\r' {
				next, err := r.peekByte()
				if err == nil && next == '\n' {
					r.bufPos++
				}
				if err != nil && err != io.EOF {
					return nil, err
				}
			}
			r.line++
			column = 1
			if r.blank(sawQuotedField) {
				r.recordLine = r.line
				continue
			}
			r.fieldBounds = append(r.fieldBounds, fieldStart, len(r.dataBuf))
			return r.buildRecord()
		case quote:
			// A quote starts a quoted field only if we have not buffered any characters yet.
			if len(r.dataBuf) == fieldStart && !sawQuotedField {
				inQuotes = true
				sawQuotedField = true
				column = curColumn + 1
				continue
			}
			if !r.LazyQuotes {
				return nil, r.wrapError(curColumn, ErrBareQuote)
			}
			r.dataBuf = append(r.dataBuf, quote)
			column = curColumn + 1
		default:
			start := r.bufPos - 1
			run := 1
			if r.bufPos < r.bufLen {
				data := r.buf[r.bufPos:r.bufLen]
				for i := 0; i < len(data); i++ {
					c := data[i]
					if c == comma || c == '\n' || c == '\r' || c == quote {
						break
					}
					run++
				}
				r.bufPos += run - 1
			}
			column = curColumn + run
			// Copy consecutive plain bytes before the next delimiter.
			r.dataBuf = append(r.dataBuf, r.buf[start:start+run]...)
		}
	}
}

// ReadAll exhausts the reader, repeatedly calling Read to collect records until io.EOF
// and returning the accumulated records slice plus the first non-EOF error encountered.
func (r *Reader) ReadAll() (records [][]string, err error) {
	for {
		record, err := r.Read()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
}

func (r *Reader) comma() byte {
	if r.Comma == 0 {
		return ','
	}
	return r.Comma
}

// blank reports whether nothing has been assembled for the current record.
func (r *Reader) blank(sawQuotedField bool) bool {
	return len(r.fieldBounds) == 0 && len(r.dataBuf) == 0 && !sawQuotedField
}

// buildRecord maps the accumulated fieldBounds onto the data buffer, respecting ReuseRecord,
// checks the record width, and returns the materialised []string for the current record.
func (r *Reader) buildRecord() ([]string, error) {
	fieldCount := len(r.fieldBounds) / 2

	var recordStr string
	if r.ReuseRecord {
		if len(r.dataBuf) == 0 {
			recordStr = ""
		} else {
			// Zero-copy string construction so fields can share a single backing buffer.
			recordStr = unsafe.String(unsafe.SliceData(r.dataBuf), len(r.dataBuf))
		}
		if cap(r.record) < fieldCount {
			r.record = make([]string, fieldCount)
		}
		r.record = r.record[:fieldCount]
	} else {
		recordStr = string(r.dataBuf)
		r.record = make([]string, fieldCount)
	}

	for i := 0; i < fieldCount; i++ {
		start := r.fieldBounds[2*i]
		end := r.fieldBounds[2*i+1]
		r.record[i] = recordStr[start:end]
	}

	switch {
	case r.FieldsPerRecord < 0:
		return r.record, nil
	case r.FieldsPerRecord > 0:
		if fieldCount != r.FieldsPerRecord {
			return r.record, &FieldCountError{Line: r.recordLine, Want: r.FieldsPerRecord, Got: fieldCount}
		}
		return r.record, nil
	}

	prev := r.width
	r.width = fieldCount
	if prev > 0 && fieldCount != prev {
		return r.record, &FieldCountError{Line: r.recordLine, Want: prev, Got: fieldCount}
	}
	return r.record, nil
}

// wrapError attaches the current line and supplied column to err, producing a *ParseError.
func (r *Reader) wrapError(column int, err error) error {
	return &ParseError{Line: r.line, Column: column, Err: err}
}

// consumePlain consumes unquoted field data in buf[bufPos:limit], updating *column,
// *fieldStart, and *sawQuotedField. It reports whether a record terminator closed a
// non-blank record and returns any read error encountered.
func (r *Reader) consumePlain(limit int, column *int, fieldStart *int, sawQuotedField *bool) (bool, error) {
	comma := r.comma()

	for {
		if r.bufPos >= limit {
			return false, nil
		}

		// Locate the closest delimiter or record terminator within the buffered bytes.
		data := r.buf[r.bufPos:limit]
		idxComma := bytes.IndexByte(data, comma)
		idxNewline := bytes.IndexByte(data, '\n')
		idxCR := bytes.IndexByte(data, '\r')

		next := len(data)
		delim := byte(0)

		if idxComma >= 0 && idxComma < next {
			next = idxComma
			delim = comma
		}
		if idxNewline >= 0 && idxNewline < next {
			next = idxNewline
			delim = '\n'
		}
		if idxCR >= 0 && idxCR < next {
			next = idxCR
			delim = '\r'
		}

		// Append the plain run preceding the delimiter and advance position counters.
		if next > 0 {
			r.dataBuf = append(r.dataBuf, data[:next]...)
			r.bufPos += next
			*column += next
		}

		if delim == 0 {
			return false, nil
		}

		r.bufPos++
		if delim == comma {
			r.fieldBounds = append(r.fieldBounds, *fieldStart, len(r.dataBuf))
			*fieldStart = len(r.dataBuf)
			*sawQuotedField = false
			*column = *column + 1
			continue
		}

		refilled := false
		if delim == '\r' {
			// Support CRLF by consuming a directly following '\n'. A byte at limit is
			// the quote that bounded this run, so only peek past the buffer end.
			switch {
			case r.bufPos < limit:
				if r.buf[r.bufPos] == '\n' {
					r.bufPos++
				}
			case limit == r.bufLen:
				refilled = r.bufPos >= r.bufLen
				nextByte, err := r.peekByte()
				if err == nil && nextByte == '\n' {
					r.bufPos++
				} else if err != nil && err != io.EOF {
					return false, err
				}
			}
		}
		r.line++
		*column = 1
		if r.blank(*sawQuotedField) {
			r.recordLine = r.line
			if refilled {
				// limit belongs to the previous chunk; let Read rescan for quotes.
				return false, nil
			}
			continue
		}
		r.fieldBounds = append(r.fieldBounds, *fieldStart, len(r.dataBuf))
		*sawQuotedField = false
		return true, nil
	}
}

// peekByte returns the next buffered byte (refilling from src as needed) and propagates any read error.
func (r *Reader) peekByte() (byte, error) {
	for {
		if r.bufPos < r.bufLen {
			return r.buf[r.bufPos], nil
		}
		if r.bufErr != nil {
			return 0, r.bufErr
		}

		n, err := r.src.Read(r.buf)
		if n == 0 && err != nil {
			return 0, err
		}
		if n == 0 {
			continue
		}
		r.bufPos = 0
		r.bufLen = n
		r.bufErr = err
	}
}
