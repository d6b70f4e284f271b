// Package paymentfile parses bank and lockbox payment files (CSV) into
// validated payment rows ready for ingestion into the ledger.
package paymentfile

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// Parser reads a headered CSV payment file row by row. The file must be
// UTF-8; a leading BOM is stripped.
type Parser struct {
	reader    *csv.Reader
	headers   []string
	headerIdx map[string]int
	line      int
}

// NewParser wraps a reader and validates the file encoding. The header row
// is not consumed until ParseHeader is called.
func NewParser(r io.Reader, delimiter rune) (*Parser, error) {
	buf := bufio.NewReader(r)

	// Strip UTF-8 BOM (0xEF 0xBB 0xBF) if present
	if lead, err := buf.Peek(3); err == nil && len(lead) == 3 &&
		lead[0] == 0xEF && lead[1] == 0xBB && lead[2] == 0xBF {
		_, _ = buf.Discard(3)
	}

	head, err := buf.Peek(4096)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read payment file: %w", err)
	}
	if len(head) == 0 {
		return nil, ErrEmptyFile
	}
	if !utf8.Valid(trimPartialRune(head)) {
		return nil, ErrInvalidEncoding
	}

	cr := csv.NewReader(buf)
	cr.Comma = delimiter
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	return &Parser{reader: cr, headerIdx: make(map[string]int)}, nil
}

// trimPartialRune drops a trailing incomplete UTF-8 sequence cut off by the
// peek window so it is not flagged as invalid.
func trimPartialRune(b []byte) []byte {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if utf8.RuneStart(b[i]) {
			if r, _ := utf8.DecodeRune(b[i:]); r == utf8.RuneError {
				return b[:i]
			}
			break
		}
	}
	return b
}

// ParseHeader consumes the header row. Header names are lowercased and
// trimmed so files from different banks agree on column naming.
func (p *Parser) ParseHeader() error {
	record, err := p.reader.Read()
	if err == io.EOF {
		return ErrMissingHeader
	}
	if err != nil {
		return fmt.Errorf("failed to read header row: %w", err)
	}

	p.headers = make([]string, len(record))
	for i, h := range record {
		name := strings.ToLower(strings.TrimSpace(h))
		p.headers[i] = name
		p.headerIdx[name] = i
	}
	p.line = 1
	return nil
}

// Headers returns the normalized header names.
func (p *Parser) Headers() []string {
	return p.headers
}

// MissingHeaders returns the required header names absent from the file.
func (p *Parser) MissingHeaders(required []string) []string {
	var missing []string
	for _, h := range required {
		if _, ok := p.headerIdx[h]; !ok {
			missing = append(missing, h)
		}
	}
	return missing
}

// Row is one data row keyed by normalized header name. Line is the
// 1-indexed physical line number, counting the header as line 1.
type Row struct {
	Line   int
	Fields map[string]string
}

// Get returns the trimmed value of a column, or "" when absent.
func (r *Row) Get(header string) string {
	return r.Fields[header]
}

// IsEmpty reports whether every field of the row is blank.
func (r *Row) IsEmpty() bool {
	for _, v := range r.Fields {
		if v != "" {
			return false
		}
	}
	return true
}

// ReadRow returns the next data row, io.EOF at end of file. Short records
// are padded with empty values; extra unheadered fields are dropped.
func (p *Parser) ReadRow() (*Row, error) {
	record, err := p.reader.Read()
	if err == io.EOF {
		return nil, io.EOF
	}
	p.line++
	if err != nil {
		return nil, fmt.Errorf("malformed row at line %d: %w", p.line, err)
	}

	row := &Row{Line: p.line, Fields: make(map[string]string, len(p.headers))}
	for i, h := range p.headers {
		if i < len(record) {
			row.Fields[h] = strings.TrimSpace(record[i])
		} else {
			row.Fields[h] = ""
		}
	}
	return row, nil
}
