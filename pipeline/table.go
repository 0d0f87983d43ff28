package pipeline

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Encoding names the character encoding of a table file.
type Encoding string

const (
	EncodingUTF8        Encoding = "utf-8"
	EncodingUTF8BOM     Encoding = "utf-8-bom"
	EncodingUTF16LE     Encoding = "utf-16le"
	EncodingUTF16BE     Encoding = "utf-16be"
	EncodingWindows1252 Encoding = "windows-1252"
)

// Table is a delimited file held in memory as text cells.
type Table struct {
	Header    []string
	Rows      [][]string
	Encoding  Encoding
	Delimiter rune
}

// ReadTable reads a header row and data rows, detecting encoding and delimiter.
func ReadTable(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read table: %w", err)
	}
	enc := DetectEncoding(data)
	text, err := decoderFor(enc).Bytes(data)
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrInvalidInput, enc, err)
	}

	delim := sniffDelimiter(text)
	reader := csv.NewReader(bytes.NewReader(text))
	reader.Comma = delim
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: table has no header row", ErrInvalidInput)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrInvalidInput, err)
	}

	table := &Table{Header: header, Encoding: enc, Delimiter: delim}
	for line := 1; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrInvalidInput, line, err)
		}
		if len(row) > len(header) {
			return nil, fmt.Errorf("%w: row %d has %d fields, header has %d", ErrInvalidInput, line, len(row), len(header))
		}
		for len(row) < len(header) {
			row = append(row, "")
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// DetectEncoding inspects a byte-order mark, then UTF-8 validity.
func DetectEncoding(data []byte) Encoding {
	switch {
	case bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}):
		return EncodingUTF8BOM
	case bytes.HasPrefix(data, []byte{0xFF, 0xFE}):
		return EncodingUTF16LE
	case bytes.HasPrefix(data, []byte{0xFE, 0xFF}):
		return EncodingUTF16BE
	case utf8.Valid(data):
		return EncodingUTF8
	default:
		return EncodingWindows1252
	}
}

func decoderFor(enc Encoding) *encoding.Decoder {
	switch enc {
	case EncodingUTF8BOM:
		return unicode.UTF8BOM.NewDecoder()
	case EncodingUTF16LE:
		return unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder()
	case EncodingUTF16BE:
		return unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder()
	case EncodingWindows1252:
		return charmap.Windows1252.NewDecoder()
	default:
		return encoding.Nop.NewDecoder()
	}
}

func encoderFor(enc Encoding) *encoding.Encoder {
	switch enc {
	case EncodingUTF8BOM:
		return unicode.UTF8BOM.NewEncoder()
	case EncodingUTF16LE:
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder()
	case EncodingUTF16BE:
		return unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewEncoder()
	case EncodingWindows1252:
		return encoding.ReplaceUnsupported(charmap.Windows1252.NewEncoder())
	default:
		return encoding.Nop.NewEncoder()
	}
}

// sniffDelimiter picks the most frequent of comma, semicolon and tab in the
// header line. Comma wins ties.
func sniffDelimiter(text []byte) rune {
	line, _, _ := bufio.NewReader(bytes.NewReader(text)).ReadLine()
	header := string(line)
	best, bestCount := ',', strings.Count(header, ",")
	for _, candidate := range []rune{';', '\t'} {
		if n := strings.Count(header, string(candidate)); n > bestCount {
			best, bestCount = candidate, n
		}
	}
	return best
}

// Column returns the index of a header column by exact name, or -1.
func (t *Table) Column(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// FindColumn returns the index of the header column matching name after
// normalization, or -1.
func (t *Table) FindColumn(name string) int {
	if i := t.Column(name); i >= 0 {
		return i
	}
	key := NormalizeName(name)
	for i, h := range t.Header {
		if NormalizeName(h) == key {
			return i
		}
	}
	return -1
}

// AppendColumn adds a column with one value per row.
func (t *Table) AppendColumn(name string, values []string) error {
	if len(values) != len(t.Rows) {
		return fmt.Errorf("column %q has %d values for %d rows", name, len(values), len(t.Rows))
	}
	t.Header = append(t.Header, name)
	for i := range t.Rows {
		t.Rows[i] = append(t.Rows[i], values[i])
	}
	return nil
}

// Write encodes the table with its original encoding and delimiter.
func (t *Table) Write(w io.Writer) error {
	tw := transform.NewWriter(w, encoderFor(t.Encoding))
	cw := csv.NewWriter(tw)
	if t.Delimiter != 0 {
		cw.Comma = t.Delimiter
	}
	if err := cw.Write(t.Header); err != nil {
		return err
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return err
	}
	return tw.Close()
}
