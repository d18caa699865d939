package record

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
)

var bom = []byte{0xEF, 0xBB, 0xBF}

const bomString = "\xEF\xBB\xBF"

// FileHeaderPrefix is the UTF-8 byte-order-mark that starts every freshly
// written file so spreadsheet applications detect the encoding. Readers
// accept files with or without it.
func FileHeaderPrefix() []byte {
	return append([]byte(nil), bom...)
}

// ReadAll decodes every usable row of r. Malformed lines and short rows are
// skipped; only a failure of the underlying reader is returned. An empty
// input yields no rows.
func ReadAll[T any](r io.Reader, c Codec[T]) ([]T, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	raw, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			return nil, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	header := c.Schema.DecodeHeader(raw)

	var out []T
	for {
		cells, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				continue
			}
			return out, fmt.Errorf("read row: %w", err)
		}
		if v, ok := c.DecodeRow(header, cells); ok {
			out = append(out, v)
		}
	}
	return out, nil
}

// Decode is ReadAll over a byte slice.
func Decode[T any](data []byte, c Codec[T]) ([]T, error) {
	return ReadAll(bytes.NewReader(data), c)
}

// WriteAll writes BOM, header and every row: a complete file.
func WriteAll[T any](w io.Writer, c Codec[T], items []T) error {
	if _, err := w.Write(bom); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(c.Schema.HeaderRow()); err != nil {
		return err
	}
	for _, it := range items {
		if err := cw.Write(c.EncodeRow(it)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Encode is WriteAll into a new byte slice.
func Encode[T any](c Codec[T], items []T) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteAll(&buf, c, items); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EmptyFile is a header-only file.
func EmptyFile[T any](c Codec[T]) []byte {
	data, _ := Encode(c, nil)
	return data
}

// AppendRow encodes one row with no BOM and no header, for appending to a
// live file.
func AppendRow[T any](c Codec[T], v T) ([]byte, error) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.Write(c.EncodeRow(v)); err != nil {
		return nil, err
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
