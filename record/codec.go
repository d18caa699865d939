/*
Package record maps domain records to spreadsheet-compatible CSV rows.

PURPOSE:
  One canonical field set per collection, an explicit alias table per
  collection, and tolerant decoding. Files written by hand in a spreadsheet
  application, by older versions, or cut short by a crash must still load.

HEADER VOCABULARIES:
  Each canonical field has a localized label (written to new files) and a
  plain ASCII alias. Both resolve to the same Field:

    ID / id            -> id
    日付 / date         -> date
    企業名 / name        -> name
    ...

  Code never branches on raw header strings; it asks the Schema.

TOLERANCE RULES:
  - A leading byte-order-mark on the first header cell is stripped.
  - Every header cell is trimmed.
  - A row with fewer cells than the header is dropped, not fatal.
  - Encoding always emits every column; a missing value is "".

SEE ALSO:
  - csv.go: reading and writing whole files
  - reservation.go, blocked.go: per-collection codecs
*/
package record

import "strings"

// Field is a canonical column name.
type Field string

// Header is a decoded header row: one canonical field per column. Columns
// the schema does not know keep their trimmed raw name.
type Header []Field

// Row is one decoded line keyed by canonical field.
type Row map[Field]string

// =============================================================================
// SCHEMA - canonical order plus alias table
// =============================================================================

type Schema struct {
	Fields  []Field          // canonical column order
	Labels  map[Field]string // label written to new files
	aliases map[string]Field // every accepted header name -> field
}

// NewSchema builds the alias table from the labels and the ASCII names.
// Extra aliases may be given as name -> field.
func NewSchema(fields []Field, labels map[Field]string, extra map[string]Field) Schema {
	s := Schema{Fields: fields, Labels: labels, aliases: make(map[string]Field)}
	for _, f := range fields {
		s.aliases[strings.ToLower(string(f))] = f
		if l, ok := labels[f]; ok {
			s.aliases[l] = f
		}
	}
	for name, f := range extra {
		s.aliases[name] = f
	}
	return s
}

// Resolve maps a header name to its canonical field.
func (s Schema) Resolve(name string) (Field, bool) {
	if f, ok := s.aliases[name]; ok {
		return f, true
	}
	f, ok := s.aliases[strings.ToLower(name)]
	return f, ok
}

// HeaderRow is the header written to new files, in canonical order.
func (s Schema) HeaderRow() []string {
	out := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		if l, ok := s.Labels[f]; ok {
			out[i] = l
		} else {
			out[i] = string(f)
		}
	}
	return out
}

// DecodeHeader strips a leading BOM, trims every cell and resolves aliases.
func (s Schema) DecodeHeader(raw []string) Header {
	h := make(Header, len(raw))
	for i, cell := range raw {
		if i == 0 {
			cell = strings.TrimPrefix(cell, bomString)
		}
		cell = strings.TrimSpace(cell)
		if f, ok := s.Resolve(cell); ok {
			h[i] = f
		} else {
			h[i] = Field(cell)
		}
	}
	return h
}

// Zip pairs header and cells. ok is false when the row is too short to zip
// safely. When a field appears twice the first column wins.
func (s Schema) Zip(h Header, cells []string) (Row, bool) {
	if len(cells) < len(h) {
		return nil, false
	}
	row := make(Row, len(h))
	for i, f := range h {
		if _, seen := row[f]; seen {
			continue
		}
		row[f] = cells[i]
	}
	return row, true
}

// Cells lays a row out in canonical order. Missing fields encode as "".
func (s Schema) Cells(row Row) []string {
	out := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		out[i] = row[f]
	}
	return out
}

// =============================================================================
// CODEC - typed view over a schema
// =============================================================================

// Codec converts between T and rows of one schema.
type Codec[T any] struct {
	Schema  Schema
	toRow   func(T) Row
	fromRow func(Row) (T, bool)
}

// DecodeRow returns false when the row is too short or carries no usable key.
func (c Codec[T]) DecodeRow(h Header, cells []string) (T, bool) {
	row, ok := c.Schema.Zip(h, cells)
	if !ok {
		var zero T
		return zero, false
	}
	return c.fromRow(row)
}

// EncodeRow returns one value per canonical column.
func (c Codec[T]) EncodeRow(v T) []string {
	return c.Schema.Cells(c.toRow(v))
}
