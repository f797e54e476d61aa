package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/warp/carbon-engine/engine"
)

// ErrUnknownStatement is returned for a statement name with no schema.
var ErrUnknownStatement = errors.New("unknown statement")

// ParseError locates a bad value in a CSV document. Line is 1-based and
// counts the header.
type ParseError struct {
	Line    int
	Column  string
	Message string
}

func (e *ParseError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return fmt.Sprintf("line %d, column %s: %s", e.Line, e.Column, e.Message)
}

// WriteCSV writes one statement of the model.
func WriteCSV(w io.Writer, m *engine.Model, s Statement) error {
	t, ok := tables[s]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownStatement, s)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(t.header()); err != nil {
		return err
	}
	if err := cw.WriteAll(t.records(m)); err != nil {
		return err
	}
	return cw.Error()
}

// ParseCSV reads a statement written by WriteCSV into a model holding only
// that statement. The header must match the schema exactly.
func ParseCSV(r io.Reader, s Statement) (*engine.Model, error) {
	t, ok := tables[s]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStatement, s)
	}

	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s CSV: %w", s, err)
	}
	if len(records) == 0 {
		return nil, &ParseError{Line: 1, Message: "missing header"}
	}

	want := t.header()
	if got := records[0]; strings.Join(got, ",") != strings.Join(want, ",") {
		return nil, &ParseError{Line: 1, Message: fmt.Sprintf("header mismatch: want %v, got %v", want, got)}
	}

	m := &engine.Model{}
	if err := t.load(m, records[1:]); err != nil {
		return nil, err
	}
	return m, nil
}
