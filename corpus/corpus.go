// Package corpus reads labeled and unlabeled text corpora from CSV.
//
// The first row is a header. Column lookup is case-insensitive, and columns
// other than the configured ones are ignored.
package corpus

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/poiesic/relevance/core"
)

// Default column names.
const (
	DefaultTextColumn  = "Text"
	DefaultLabelColumn = "Relevance"
)

type options struct {
	textColumn  string
	labelColumn string
}

// Option configures how a corpus is read.
type Option func(*options) error

// WithTextColumn sets the name of the column holding the text.
func WithTextColumn(name string) Option {
	return func(o *options) error {
		if strings.TrimSpace(name) == "" {
			return errors.New("text column name cannot be empty")
		}
		o.textColumn = name
		return nil
	}
}

// WithLabelColumn sets the name of the column holding the binary label.
func WithLabelColumn(name string) Option {
	return func(o *options) error {
		if strings.TrimSpace(name) == "" {
			return errors.New("label column name cannot be empty")
		}
		o.labelColumn = name
		return nil
	}
}

func newOptions(opts []Option) (*options, error) {
	o := &options{textColumn: DefaultTextColumn, labelColumn: DefaultLabelColumn}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// ReadLabeled parses a labeled corpus. Every row must have non-empty text and
// a label of 0/1 or true/false. Errors wrap core.ErrData and name the
// offending row, counting the header as row 1.
func ReadLabeled(r io.Reader, opts ...Option) ([]core.LabeledExample, error) {
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}

	reader := newReader(r)
	header, err := readHeader(reader)
	if err != nil {
		return nil, err
	}
	textCol, err := column(header, o.textColumn)
	if err != nil {
		return nil, err
	}
	labelCol, err := column(header, o.labelColumn)
	if err != nil {
		return nil, err
	}

	var examples []core.LabeledExample
	for row := 2; ; row++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %w", core.ErrData, row, err)
		}

		label, err := core.ParseLabel(record[labelCol])
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %w", core.ErrData, row, err)
		}
		example := core.LabeledExample{Text: record[textCol], Label: label}
		if err := core.ValidateLabeledExample(&example); err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		examples = append(examples, example)
	}

	if len(examples) == 0 {
		return nil, fmt.Errorf("%w: labeled corpus has no rows", core.ErrData)
	}
	return examples, nil
}

// ReadUnlabeled parses an unlabeled corpus. Rows with blank text are skipped.
// An empty corpus (header only) is valid.
func ReadUnlabeled(r io.Reader, opts ...Option) ([]core.UnlabeledExample, error) {
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}

	reader := newReader(r)
	header, err := readHeader(reader)
	if err != nil {
		return nil, err
	}
	textCol, err := column(header, o.textColumn)
	if err != nil {
		return nil, err
	}

	examples := []core.UnlabeledExample{}
	for row := 2; ; row++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %w", core.ErrData, row, err)
		}
		if strings.TrimSpace(record[textCol]) == "" {
			continue
		}
		examples = append(examples, core.UnlabeledExample{Text: record[textCol]})
	}
	return examples, nil
}

// LoadLabeled reads a labeled corpus from a file.
func LoadLabeled(path string, opts ...Option) ([]core.LabeledExample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrData, err)
	}
	defer f.Close()
	return ReadLabeled(f, opts...)
}

// LoadUnlabeled reads an unlabeled corpus from a file.
func LoadUnlabeled(path string, opts ...Option) ([]core.UnlabeledExample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrData, err)
	}
	defer f.Close()
	return ReadUnlabeled(f, opts...)
}

func newReader(r io.Reader) *csv.Reader {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	return reader
}

func readHeader(reader *csv.Reader) ([]string, error) {
	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: missing header row", core.ErrData)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: row 1: %w", core.ErrData, err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	return header, nil
}

func column(header []string, name string) (int, error) {
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: missing column %q", core.ErrData, name)
}
