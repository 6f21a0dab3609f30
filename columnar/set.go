package columnar

import (
	"errors"
	"fmt"
)

var (
	// ErrTransferred is returned by every access to a set whose buffers were
	// moved out with Detach.
	ErrTransferred = errors.New("column set was transferred")
	// ErrRowCountMismatch is returned when a source yields a different number
	// of rows than it declared.
	ErrRowCountMismatch = errors.New("row count mismatch")
)

// ColumnSet is a finished table: named columns of equal length with a single
// owner. It is never modified after it is built.
type ColumnSet struct {
	name    string
	rows    int
	columns []IColumn
	moved   bool
}

// NewColumnSet checks that all columns have rows entries and unique names.
func NewColumnSet(name string, rows int, columns ...IColumn) (*ColumnSet, error) {
	seen := make(map[string]bool, len(columns))
	for _, c := range columns {
		if seen[c.GetName()] {
			return nil, fmt.Errorf("duplicate column %q", c.GetName())
		}
		seen[c.GetName()] = true
		if c.GetLength() != rows {
			return nil, fmt.Errorf("column %q has %d rows, expected %d", c.GetName(), c.GetLength(), rows)
		}
	}
	return &ColumnSet{name: name, rows: rows, columns: columns}, nil
}

func (s *ColumnSet) Name() string {
	return s.name
}

func (s *ColumnSet) NumRows() int {
	return s.rows
}

// Transferred reports whether Detach was called.
func (s *ColumnSet) Transferred() bool {
	return s.moved
}

// Names returns the column names in table order.
func (s *ColumnSet) Names() []string {
	res := make([]string, len(s.columns))
	for i, c := range s.columns {
		res[i] = c.GetName()
	}
	return res
}

func (s *ColumnSet) Columns() ([]IColumn, error) {
	if s.moved {
		return nil, ErrTransferred
	}
	return s.columns, nil
}

func (s *ColumnSet) Column(name string) (IColumn, error) {
	if s.moved {
		return nil, ErrTransferred
	}
	for _, c := range s.columns {
		if c.GetName() == name {
			return c, nil
		}
	}
	return nil, fmt.Errorf("column %q not found", name)
}

// Detach hands the columns over to the caller and invalidates the set.
func (s *ColumnSet) Detach() ([]IColumn, error) {
	if s.moved {
		return nil, ErrTransferred
	}
	res := s.columns
	s.columns = nil
	s.moved = true
	return res, nil
}

// Validate checks the structural invariants of every column.
func (s *ColumnSet) Validate() error {
	if s.moved {
		return ErrTransferred
	}
	for _, c := range s.columns {
		if c.GetLength() != s.rows {
			return fmt.Errorf("column %q has %d rows, expected %d", c.GetName(), c.GetLength(), s.rows)
		}
		if p, ok := c.(*PolygonColumn); ok {
			if err := p.Geometry().Validate(); err != nil {
				return fmt.Errorf("column %q: %w", c.GetName(), err)
			}
		}
	}
	return nil
}
