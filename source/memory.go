package source

import (
	"io"

	"github.com/metrico/healpipe/model"
)

type memorySource struct {
	rows []model.Row
	pos  int
}

// NewMemory serves rows from a slice.
func NewMemory(rows []model.Row) RowSource {
	return &memorySource{rows: rows}
}

func (m *memorySource) RowCount() int {
	return len(m.rows)
}

func (m *memorySource) Next() (model.Row, error) {
	if m.pos >= len(m.rows) {
		return model.Row{}, io.EOF
	}
	m.pos++
	return m.rows[m.pos-1], nil
}

func (m *memorySource) Close() error {
	return nil
}
