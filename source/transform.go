package source

import (
	"fmt"
	"io"
	"math"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/vm"
	"github.com/metrico/healpipe/model"
)

type limited struct {
	RowSource
	limit int
	read  int
}

// Limit caps src, and its declared row count, at n rows. n <= 0 disables
// the cap.
func Limit(src RowSource, n int) RowSource {
	if n <= 0 {
		return src
	}
	return &limited{RowSource: src, limit: n}
}

func (l *limited) RowCount() int {
	return min(l.limit, l.RowSource.RowCount())
}

func (l *limited) Next() (model.Row, error) {
	if l.read >= l.limit {
		return model.Row{}, io.EOF
	}
	row, err := l.RowSource.Next()
	if err == nil {
		l.read++
	}
	return row, err
}

// exprFields are the identifiers a value expression can use.
var exprFields = map[string]bool{
	"value": true, "temperature": true, "pressure": true, "salinity": true,
	"year": true, "time": true, "cell": true,
}

type identCollector struct {
	Identifiers []string
}

func (c *identCollector) Visit(node *ast.Node) {
	n, ok := (*node).(*ast.IdentifierNode)
	if !ok {
		return
	}
	if !exprFields[n.Value] {
		return
	}
	c.Identifiers = append(c.Identifiers, n.Value)
}

type valueExpr struct {
	RowSource
	program *vm.Program
	machine vm.VM
	env     map[string]any
}

// CompileValueExpr checks a value expression and returns the row fields it
// reads.
func CompileValueExpr(code string) (*vm.Program, []string, error) {
	helper := identCollector{}
	env := exprEnv()
	prog, err := expr.Compile(code, expr.Env(env), expr.AsFloat64(), expr.Patch(&helper))
	if err != nil {
		return nil, nil, fmt.Errorf("value expression: %w", err)
	}
	return prog, helper.Identifiers, nil
}

func exprEnv() map[string]any {
	return map[string]any{
		"value": 0.0, "temperature": 0.0, "pressure": 0.0, "salinity": 0.0,
		"year": 0, "time": int64(0), "cell": int64(0),
	}
}

// kindFields are the row fields a source of the kind fills in.
func kindFields(kind model.Kind) map[string]bool {
	switch kind {
	case model.KindSpecies:
		return map[string]bool{"value": true, "cell": true}
	case model.KindDestine:
		return nil
	}
	return map[string]bool{"value": true, "temperature": true, "pressure": true, "time": true, "cell": true}
}

// WithValueExpr replaces the value of every row with the result of an
// expr-lang expression over the row fields. Missing readings are NaN. The
// expression may only read fields that rows of kind carry; destine rows have
// no value to replace.
func WithValueExpr(src RowSource, kind model.Kind, code string) (RowSource, error) {
	if code == "" {
		return src, nil
	}
	prog, fields, err := CompileValueExpr(code)
	if err != nil {
		return nil, err
	}
	allowed := kindFields(kind)
	if allowed == nil {
		return nil, fmt.Errorf("value expression: %s rows have no value", kind)
	}
	for _, f := range fields {
		if !allowed[f] {
			return nil, fmt.Errorf("value expression: %s rows have no %s", kind, f)
		}
	}
	return &valueExpr{RowSource: src, program: prog, env: exprEnv()}, nil
}

func (v *valueExpr) Next() (model.Row, error) {
	row, err := v.RowSource.Next()
	if err != nil {
		return row, err
	}
	nan := math.NaN()
	v.env["value"] = row.Value
	v.env["time"] = row.Time
	v.env["cell"] = row.Cell
	v.env["temperature"], v.env["pressure"] = nan, nan
	v.env["salinity"], v.env["year"] = nan, 0
	if row.Aux != nil {
		v.env["temperature"], v.env["pressure"] = row.Aux.Temperature, row.Aux.Pressure
	}
	if row.Env != nil {
		v.env["temperature"] = row.Env.Temperature
		v.env["salinity"] = row.Env.Salinity
		v.env["year"] = int(row.Env.Year)
	}
	out, err := v.machine.Run(v.program, v.env)
	if err != nil {
		return row, fmt.Errorf("%w: value expression: %w", ErrSourceRead, err)
	}
	row.Value = out.(float64)
	return row, nil
}
