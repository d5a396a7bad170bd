// Package table provides a tabular data container serialized as row arrays plus a $schema header.
package table

import (
	"fmt"
	"reflect"

	"github.com/viant/fastjson/descriptor"
	"github.com/viant/fastjson/value"
)

// SchemaKey is the reserved member carrying column metadata.
const SchemaKey = "$schema"

var anyType = reflect.TypeOf((*interface{})(nil)).Elem()

func init() {
	descriptor.RegisterName(anyType.String(), anyType)
}

type (
	Column struct {
		Name string
		Type reflect.Type
	}

	Table struct {
		Name    string
		Columns []Column
		Rows    [][]interface{}
	}

	DataSet struct {
		Name   string
		Tables []*Table
	}

	// Schema is the compact column header: Info holds (table, column, type name) triples.
	Schema struct {
		Info []string
		Name string
	}

	// VerboseSchema is the nested column header.
	VerboseSchema struct {
		Name   string
		Tables []TableSchema
	}

	TableSchema struct {
		Name    string
		Columns []ColumnSchema
	}

	ColumnSchema struct {
		Name string
		Type string
	}

	// AppendFunc writes one cell value.
	AppendFunc func(dst []byte, v interface{}) ([]byte, error)

	// ConvertFunc converts one cell node into the column type.
	ConvertFunc func(node value.Value, rType reflect.Type) (interface{}, error)
)

func NewTable(name string, columns ...Column) *Table {
	return &Table{Name: name, Columns: columns}
}

// AddRow appends a row; the cell count must match the columns.
func (t *Table) AddRow(cells ...interface{}) error {
	if len(cells) != len(t.Columns) {
		return fmt.Errorf("table %s: expected %d cells, got %d", t.Name, len(t.Columns), len(cells))
	}
	t.Rows = append(t.Rows, cells)
	return nil
}

func (t *Table) column(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Cell returns the value at row/column name.
func (t *Table) Cell(row int, column string) (interface{}, bool) {
	i := t.column(column)
	if i < 0 || row < 0 || row >= len(t.Rows) {
		return nil, false
	}
	return t.Rows[row][i], true
}

func NewDataSet(name string, tables ...*Table) *DataSet {
	return &DataSet{Name: name, Tables: tables}
}

func (d *DataSet) Table(name string) (*Table, bool) {
	for _, t := range d.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}

func (d *DataSet) Schema() Schema {
	s := Schema{Name: d.Name, Info: []string{}}
	for _, t := range d.Tables {
		for _, c := range t.Columns {
			s.Info = append(s.Info, t.Name, c.Name, typeName(c.Type))
		}
	}
	return s
}

func (d *DataSet) VerboseSchema() VerboseSchema {
	s := VerboseSchema{Name: d.Name, Tables: []TableSchema{}}
	for _, t := range d.Tables {
		ts := TableSchema{Name: t.Name, Columns: []ColumnSchema{}}
		for _, c := range t.Columns {
			ts.Columns = append(ts.Columns, ColumnSchema{Name: c.Name, Type: typeName(c.Type)})
		}
		s.Tables = append(s.Tables, ts)
	}
	return s
}

func typeName(rType reflect.Type) string {
	if rType == nil {
		rType = anyType
	}
	return descriptor.Register(rType)
}
