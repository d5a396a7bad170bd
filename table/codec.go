package table

import (
	"fmt"
	"reflect"

	"github.com/viant/fastjson/descriptor"
	"github.com/viant/fastjson/value"
)

// Value renders the compact schema as a JSON tree.
func (s Schema) Value() value.Value {
	info := make([]value.Value, len(s.Info))
	for i, item := range s.Info {
		info[i] = value.StringValue(item)
	}
	members := value.NewMembers(2)
	members.Set("Info", value.ArrayValue(info...))
	members.Set("Name", value.StringValue(s.Name))
	return value.ObjectValue(members)
}

// Value renders the nested schema as a JSON tree.
func (s VerboseSchema) Value() value.Value {
	tables := make([]value.Value, 0, len(s.Tables))
	for _, t := range s.Tables {
		columns := make([]value.Value, 0, len(t.Columns))
		for _, c := range t.Columns {
			column := value.NewMembers(2)
			column.Set("Name", value.StringValue(c.Name))
			column.Set("Type", value.StringValue(c.Type))
			columns = append(columns, value.ObjectValue(column))
		}
		entry := value.NewMembers(2)
		entry.Set("Name", value.StringValue(t.Name))
		entry.Set("Columns", value.ArrayValue(columns...))
		tables = append(tables, value.ObjectValue(entry))
	}
	members := value.NewMembers(2)
	members.Set("Name", value.StringValue(s.Name))
	members.Set("Tables", value.ArrayValue(tables...))
	return value.ObjectValue(members)
}

// AppendJSON writes {"$schema":...,"<table>":[[cells],...],...}; the schema header is
// omitted unless withSchema is set.
func (d *DataSet) AppendJSON(dst []byte, withSchema, optimized bool, appendCell AppendFunc) ([]byte, error) {
	dst = append(dst, '{')
	if withSchema {
		dst = value.AppendQuoted(dst, SchemaKey, false)
		dst = append(dst, ':')
		if optimized {
			dst = d.Schema().Value().Append(dst)
		} else {
			dst = d.VerboseSchema().Value().Append(dst)
		}
	}
	var err error
	for i, t := range d.Tables {
		if i > 0 || withSchema {
			dst = append(dst, ',')
		}
		if dst, err = t.appendRows(dst, appendCell); err != nil {
			return nil, err
		}
	}
	return append(dst, '}'), nil
}

// AppendJSON writes a single table in the data set layout.
func (t *Table) AppendJSON(dst []byte, withSchema, optimized bool, appendCell AppendFunc) ([]byte, error) {
	return NewDataSet(t.Name, t).AppendJSON(dst, withSchema, optimized, appendCell)
}

func (t *Table) appendRows(dst []byte, appendCell AppendFunc) ([]byte, error) {
	var err error
	dst = value.AppendQuoted(dst, t.Name, false)
	dst = append(dst, ':', '[')
	for i, row := range t.Rows {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = append(dst, '[')
		for j, cell := range row {
			if j > 0 {
				dst = append(dst, ',')
			}
			if dst, err = appendCell(dst, cell); err != nil {
				return nil, fmt.Errorf("table %s row %d: %w", t.Name, i, err)
			}
		}
		dst = append(dst, ']')
	}
	return append(dst, ']'), nil
}

// IsDataSet reports whether an object node carries a schema header.
func IsDataSet(members *value.Members) bool {
	return members.Has(SchemaKey)
}

// Decode rebuilds a DataSet from an object node with a $schema header.
func Decode(members *value.Members, convert ConvertFunc) (*DataSet, error) {
	schemaNode, ok := members.Get(SchemaKey)
	if !ok || schemaNode.Kind() != value.Object {
		return nil, fmt.Errorf("missing %s object", SchemaKey)
	}
	ds, err := fromSchema(schemaNode.Members())
	if err != nil {
		return nil, err
	}
	for _, m := range members.List() {
		if m.Key == SchemaKey || m.Key == "$type" || m.Value.IsNull() {
			continue
		}
		t, ok := ds.Table(m.Key)
		if !ok {
			return nil, fmt.Errorf("table %s not declared in %s", m.Key, SchemaKey)
		}
		if err = t.decodeRows(m.Value, convert); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

// DecodeTable rebuilds the first table of a data set node.
func DecodeTable(members *value.Members, convert ConvertFunc) (*Table, error) {
	ds, err := Decode(members, convert)
	if err != nil {
		return nil, err
	}
	if len(ds.Tables) == 0 {
		return nil, fmt.Errorf("no table declared in %s", SchemaKey)
	}
	return ds.Tables[0], nil
}

func fromSchema(schema *value.Members) (*DataSet, error) {
	ds := &DataSet{}
	if name, ok := schema.Get("Name"); ok {
		ds.Name, _ = name.Text()
	}
	if info, ok := schema.Get("Info"); ok {
		items := info.Items()
		if len(items)%3 != 0 {
			return nil, fmt.Errorf("%s Info must hold table/column/type triples", SchemaKey)
		}
		for i := 0; i < len(items); i += 3 {
			tableName, _ := items[i].Text()
			columnName, _ := items[i+1].Text()
			typeName, _ := items[i+2].Text()
			if err := ds.declare(tableName, columnName, typeName); err != nil {
				return nil, err
			}
		}
		return ds, nil
	}
	tables, ok := schema.Get("Tables")
	if !ok {
		return nil, fmt.Errorf("%s requires Info or Tables", SchemaKey)
	}
	for _, t := range tables.Items() {
		tableName, _ := field(t, "Name").Text()
		if _, exists := ds.Table(tableName); !exists {
			ds.Tables = append(ds.Tables, NewTable(tableName))
		}
		for _, c := range field(t, "Columns").Items() {
			columnName, _ := field(c, "Name").Text()
			typeName, _ := field(c, "Type").Text()
			if err := ds.declare(tableName, columnName, typeName); err != nil {
				return nil, err
			}
		}
	}
	return ds, nil
}

func field(node value.Value, key string) value.Value {
	v, _ := node.Members().Get(key)
	return v
}

func (d *DataSet) declare(tableName, columnName, typeName string) error {
	rType, ok := descriptor.Resolve(typeName)
	if !ok {
		return fmt.Errorf("column %s.%s: unknown type %q", tableName, columnName, typeName)
	}
	t, ok := d.Table(tableName)
	if !ok {
		t = NewTable(tableName)
		d.Tables = append(d.Tables, t)
	}
	t.Columns = append(t.Columns, Column{Name: columnName, Type: rType})
	return nil
}

func (t *Table) decodeRows(node value.Value, convert ConvertFunc) error {
	if node.Kind() != value.Array {
		return fmt.Errorf("table %s: expected array of rows, got %v", t.Name, node.Kind())
	}
	for i, rowNode := range node.Items() {
		cells := rowNode.Items()
		if rowNode.Kind() != value.Array || len(cells) != len(t.Columns) {
			return fmt.Errorf("table %s row %d: expected %d cells", t.Name, i, len(t.Columns))
		}
		row := make([]interface{}, len(cells))
		for j, cell := range cells {
			if cell.IsNull() {
				continue
			}
			v, err := convert(cell, t.Columns[j].Type)
			if err != nil {
				return fmt.Errorf("table %s row %d column %s: %w", t.Name, i, t.Columns[j].Name, err)
			}
			row[j] = v
		}
		t.Rows = append(t.Rows, row)
	}
	return nil
}

// Type helpers used by the codec engines.
var (
	DataSetType = reflect.TypeOf(DataSet{})
	TableType   = reflect.TypeOf(Table{})
)
