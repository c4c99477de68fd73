package repository

import (
	"fmt"
	"strings"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	migrate "entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"

	entschema "github.com/joseph-ayodele/extract-annotator/db/ent/schema"
)

// primaryKeyer is implemented by schemas with a composite key.
type primaryKeyer interface {
	PrimaryKey() []string
}

// model is an ent schema compiled into a migration table plus the field
// validators used before writes.
type model struct {
	table  *migrate.Table
	fields map[string]*field.Descriptor
}

var (
	spanModel    = buildModel(entschema.Span{})
	contentModel = buildModel(entschema.ViewContent{})

	spansTable        = spanModel.table.Name
	viewContentsTable = contentModel.table.Name
)

// Tables lists every table the repositories use, for migration.
func Tables() []*migrate.Table {
	return []*migrate.Table{spanModel.table, contentModel.table}
}

func buildModel(s ent.Interface) model {
	m := model{fields: make(map[string]*field.Descriptor)}

	name := ""
	for _, a := range s.Annotations() {
		if ann, ok := a.(entsql.Annotation); ok && ann.Table != "" {
			name = ann.Table
		}
	}
	if name == "" {
		panic(fmt.Sprintf("schema %T has no table annotation", s))
	}
	t := migrate.NewTable(name)

	for _, f := range s.Fields() {
		d := f.Descriptor()
		if d.Err != nil {
			panic(fmt.Sprintf("schema %s field %s: %v", name, d.Name, d.Err))
		}
		col := d.StorageKey
		if col == "" {
			col = d.Name
		}
		t.AddColumn(&migrate.Column{
			Name:       col,
			Type:       d.Info.Type,
			Size:       int64(d.Size),
			Nullable:   d.Optional,
			Unique:     d.Unique,
			SchemaType: d.SchemaType,
			Comment:    d.Comment,
		})
		m.fields[col] = d
	}

	pk := []string{"id"}
	if k, ok := s.(primaryKeyer); ok {
		pk = k.PrimaryKey()
	}
	for _, c := range pk {
		col, ok := t.Column(c)
		if !ok {
			panic(fmt.Sprintf("schema %s: primary key column %s missing", name, c))
		}
		// AddPrimary would add the column a second time
		col.Key = migrate.PrimaryKey
		t.PrimaryKey = append(t.PrimaryKey, col)
	}

	for _, idx := range s.Indexes() {
		d := idx.Descriptor()
		idxName := d.StorageKey
		if idxName == "" {
			idxName = name + "_" + strings.Join(d.Fields, "_")
		}
		t.AddIndex(idxName, d.Unique, d.Fields)
	}

	m.table = t
	return m
}

// validate runs the schema validators of the named columns.
func (m model) validate(values map[string]any) error {
	for col, v := range values {
		d, ok := m.fields[col]
		if !ok {
			return fmt.Errorf("%s: unknown column %q", m.table.Name, col)
		}
		for _, fn := range d.Validators {
			var err error
			switch fn := fn.(type) {
			case func(string) error:
				s, ok := v.(string)
				if !ok {
					continue
				}
				err = fn(s)
			case func(int) error:
				n, ok := v.(int)
				if !ok {
					continue
				}
				err = fn(n)
			}
			if err != nil {
				return fmt.Errorf("%s.%s: %w", m.table.Name, col, err)
			}
		}
	}
	return nil
}
