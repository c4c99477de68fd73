package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"

	"github.com/google/uuid"
)

// Span is a stored annotation. Offsets are relative to full_text.
type Span struct{ ent.Schema }

func (Span) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "spans"},
	}
}

func (Span) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			NotEmpty().
			MaxLen(64).
			Immutable(),
		field.UUID("file_id", uuid.UUID{}).Immutable(),
		field.UUID("job_id", uuid.UUID{}).Immutable(),
		field.Int("segment").NonNegative().Immutable(),
		field.Int("start_offset").NonNegative(),
		field.Int("end_offset").NonNegative(),
		field.Text("comment"),
		field.Text("full_text"),
		field.Time("created_at").
			Default(time.Now).
			SchemaType(map[string]string{dialect.Postgres: "timestamptz"}).
			Immutable(),
		field.Time("updated_at").
			Default(time.Now).
			SchemaType(map[string]string{dialect.Postgres: "timestamptz"}).
			UpdateDefault(time.Now),
	}
}

func (Span) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("file_id", "job_id", "segment"),
		index.Fields("file_id", "created_at"),
	}
}
