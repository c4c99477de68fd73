package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/field"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/extract-annotator/constants"
	"github.com/joseph-ayodele/extract-annotator/db/ent/schema/utils"
)

// ViewContent is the current text of one file/job/segment.
type ViewContent struct{ ent.Schema }

func (ViewContent) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "view_contents"},
	}
}

func (ViewContent) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("file_id", uuid.UUID{}).Immutable(),
		field.UUID("job_id", uuid.UUID{}).Immutable(),
		field.Int("segment").NonNegative().Immutable(),
		field.String("format").
			Default(string(constants.DefaultFormat)).
			Validate(utils.EnumValidator(constants.FormatsAsStringSlice()...)),
		field.Text("text"),
		field.Time("updated_at").
			Default(time.Now).
			SchemaType(map[string]string{dialect.Postgres: "timestamptz"}).
			UpdateDefault(time.Now),
	}
}

// PrimaryKey lists the columns that identify a row.
func (ViewContent) PrimaryKey() []string {
	return []string{"file_id", "job_id", "segment"}
}
