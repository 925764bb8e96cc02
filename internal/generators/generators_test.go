package generators

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"snowmapper/internal/schema"
)

func int64p(v int64) *int64 { return &v }

func diagramTables() []schema.Table {
	return []schema.Table{
		{
			Schema: "PUBLIC",
			Name:   "ORDERS",
			Type:   "BASE TABLE",
			Columns: []schema.Column{
				{Name: "ID", DataType: "NUMBER", NumericPrecision: int64p(38), NumericScale: int64p(0)},
				{Name: "NOTE", DataType: "TEXT", IsNullable: true, CharacterMaximumLength: int64p(200)},
			},
		},
		{Schema: "PUBLIC", Name: "V_ORDERS", Type: "VIEW"},
		{Schema: "A_FIRST", Name: "CUSTOMERS", Type: "BASE TABLE"},
	}
}

func TestLookup(t *testing.T) {
	for format, ext := range map[string]string{"mermaid": "md", "plantuml": "puml", "graphviz": "dot"} {
		gen, gotExt, ok := Lookup(format)
		assert.True(t, ok, format)
		assert.NotNil(t, gen)
		assert.Equal(t, ext, gotExt)
	}
	_, _, ok := Lookup("none")
	assert.False(t, ok)
}

func TestFormatType(t *testing.T) {
	assert.Equal(t, "NUMBER(38,2)", formatType(schema.Column{DataType: "NUMBER", NumericPrecision: int64p(38), NumericScale: int64p(2)}))
	assert.Equal(t, "NUMBER", formatType(schema.Column{DataType: "NUMBER"}))
	assert.Equal(t, "VARCHAR(16)", formatType(schema.Column{DataType: "text", CharacterMaximumLength: int64p(16)}))
	assert.Equal(t, "TIMESTAMP_NTZ", formatType(schema.Column{DataType: "timestamp_ntz"}))
	assert.Equal(t, "UNKNOWN", formatType(schema.Column{}))
}

func TestGenerateMermaid(t *testing.T) {
	out := GenerateMermaid("ANALYTICS", diagramTables())

	assert.True(t, strings.HasPrefix(out, "# ANALYTICS\n"))
	assert.Contains(t, out, "    PUBLIC_ORDERS {\n")
	assert.Contains(t, out, `        NUMBER_38_0 ID "NOT NULL"`)
	assert.Contains(t, out, "        VARCHAR_200 NOTE\n")
	assert.Contains(t, out, "Total Tables: 2\n")
	assert.Contains(t, out, "Total Views: 1\n")
	assert.Less(t, strings.Index(out, "A_FIRST_CUSTOMERS"), strings.Index(out, "PUBLIC_ORDERS"))
}

func TestGeneratePlantUML(t *testing.T) {
	out := GeneratePlantUML("ANALYTICS", diagramTables())

	assert.True(t, strings.HasPrefix(out, "@startuml\n"))
	assert.True(t, strings.HasSuffix(out, "@enduml\n"))
	assert.Contains(t, out, `entity "PUBLIC.V_ORDERS" as PUBLIC_V_ORDERS <<view>> {`)
	assert.Contains(t, out, "  ID : NUMBER(38,0) <<NOT NULL>>\n")
}

func TestGenerateGraphviz(t *testing.T) {
	out := GenerateGraphviz("ANALYTICS", diagramTables())

	assert.True(t, strings.HasPrefix(out, `digraph "ANALYTICS" {`))
	assert.Contains(t, out, `PUBLIC_ORDERS [label="{PUBLIC.ORDERS|ID: NUMBER(38,0) NOT NULL\lNOTE: VARCHAR(200)\l}"];`)
	assert.Contains(t, out, `PUBLIC.V_ORDERS (VIEW)`)
	assert.Contains(t, out, "fillcolor=lightgreen")
}
