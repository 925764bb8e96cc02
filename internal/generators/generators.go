package generators

import (
	"fmt"
	"sort"
	"strings"

	"snowmapper/internal/schema"
)

// Generator renders the tables of one database as a diagram.
type Generator func(database string, tables []schema.Table) string

// Lookup returns the generator and file extension for a diagram format.
func Lookup(format string) (Generator, string, bool) {
	switch format {
	case "mermaid":
		return GenerateMermaid, "md", true
	case "plantuml":
		return GeneratePlantUML, "puml", true
	case "graphviz":
		return GenerateGraphviz, "dot", true
	default:
		return nil, "", false
	}
}

// sortedTables orders by schema then name so diagrams do not depend on harvest order.
func sortedTables(tables []schema.Table) []schema.Table {
	out := append([]schema.Table(nil), tables...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Schema != out[j].Schema {
			return out[i].Schema < out[j].Schema
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func isView(t schema.Table) bool {
	return strings.Contains(strings.ToUpper(t.Type), "VIEW")
}

// formatType renders Snowflake column types with their length or precision.
func formatType(col schema.Column) string {
	typ := strings.ToUpper(col.DataType)
	switch typ {
	case "TEXT", "VARCHAR", "STRING", "CHAR", "CHARACTER":
		if col.CharacterMaximumLength != nil {
			return fmt.Sprintf("VARCHAR(%d)", *col.CharacterMaximumLength)
		}
		return "VARCHAR"
	case "NUMBER", "DECIMAL", "NUMERIC":
		if col.NumericPrecision != nil && col.NumericScale != nil {
			return fmt.Sprintf("NUMBER(%d,%d)", *col.NumericPrecision, *col.NumericScale)
		}
		return "NUMBER"
	case "":
		return "UNKNOWN"
	default:
		return typ
	}
}

func entityName(t schema.Table) string {
	name := t.Schema + "_" + t.Name
	return strings.NewReplacer("-", "_", ".", "_", " ", "_", `"`, "_").Replace(name)
}
