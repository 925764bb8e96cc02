package generators

import (
	"fmt"
	"strings"

	"snowmapper/internal/schema"
)

func GenerateMermaid(database string, tables []schema.Table) string {
	var builder strings.Builder

	builder.WriteString(fmt.Sprintf("# %s\n\n", database))
	builder.WriteString("```mermaid\nerDiagram\n")

	views := 0
	for _, table := range sortedTables(tables) {
		if isView(table) {
			views++
		}
		builder.WriteString(fmt.Sprintf("    %s {\n", entityName(table)))
		for _, col := range table.Columns {
			keyStr := ""
			if !col.IsNullable {
				keyStr = ` "NOT NULL"`
			}
			builder.WriteString(fmt.Sprintf("        %s %s%s\n", mermaidType(col), col.Name, keyStr))
		}
		builder.WriteString("    }\n")
	}

	builder.WriteString("```\n\n")
	builder.WriteString(fmt.Sprintf("Total Tables: %d\n", len(tables)-views))
	builder.WriteString(fmt.Sprintf("Total Views: %d\n", views))

	return builder.String()
}

// mermaidType drops the parentheses Mermaid attribute types cannot contain.
func mermaidType(col schema.Column) string {
	t := formatType(col)
	t = strings.NewReplacer("(", "_", ")", "", ",", "_", " ", "_").Replace(t)
	return t
}
