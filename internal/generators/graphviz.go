package generators

import (
	"fmt"
	"strings"

	"snowmapper/internal/schema"
)

func GenerateGraphviz(database string, tables []schema.Table) string {
	var builder strings.Builder

	builder.WriteString(fmt.Sprintf("digraph %q {\n", database))
	builder.WriteString("  rankdir=TB;\n")
	builder.WriteString("  node [shape=record, style=filled, fillcolor=lightblue];\n\n")

	for _, table := range sortedTables(tables) {
		var fields []string
		for _, col := range table.Columns {
			field := escapeRecord(col.Name) + ": " + escapeRecord(formatType(col))
			if !col.IsNullable {
				field += " NOT NULL"
			}
			fields = append(fields, field)
		}

		label := escapeRecord(table.Schema + "." + table.Name)
		fill := ""
		if isView(table) {
			label += " (VIEW)"
			fill = ", fillcolor=lightgreen"
		}
		builder.WriteString(fmt.Sprintf("  %s [label=\"{%s|%s\\l}\"%s];\n",
			entityName(table), label, strings.Join(fields, "\\l"), fill))
	}

	builder.WriteString("}\n")

	return builder.String()
}

// escapeRecord protects the characters that delimit record-shaped node labels.
func escapeRecord(s string) string {
	return strings.NewReplacer(`"`, `\"`, "{", `\{`, "}", `\}`, "|", `\|`, "<", `\<`, ">", `\>`).Replace(s)
}
