package generators

import (
	"fmt"
	"strings"

	"snowmapper/internal/schema"
)

func GeneratePlantUML(database string, tables []schema.Table) string {
	var builder strings.Builder

	builder.WriteString("@startuml\n")
	builder.WriteString("!theme plain\n")
	builder.WriteString(fmt.Sprintf("title %s\n\n", database))

	for _, table := range sortedTables(tables) {
		stereotype := ""
		if isView(table) {
			stereotype = " <<view>>"
		}
		builder.WriteString(fmt.Sprintf("entity \"%s.%s\" as %s%s {\n", table.Schema, table.Name, entityName(table), stereotype))
		for _, col := range table.Columns {
			nullStr := ""
			if !col.IsNullable {
				nullStr = " <<NOT NULL>>"
			}
			builder.WriteString(fmt.Sprintf("  %s : %s%s\n", col.Name, formatType(col), nullStr))
		}
		builder.WriteString("}\n\n")
	}

	builder.WriteString("@enduml\n")

	return builder.String()
}
