package output

import (
	"path"
	"strings"
)

func WarehousesPath(ext string) string {
	return "warehouses." + ext
}

func DatabasesPath(ext string) string {
	return "databases." + ext
}

func MetadataPath(database, ext string) string {
	return path.Join(component(database), "metadata."+ext)
}

// TablePath is <database>/<schema>.<table>.<ext>, all lowercased.
func TablePath(database, schema, table, ext string) string {
	return path.Join(component(database), component(schema)+"."+component(table)+"."+ext)
}

// DiagramPath is <database>/schema.<ext>.
func DiagramPath(database, ext string) string {
	return path.Join(component(database), "schema."+ext)
}

// component lowercases a catalog name and keeps it a single path element.
func component(name string) string {
	name = strings.ToLower(name)
	name = strings.NewReplacer("/", "_", `\`, "_").Replace(name)
	switch name {
	case "", ".", "..":
		return "_" + name
	}
	return name
}
