package types

import "strings"

// TableID identifies a table by its optional catalog and schema.
type TableID struct {
	Catalog string `json:"catalog,omitempty"`
	Schema  string `json:"schema,omitempty"`
	Table   string `json:"table"`
}

// ParseTableID splits "catalog.schema.table", "schema.table" or "table".
func ParseTableID(name string) TableID {
	parts := strings.Split(name, ".")
	switch len(parts) {
	case 1:
		return TableID{Table: parts[0]}
	case 2:
		return TableID{Schema: parts[0], Table: parts[1]}
	default:
		return TableID{
			Catalog: parts[len(parts)-3],
			Schema:  parts[len(parts)-2],
			Table:   parts[len(parts)-1],
		}
	}
}

func (t TableID) IsZero() bool {
	return t.Table == ""
}

// Parts returns the non empty components in catalog, schema, table order
func (t TableID) Parts() []string {
	parts := make([]string, 0, 3)
	for _, p := range []string{t.Catalog, t.Schema, t.Table} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

func (t TableID) String() string {
	return strings.Join(t.Parts(), ".")
}
