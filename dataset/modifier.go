package dataset

// Modifier transforms an expected dataset before it is compared against the database.
// Implementations must not mutate the input dataset.
type Modifier interface {
	Modify(ds *Dataset) *Dataset
}

// ModifierFunc adapts a plain function to the Modifier interface.
type ModifierFunc func(ds *Dataset) *Dataset

func (f ModifierFunc) Modify(ds *Dataset) *Dataset {
	return f(ds)
}

// Modifiers is an ordered modifier chain. The zero value is the identity modifier.
type Modifiers []Modifier

// Modify applies each modifier in order.
func (m Modifiers) Modify(ds *Dataset) *Dataset {
	for _, modifier := range m {
		ds = modifier.Modify(ds)
	}

	return ds
}

// ReplaceValue returns a modifier that substitutes every occurrence of a placeholder
// value with a concrete one, across all tables. Useful for timestamps and generated
// keys that are only known at runtime.
func ReplaceValue(placeholder, value any) Modifier {
	return ModifierFunc(func(ds *Dataset) *Dataset {
		out := New()

		for _, name := range ds.TableNames() {
			src, _ := ds.Table(name)

			table := &Table{Name: src.Name, Columns: append([]string(nil), src.Columns...)}

			for _, row := range src.Rows {
				replaced := make(Row, len(row))

				for k, v := range row {
					if ValueEqual(placeholder, v) {
						replaced[k] = value
					} else {
						replaced[k] = v
					}
				}

				table.Rows = append(table.Rows, replaced)
			}

			out.AddTable(table)
		}

		return out
	})
}
