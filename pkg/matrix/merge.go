package matrix

import "fmt"

// Merge outer-joins frames on their row ids.
//
// Rows appear in first-seen order across frames and columns in frame order.
// A column name already present in the accumulated result is disambiguated
// as "<name>_x" (earlier frame) and "<name>_y" (later frame). Cells missing
// from a frame are filled with 0.
func Merge(frames ...*Matrix) (*Matrix, error) {
	type column struct {
		name   string
		values map[string]float64
	}

	var (
		rowIDs  []string
		rowSeen = make(map[string]struct{})
		columns []*column
		byName  = make(map[string]*column)
	)

	for _, f := range frames {
		if f == nil {
			continue
		}
		for _, id := range f.rowIDs {
			if _, ok := rowSeen[id]; !ok {
				rowSeen[id] = struct{}{}
				rowIDs = append(rowIDs, id)
			}
		}
		for j, name := range f.colIDs {
			col := &column{name: name, values: make(map[string]float64, len(f.rowIDs))}
			for i, id := range f.rowIDs {
				col.values[id] = f.At(i, j)
			}
			if prev, clash := byName[name]; clash {
				left, right := name+"_x", name+"_y"
				if _, taken := byName[left]; taken {
					return nil, fmt.Errorf("%w: column %q collides more than once", ErrDuplicateID, name)
				}
				if _, taken := byName[right]; taken {
					return nil, fmt.Errorf("%w: column %q collides more than once", ErrDuplicateID, name)
				}
				delete(byName, name)
				prev.name = left
				byName[left] = prev
				col.name = right
			}
			byName[col.name] = col
			columns = append(columns, col)
		}
	}

	colIDs := make([]string, len(columns))
	for j, col := range columns {
		colIDs[j] = col.name
	}
	data := make([]float64, len(rowIDs)*len(columns))
	for i, id := range rowIDs {
		base := i * len(columns)
		for j, col := range columns {
			data[base+j] = col.values[id]
		}
	}
	return fromFlat(rowIDs, colIDs, data)
}
