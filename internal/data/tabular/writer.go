package tabular

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/heatmap-scatter/server/pkg/matrix"
)

// WriteCSV writes m with an unnamed id column first.
func WriteCSV(w io.Writer, m *matrix.Matrix) error {
	cw := csv.NewWriter(w)
	header := append([]string{""}, m.ColIDs()...)
	if err := cw.Write(header); err != nil {
		return err
	}
	record := make([]string, m.Cols()+1)
	for i, id := range m.RowIDs() {
		record[0] = id
		for j := 0; j < m.Cols(); j++ {
			record[j+1] = strconv.FormatFloat(m.At(i, j), 'g', -1, 64)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
