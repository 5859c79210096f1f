package utils

import (
	"encoding/csv"
	"io"
	"sort"

	"github.com/facette/natsort"
)

// CSV rows ordered naturally by their first column.
type CSV [][]string

func (data CSV) Less(i, j int) bool {
	return natsort.Compare(data[i][0], data[j][0])
}

func (data CSV) Len() int {
	return len(data)
}
func (data CSV) Swap(i, j int) {
	data[i], data[j] = data[j], data[i]
}

func WriteAsCSV(w io.Writer, data CSV, columns []string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return err
	}
	sort.Sort(data)
	return cw.WriteAll(data)
}
