package summary

import (
	"fmt"
	"io"
	"strconv"

	"github.com/YuminosukeSato/forestcover/datasets"
)

// PrintDtypes writes one "name kind" line per column, names padded to a
// common width, followed by "dtype: object".
func PrintDtypes(w io.Writer, frame *datasets.Frame) error {
	dtypes := frame.Dtypes()
	nameW, kindW := 0, 0
	for _, d := range dtypes {
		nameW = max(nameW, len(d.Name))
		kindW = max(kindW, len(d.Kind))
	}
	for _, d := range dtypes {
		if _, err := fmt.Fprintf(w, "%-*s    %*s\n", nameW, d.Name, kindW, d.Kind); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "dtype: object")
	return err
}

// PrintClassCounts writes the number of rows per value of column, in
// value order, under a header line holding the column name.
func PrintClassCounts(w io.Writer, frame *datasets.Frame, column string) error {
	counts, err := frame.GroupCounts(column)
	if err != nil {
		return err
	}
	labels := make([]string, len(counts))
	labelW, countW := 0, 0
	for i, c := range counts {
		labels[i] = strconv.FormatFloat(c.Value, 'f', -1, 64)
		labelW = max(labelW, len(labels[i]))
		countW = max(countW, len(strconv.Itoa(c.Count)))
	}
	if _, err := fmt.Fprintln(w, column); err != nil {
		return err
	}
	for i, c := range counts {
		if _, err := fmt.Fprintf(w, "%-*s    %*d\n", labelW, labels[i], countW, c.Count); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintln(w, "dtype: int64")
	return err
}
