package datasets

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/forestcover/pkg/errors"
)

// ReadCSV reads a headed CSV file of numeric columns.
func ReadCSV(path string) (*Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.NewDataError(path, 0, "", err)
	}
	defer file.Close()
	return ParseCSV(file, path)
}

// ParseCSV parses a headed CSV stream of numeric columns. name labels the
// source in errors. Every record must have one value per header field and
// every value must parse as a number.
func ParseCSV(r io.Reader, name string) (*Frame, error) {
	reader := csv.NewReader(r)
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.NewDataError(name, 1, "", errors.Wrap(errors.ErrEmptyData, "missing header"))
	}
	if err != nil {
		return nil, csvError(name, err)
	}
	names := make([]string, len(header))
	for j, h := range header {
		names[j] = strings.TrimSpace(h)
	}
	columns := make([][]float64, len(names))

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, csvError(name, err)
		}
		for j, field := range record {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				line, _ := reader.FieldPos(j)
				return nil, errors.NewDataError(name, line, names[j], err)
			}
			columns[j] = append(columns[j], v)
		}
	}

	frame, err := NewFrame(names, columns)
	if err != nil {
		return nil, errors.NewDataError(name, 1, "", err)
	}
	return frame, nil
}

func csvError(name string, err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return errors.NewDataError(name, pe.Line, "", pe.Err)
	}
	return errors.NewDataError(name, 0, "", err)
}
