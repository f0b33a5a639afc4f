package screen

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/stevehiehn/greenscreen/internal/field"
)

// CSVFiles names the three legacy CSV files that together describe a screen.
type CSVFiles struct {
	// Fields has FIELD_NAME, MAX_LENGTH, REQUIRED, TYPE, VALID_VALUES,
	// TABS_NEEDED, TABS_NEEDED_EMPTY (optional) and DESCRIPTION columns.
	Fields string
	// Navigation has STEP_ORDER, SCREEN_TITLE_CONTAINS, ACTION_TYPE,
	// ACTION_VALUE, WAIT_TIME and DESCRIPTION columns.
	Navigation string
	// Data has FIELD_NAME and VALUE columns. Optional.
	Data string
}

// LoadCSV builds a screen from legacy CSV files. The returned values are the
// rows of the data file, empty when no data file is named.
func LoadCSV(name string, files CSVFiles) (*Screen, map[string]string, error) {
	sc := &Screen{Name: name}

	rows, err := readCSV(files.Fields)
	if err != nil {
		return nil, nil, err
	}
	for i, row := range rows {
		r, err := fieldFromRow(row)
		if err != nil {
			return nil, nil, fmt.Errorf("%s row %d: %w", files.Fields, i+2, err)
		}
		sc.Fields = append(sc.Fields, r)
	}

	rows, err = readCSV(files.Navigation)
	if err != nil {
		return nil, nil, err
	}
	for i, row := range rows {
		s, err := stepFromRow(row)
		if err != nil {
			return nil, nil, fmt.Errorf("%s row %d: %w", files.Navigation, i+2, err)
		}
		sc.Steps = append(sc.Steps, s)
	}
	SortSteps(sc.Steps)

	values := map[string]string{}
	if files.Data != "" {
		rows, err = readCSV(files.Data)
		if err != nil {
			return nil, nil, err
		}
		for _, row := range rows {
			values[row["FIELD_NAME"]] = row["VALUE"]
		}
	}
	return sc, values, nil
}

func fieldFromRow(row map[string]string) (field.Rule, error) {
	r := field.Rule{
		Name:        row["FIELD_NAME"],
		Required:    strings.EqualFold(row["REQUIRED"], "true"),
		Kind:        field.Kind(row["TYPE"]),
		Description: row["DESCRIPTION"],
		TabsNeeded:  1,
	}
	if r.Kind == "" {
		r.Kind = field.KindText
	}
	var err error
	if r.MaxLength, err = atoi(row, "MAX_LENGTH"); err != nil {
		return r, err
	}
	if v := row["TABS_NEEDED"]; v != "" {
		if r.TabsNeeded, err = atoi(row, "TABS_NEEDED"); err != nil {
			return r, err
		}
	}
	if v := row["TABS_NEEDED_EMPTY"]; v != "" {
		n, err := atoi(row, "TABS_NEEDED_EMPTY")
		if err != nil {
			return r, err
		}
		r.TabsNeededEmpty = &n
	}
	if v := row["VALID_VALUES"]; v != "" {
		r.AllowedValues = strings.Split(v, ",")
	}
	return r, nil
}

func stepFromRow(row map[string]string) (Step, error) {
	s := Step{
		Gate:        row["SCREEN_TITLE_CONTAINS"],
		Action:      ActionKind(row["ACTION_TYPE"]),
		Value:       row["ACTION_VALUE"],
		Description: row["DESCRIPTION"],
	}
	var err error
	if s.Order, err = atoi(row, "STEP_ORDER"); err != nil {
		return s, err
	}
	if row["WAIT_TIME"] != "" {
		if s.WaitSeconds, err = atoi(row, "WAIT_TIME"); err != nil {
			return s, err
		}
	}
	return s, nil
}

func atoi(row map[string]string, col string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(row[col]))
	if err != nil {
		return 0, fmt.Errorf("column %s: %q is not an integer", col, row[col])
	}
	return n, nil
}

// readCSV returns the rows of a headed CSV file as column-keyed maps.
func readCSV(path string) ([]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("reading %s header: %w", path, err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	var rows []map[string]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(rec) {
				row[col] = rec[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
