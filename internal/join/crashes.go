package join

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/roadfeat/internal/export"
)

// ColCrashes is the crash count column, in both the crash table and the output.
const ColCrashes = "city_total_crashes"

// Crash is one city's total crash count, kept as text.
type Crash struct {
	City  string
	Total string
}

// CrashesFromTable reads the city and city_total_crashes columns.
func CrashesFromTable(t *export.Table) ([]Crash, error) {
	if t.Index("city") < 0 || t.Index(ColCrashes) < 0 {
		return nil, eris.Errorf("join: crash table needs city and %s columns", ColCrashes)
	}
	out := make([]Crash, 0, len(t.Rows))
	for i := range t.Rows {
		city := strings.TrimSpace(t.Get(i, "city"))
		if city == "" {
			continue
		}
		out = append(out, Crash{City: city, Total: strings.TrimSpace(t.Get(i, ColCrashes))})
	}
	return out, nil
}

// AddCrashes sets city_total_crashes on every row of t. Rows of unknown
// cities get an empty value. A later duplicate city overrides an earlier one.
func AddCrashes(t *export.Table, crashes []Crash) (Report, error) {
	if t.Index("city") < 0 {
		return Report{}, eris.New("join: road table has no city column")
	}
	byKey := make(map[string]string, len(crashes))
	for _, c := range crashes {
		byKey[NormalizeKey(c.City)] = c.Total
	}

	rep := Report{Rows: len(t.Rows)}
	present := make(map[string]bool, len(t.Rows))
	values := make([]string, len(t.Rows))
	for i := range t.Rows {
		k := NormalizeKey(t.Get(i, "city"))
		present[k] = true
		if v, ok := byKey[k]; ok {
			values[i] = v
			rep.Matched++
		}
	}

	reported := make(map[string]bool)
	for _, c := range crashes {
		k := NormalizeKey(c.City)
		if !present[k] && !reported[k] {
			reported[k] = true
			rep.Unmatched = append(rep.Unmatched, c.City)
		}
	}

	if err := t.SetColumn(ColCrashes, values); err != nil {
		return rep, err
	}
	return rep, nil
}
