package join

import (
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/roadfeat/internal/config"
	"github.com/sells-group/roadfeat/internal/export"
)

// Population columns added to the road table.
const (
	ColIsUrban         = "is_urban"
	ColTotalPopulation = "total_population"
	ColUrbanPopulation = "urban_population"
	ColRuralPopulation = "rural_population"
)

// Population is one city's census figures. Nil counts are unknown.
type Population struct {
	City  string
	Urban bool
	Total *int64
	// UrbanTotal is the urban part of Total.
	UrbanTotal *int64
}

// Report describes a join. Unmatched lists secondary keys, in input order,
// that matched no row of the road table.
type Report struct {
	Rows      int
	Matched   int
	Unmatched []string
}

// PopulationFromTable reads city, total_population, urban_population and an
// optional urban or is_urban flag.
func PopulationFromTable(t *export.Table) ([]Population, error) {
	if t.Index("city") < 0 {
		return nil, eris.New("join: population table has no city column")
	}
	urbanCol := "urban"
	if t.Index(urbanCol) < 0 {
		urbanCol = ColIsUrban
	}

	pops := make([]Population, 0, len(t.Rows))
	for i := range t.Rows {
		city := strings.TrimSpace(t.Get(i, "city"))
		if city == "" {
			continue
		}
		total, err := parseCount(t.Get(i, ColTotalPopulation))
		if err != nil {
			return nil, eris.Wrapf(err, "join: %s total_population", city)
		}
		urban, err := parseCount(t.Get(i, ColUrbanPopulation))
		if err != nil {
			return nil, eris.Wrapf(err, "join: %s urban_population", city)
		}
		pops = append(pops, Population{
			City:       city,
			Urban:      truthy(t.Get(i, urbanCol)),
			Total:      total,
			UrbanTotal: urban,
		})
	}
	return pops, nil
}

// PopulationFromRoster takes the census figures carried by roster entries.
// Entries without any figure are skipped.
func PopulationFromRoster(cities []config.City) []Population {
	var pops []Population
	for _, c := range cities {
		if c.TotalPopulation == nil && c.UrbanPopulation == nil && !c.Urban {
			continue
		}
		pops = append(pops, Population{
			City:       c.Name,
			Urban:      c.Urban,
			Total:      c.TotalPopulation,
			UrbanTotal: c.UrbanPopulation,
		})
	}
	return pops
}

// AddPopulation sets is_urban, total_population, urban_population and
// rural_population on every row of t by its city column. Unknown totals stay
// empty; unknown urban and rural counts become 0. rural is total minus urban
// when the total is known.
func AddPopulation(t *export.Table, pops []Population) (Report, error) {
	if t.Index("city") < 0 {
		return Report{}, eris.New("join: road table has no city column")
	}
	byKey := make(map[string]Population, len(pops))
	order := make([]string, 0, len(pops))
	for _, p := range pops {
		k := NormalizeKey(p.City)
		if _, seen := byKey[k]; !seen {
			order = append(order, p.City)
		}
		byKey[k] = p
	}

	n := len(t.Rows)
	isUrban := make([]string, n)
	total := make([]string, n)
	urban := make([]string, n)
	rural := make([]string, n)
	used := make(map[string]bool)
	rep := Report{Rows: n}

	for i := range t.Rows {
		k := NormalizeKey(t.Get(i, "city"))
		p, ok := byKey[k]
		isUrban[i], urban[i], rural[i] = "0", "0", "0"
		if !ok {
			continue
		}
		rep.Matched++
		used[k] = true
		if p.Urban {
			isUrban[i] = "1"
		}
		var u int64
		if p.UrbanTotal != nil {
			u = *p.UrbanTotal
			urban[i] = strconv.FormatInt(u, 10)
		}
		if p.Total != nil {
			total[i] = strconv.FormatInt(*p.Total, 10)
			rural[i] = strconv.FormatInt(*p.Total-u, 10)
		}
	}

	for _, city := range order {
		if !used[NormalizeKey(city)] {
			rep.Unmatched = append(rep.Unmatched, city)
		}
	}

	for _, col := range []struct {
		name   string
		values []string
	}{
		{ColIsUrban, isUrban},
		{ColTotalPopulation, total},
		{ColUrbanPopulation, urban},
		{ColRuralPopulation, rural},
	} {
		if err := t.SetColumn(col.name, col.values); err != nil {
			return rep, err
		}
	}
	return rep, nil
}

// parseCount accepts "2960048", "2,960,048" and spreadsheet floats such as
// "2960048.0". Empty means unknown.
func parseCount(s string) (*int64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return nil, nil
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return &v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, eris.Errorf("join: invalid count %q", s)
	}
	v := int64(math.Round(f))
	return &v, nil
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "yes", "true", "y", "t", "urban":
		return true
	}
	return false
}
