package problemfile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

var arcColumns = []string{"from", "to", "cost", "capacity", "activation", "min_flow", "fixed_cost"}

// LoadArcs reads a CSV arc table from path.
func LoadArcs(path string) ([]ArcDef, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	arcs, err := ReadArcs(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return arcs, nil
}

// ReadArcs parses an arc table. The header row names the columns; from, to
// and cost are required, capacity, activation, min_flow and fixed_cost are
// optional. An empty capacity cell means unbounded. Lines starting with #
// are skipped.
func ReadArcs(r io.Reader) ([]ArcDef, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("arc table is empty")
		}
		return nil, err
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		if !known(name) {
			return nil, fmt.Errorf("unknown column %q", h)
		}
		col[name] = i
	}
	for _, req := range arcColumns[:3] {
		if _, ok := col[req]; !ok {
			return nil, fmt.Errorf("missing column %q", req)
		}
	}

	var arcs []ArcDef
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return arcs, nil
		}
		if err != nil {
			return nil, err
		}
		line, _ := cr.FieldPos(0)
		a, err := parseArc(rec, col)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		arcs = append(arcs, a)
	}
}

func known(name string) bool {
	for _, c := range arcColumns {
		if c == name {
			return true
		}
	}
	return false
}

func parseArc(rec []string, col map[string]int) (ArcDef, error) {
	cell := func(name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}
	num := func(name string) (float64, error) {
		s := cell(name)
		if s == "" {
			return 0, nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", name, err)
		}
		return v, nil
	}

	a := ArcDef{From: cell("from"), To: cell("to")}
	var err error
	if a.Cost, err = num("cost"); err != nil {
		return ArcDef{}, err
	}
	if cell("capacity") != "" {
		c, err := num("capacity")
		if err != nil {
			return ArcDef{}, err
		}
		a.Capacity = &c
	}
	if s := cell("activation"); s != "" {
		if a.Activation, err = strconv.ParseBool(s); err != nil {
			return ArcDef{}, fmt.Errorf("activation: %w", err)
		}
	}
	if a.MinFlow, err = num("min_flow"); err != nil {
		return ArcDef{}, err
	}
	if a.FixedCost, err = num("fixed_cost"); err != nil {
		return ArcDef{}, err
	}
	return a, nil
}
