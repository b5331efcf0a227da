package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/kilianp07/flownet/core/engine"
	"github.com/kilianp07/flownet/core/interpret"
	"github.com/kilianp07/flownet/core/problem"
	"github.com/kilianp07/flownet/core/runlog"
	"github.com/kilianp07/flownet/core/scenario"
	"github.com/kilianp07/flownet/core/sweep"
)

const (
	outputTable = "table"
	outputJSON  = "json"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#00AA00"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#CC0000"))
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// num prints v rounded to six decimals, hiding solver round-off.
func num(v float64) string {
	return strconv.FormatFloat(math.Round(v*1e6)/1e6, 'f', -1, 64)
}

func objective(v *float64) string {
	if v == nil {
		return "-"
	}
	return num(*v)
}

func status(s problem.Status) string {
	if s == problem.StatusOptimal {
		return okStyle.Render(string(s))
	}
	return failStyle.Render(string(s))
}

func printRun(w io.Writer, name string, run engine.Run) error {
	if output == outputJSON {
		return writeJSON(w, struct {
			RunID    string           `json:"run_id"`
			Problem  string           `json:"problem"`
			Duration string           `json:"duration"`
			Nodes    int              `json:"nodes"`
			Solution problem.Solution `json:"solution"`
		}{run.ID, name, run.Duration.String(), run.Nodes, run.Solution})
	}
	sol := run.Solution
	if _, err := fmt.Fprintf(w, "%s  %s  objective %s  (%s, run %s)\n",
		titleStyle.Render(name), status(sol.Status), objective(sol.Objective), run.Duration.Round(time.Microsecond), run.ID); err != nil {
		return err
	}
	if !sol.Optimal() {
		return nil
	}
	keys := make([]problem.ArcKey, 0, len(sol.Flows))
	for k := range sol.Flows {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].From != keys[j].From {
			return keys[i].From < keys[j].From
		}
		return keys[i].To < keys[j].To
	})
	t := newTable("from", "to", "flow", "active")
	for _, k := range keys {
		if sol.Flows[k] == 0 && sol.Activations[k] == 0 {
			continue
		}
		active := ""
		if a, ok := sol.Activations[k]; ok {
			active = strconv.Itoa(a)
		}
		t.Row(k.From, k.To, num(sol.Flows[k]), active)
	}
	if _, err := fmt.Fprintln(w, t.Render()); err != nil {
		return err
	}
	if len(sol.NodeActivations) == 0 {
		return nil
	}
	nodes := make([]string, 0, len(sol.NodeActivations))
	for id := range sol.NodeActivations {
		nodes = append(nodes, id)
	}
	sort.Strings(nodes)
	nt := newTable("node", "open")
	for _, id := range nodes {
		nt.Row(id, strconv.Itoa(sol.NodeActivations[id]))
	}
	_, err := fmt.Fprintln(w, nt.Render())
	return err
}

func printModel(w io.Writer, name string, sol interpret.ModelSolution) error {
	if output == outputJSON {
		return writeJSON(w, sol)
	}
	if _, err := fmt.Fprintf(w, "%s  %s  objective %s\n", titleStyle.Render(name), status(sol.Status), objective(sol.Objective)); err != nil {
		return err
	}
	if len(sol.Values) == 0 {
		return nil
	}
	names := make([]string, 0, len(sol.Values))
	for n := range sol.Values {
		names = append(names, n)
	}
	sort.Strings(names)
	t := newTable("variable", "value")
	for _, n := range names {
		t.Row(n, num(sol.Values[n]))
	}
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func printScenarios(w io.Writer, list []scenario.Scenario) error {
	if output == outputJSON {
		type entry struct {
			Name    string `json:"name"`
			Kind    string `json:"kind"`
			Summary string `json:"summary"`
		}
		out := make([]entry, len(list))
		for i, sc := range list {
			out[i] = entry{sc.Name, kind(sc), sc.Summary}
		}
		return writeJSON(w, out)
	}
	t := newTable("name", "kind", "summary")
	for _, sc := range list {
		t.Row(sc.Name, kind(sc), sc.Summary)
	}
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func kind(sc scenario.Scenario) string {
	if sc.Network != nil {
		return "network"
	}
	return "model"
}

func printSweep(w io.Writer, pts []sweep.Point) error {
	if output == outputJSON {
		return writeJSON(w, pts)
	}
	t := newTable("pv capex", "capacity factor", "feed-in tariff", "status", "annual cost", "pv kW")
	for _, p := range pts {
		st := p.Error
		if st == "" {
			st = string(p.Solution.Status)
		}
		pv := "-"
		if v, ok := p.Solution.Values[scenario.DESPV]; ok {
			pv = strconv.FormatFloat(v, 'f', 2, 64)
		}
		t.Row(num(p.Params.PVCapex), num(p.Params.CapacityFactor), num(p.Params.FeedInTariff), st, objective(p.Solution.Objective), pv)
	}
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func printRuns(w io.Writer, recs []runlog.Record) error {
	if output == outputJSON {
		return writeJSON(w, recs)
	}
	t := newTable("time", "run", "problem", "status", "objective", "duration", "vars", "nodes")
	for _, r := range recs {
		st := string(r.Status)
		if r.Error != "" && st == "" {
			st = "error: " + r.Error
		}
		t.Row(r.Timestamp.Local().Format(time.DateTime), r.RunID, r.Problem, st, objective(r.Objective),
			r.Duration.Round(time.Microsecond).String(), strconv.Itoa(r.Variables), strconv.Itoa(r.Nodes))
	}
	_, err := fmt.Fprintln(w, t.Render())
	return err
}
