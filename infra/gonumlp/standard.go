package gonumlp

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/kilianp07/flownet/core/lpmodel"
	"github.com/kilianp07/flownet/core/solver"
)

// colRef says that model variable x contributes sign·y[col] on top of its
// base value.
type colRef struct {
	col  int
	sign float64
}

// standardForm is min cᵀy s.t. Ay = b, y ≥ 0, together with the mapping
// x = base + Σ sign·y back to model variables.
type standardForm struct {
	a      *mat.Dense
	b      []float64
	c      []float64
	base   []float64
	refs   [][]colRef
	offset float64
	// sense is +1 for minimisation and -1 for maximisation; the standard
	// form always minimises sense·objective.
	sense float64
}

const zeroTol = 1e-12

// standardize converts m, with the per-variable bounds of the current
// branch-and-bound node, into standard form. A non-optimal code means the
// form could not be built because presolve already proved the outcome.
func standardize(m *lpmodel.Model, lower, upper []float64, rankTol float64) (*standardForm, solver.Code) {
	n := len(m.Variables)
	sf := &standardForm{base: make([]float64, n), refs: make([][]colRef, n), sense: 1}
	if m.Objective.Sense == lpmodel.Maximize {
		sf.sense = -1
	}

	type boundRow struct {
		col int
		rhs float64
	}
	var (
		nStruct int
		bounds  []boundRow
	)
	addCol := func(v int, sign float64) int {
		sf.refs[v] = append(sf.refs[v], colRef{col: nStruct, sign: sign})
		nStruct++
		return nStruct - 1
	}
	for i := 0; i < n; i++ {
		l, u := lower[i], upper[i]
		switch {
		case l > u:
			return nil, solver.StatusInfeasible
		case l == u:
			sf.base[i] = l
		case !math.IsInf(l, -1):
			sf.base[i] = l
			col := addCol(i, 1)
			if !math.IsInf(u, 1) {
				bounds = append(bounds, boundRow{col: col, rhs: u - l})
			}
		case !math.IsInf(u, 1):
			sf.base[i] = u
			addCol(i, -1)
		default:
			addCol(i, 1)
			addCol(i, -1)
		}
	}

	var (
		rows [][]float64
		ops  []lpmodel.Op
		rhs  []float64
	)
	push := func(r []float64, op lpmodel.Op, b float64) solver.Code {
		if isZero(r) {
			if !trivially(op, b) {
				return solver.StatusInfeasible
			}
			return solver.StatusOptimal
		}
		rows = append(rows, r)
		ops = append(ops, op)
		rhs = append(rhs, b)
		return solver.StatusOptimal
	}
	for _, c := range m.Constraints {
		r := make([]float64, nStruct)
		b := c.RHS
		for _, t := range c.Terms {
			b -= t.Coef * sf.base[t.Var]
			for _, ref := range sf.refs[t.Var] {
				r[ref.col] += t.Coef * ref.sign
			}
		}
		if code := push(r, c.Op, b); code != solver.StatusOptimal {
			return nil, code
		}
	}
	for _, bd := range bounds {
		r := make([]float64, nStruct)
		r[bd.col] = 1
		push(r, lpmodel.LE, bd.rhs)
	}

	cost := make([]float64, nStruct)
	sf.offset = sf.sense * m.Objective.Offset
	for _, t := range m.Objective.Terms {
		sf.offset += sf.sense * t.Coef * sf.base[t.Var]
		for _, ref := range sf.refs[t.Var] {
			cost[ref.col] += sf.sense * t.Coef * ref.sign
		}
	}

	// Columns that appear in no row are fixed at zero, or make the problem
	// unbounded when they improve the objective.
	used := make([]bool, nStruct)
	for _, r := range rows {
		for j, v := range r {
			if v != 0 {
				used[j] = true
			}
		}
	}
	remap := make([]int, nStruct)
	kept := 0
	for j := range remap {
		if !used[j] {
			if cost[j] < 0 {
				return nil, solver.StatusUnbounded
			}
			remap[j] = -1
			continue
		}
		remap[j] = kept
		kept++
	}
	for v := range sf.refs {
		refs := sf.refs[v][:0]
		for _, ref := range sf.refs[v] {
			if remap[ref.col] >= 0 {
				refs = append(refs, colRef{col: remap[ref.col], sign: ref.sign})
			}
		}
		sf.refs[v] = refs
	}

	slacks := 0
	for _, op := range ops {
		if op != lpmodel.EQ {
			slacks++
		}
	}
	total := kept + slacks
	dense := make([][]float64, len(rows))
	slack := kept
	for i, r := range rows {
		row := make([]float64, total)
		for j, v := range r {
			if remap[j] >= 0 {
				row[remap[j]] = v
			}
		}
		switch ops[i] {
		case lpmodel.LE:
			row[slack] = 1
			slack++
		case lpmodel.GE:
			row[slack] = -1
			slack++
		}
		scale := maxAbs(row)
		if rhs[i] < 0 {
			scale = -scale
		}
		for j := range row {
			row[j] /= scale
		}
		rhs[i] /= scale
		dense[i] = row
	}

	keep, ok := independentRows(dense, rhs, rankTol)
	if !ok {
		return nil, solver.StatusInfeasible
	}
	sf.c = make([]float64, total)
	for j, v := range cost {
		if remap[j] >= 0 {
			sf.c[remap[j]] = v
		}
	}
	sf.b = make([]float64, len(keep))
	if len(keep) > 0 {
		sf.a = mat.NewDense(len(keep), total, nil)
		for i, r := range keep {
			sf.a.SetRow(i, dense[r])
			sf.b[i] = rhs[r]
		}
	}
	return sf, solver.StatusOptimal
}

// values maps a standard-form point back to model variables.
func (sf *standardForm) values(y []float64) []float64 {
	x := make([]float64, len(sf.base))
	for v := range x {
		x[v] = sf.base[v]
		for _, ref := range sf.refs[v] {
			x[v] += ref.sign * y[ref.col]
		}
	}
	return x
}

// independentRows runs Gaussian elimination with partial pivoting and
// returns the original indices of a maximal set of linearly independent
// rows. ok is false when a dependent row contradicts the others.
func independentRows(rows [][]float64, rhs []float64, tol float64) (keep []int, ok bool) {
	m := len(rows)
	if m == 0 {
		return nil, true
	}
	n := len(rows[0])
	work := make([][]float64, m)
	b := make([]float64, m)
	perm := make([]int, m)
	for i := range rows {
		work[i] = append([]float64(nil), rows[i]...)
		b[i] = rhs[i]
		perm[i] = i
	}
	rank := 0
	for col := 0; col < n && rank < m; col++ {
		pivot, best := -1, tol
		for i := rank; i < m; i++ {
			if v := math.Abs(work[i][col]); v > best {
				pivot, best = i, v
			}
		}
		if pivot < 0 {
			continue
		}
		work[rank], work[pivot] = work[pivot], work[rank]
		b[rank], b[pivot] = b[pivot], b[rank]
		perm[rank], perm[pivot] = perm[pivot], perm[rank]
		for i := rank + 1; i < m; i++ {
			f := work[i][col] / work[rank][col]
			if f == 0 {
				continue
			}
			for j := col; j < n; j++ {
				work[i][j] -= f * work[rank][j]
			}
			b[i] -= f * b[rank]
		}
		rank++
	}
	scale := 1.0
	for _, v := range rhs {
		scale = math.Max(scale, math.Abs(v))
	}
	for i := rank; i < m; i++ {
		if math.Abs(b[i]) > 1e-9*scale {
			return nil, false
		}
	}
	keep = append(keep, perm[:rank]...)
	sort.Ints(keep)
	return keep, true
}

func trivially(op lpmodel.Op, rhs float64) bool {
	tol := 1e-9 * math.Max(1, math.Abs(rhs))
	switch op {
	case lpmodel.LE:
		return 0 <= rhs+tol
	case lpmodel.GE:
		return 0 >= rhs-tol
	default:
		return math.Abs(rhs) <= tol
	}
}

func isZero(r []float64) bool {
	for _, v := range r {
		if math.Abs(v) > zeroTol {
			return false
		}
	}
	return true
}

func maxAbs(r []float64) float64 {
	m := 0.0
	for _, v := range r {
		m = math.Max(m, math.Abs(v))
	}
	if m == 0 {
		return 1
	}
	return m
}
