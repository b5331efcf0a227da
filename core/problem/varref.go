package problem

import (
	"fmt"
	"strings"
)

// VarKind distinguishes the variables the builder generates.
type VarKind string

const (
	VarFlow   VarKind = "flow"
	VarActive VarKind = "active"
	VarOpen   VarKind = "open"
)

// VarRef names a generated model variable. Flow and active variables are
// keyed by arc; open variables by node.
type VarRef struct {
	Kind VarKind
	Arc  ArcKey
	Node string
}

// Flow references the flow variable of arc from->to.
func Flow(from, to string) VarRef { return VarRef{Kind: VarFlow, Arc: ArcKey{From: from, To: to}} }

// Active references the activation binary of arc from->to.
func Active(from, to string) VarRef {
	return VarRef{Kind: VarActive, Arc: ArcKey{From: from, To: to}}
}

// Open references the activation binary of a node.
func Open(node string) VarRef { return VarRef{Kind: VarOpen, Node: node} }

// String renders the reference as "flow[A,B]", "active[A,B]" or "open[N]".
// It is also the name of the variable in the generated model.
func (v VarRef) String() string {
	if v.Kind == VarOpen {
		return fmt.Sprintf("open[%s]", v.Node)
	}
	return fmt.Sprintf("%s[%s,%s]", v.Kind, v.Arc.From, v.Arc.To)
}

// ParseVarRef parses the String form.
func ParseVarRef(s string) (VarRef, error) {
	s = strings.TrimSpace(s)
	open := strings.IndexByte(s, '[')
	if open <= 0 || !strings.HasSuffix(s, "]") {
		return VarRef{}, fmt.Errorf("invalid variable reference %q", s)
	}
	kind := VarKind(s[:open])
	args := strings.Split(s[open+1:len(s)-1], ",")
	for i := range args {
		args[i] = strings.TrimSpace(args[i])
		if args[i] == "" {
			return VarRef{}, fmt.Errorf("invalid variable reference %q", s)
		}
	}
	switch kind {
	case VarFlow, VarActive:
		if len(args) != 2 {
			return VarRef{}, fmt.Errorf("%s reference %q needs two node ids", kind, s)
		}
		return VarRef{Kind: kind, Arc: ArcKey{From: args[0], To: args[1]}}, nil
	case VarOpen:
		if len(args) != 1 {
			return VarRef{}, fmt.Errorf("open reference %q needs one node id", s)
		}
		return Open(args[0]), nil
	}
	return VarRef{}, fmt.Errorf("unknown variable kind %q", kind)
}

// MarshalText encodes the reference in its String form.
func (v VarRef) MarshalText() ([]byte, error) { return []byte(v.String()), nil }

// UnmarshalText decodes the String form.
func (v *VarRef) UnmarshalText(b []byte) error {
	ref, err := ParseVarRef(string(b))
	if err != nil {
		return err
	}
	*v = ref
	return nil
}
