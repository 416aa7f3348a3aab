package codec

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// DefaultSID is the schema identifier of the fetch RPC in the compiled
// car-model, and doubles as the CoAP resource path.
const DefaultSID int64 = 60001

// ErrDecode is the base class for any malformed or out-of-range
// CompactRecord payload.
var ErrDecode = errors.New("malformed status record")

// Template is a compiled CORECONF stencil: a nested integer-keyed map
// with exactly two leaves of interest, the vehicle name and the status
// code. The tree is read-only after construction; Encode always works
// on a private copy so concurrent callers cannot see each other's
// leaf writes.
type Template struct {
	root     map[int64]any
	namePath []int64
	codePath []int64
}

// NewTemplate wraps a compiled stencil tree. Both leaf paths must
// resolve within the tree or construction fails.
func NewTemplate(root map[int64]any, namePath, codePath []int64) (*Template, error) {
	t := &Template{root: root, namePath: namePath, codePath: codePath}
	if len(namePath) == 0 || len(codePath) == 0 {
		return nil, errors.New("template: empty leaf path")
	}
	for _, p := range [][]int64{namePath, codePath} {
		if _, err := walk(root, p); err != nil {
			return nil, fmt.Errorf("template: leaf path %v unreachable: %w", p, err)
		}
	}
	return t, nil
}

// DefaultTemplate builds the stencil the schema compiler emits for the
// car-model fetch output: name at <SID>/4/1/2, code at <SID>/4/1/1.
func DefaultTemplate() *Template {
	root := map[int64]any{
		DefaultSID: map[int64]any{
			4: map[int64]any{
				1: map[int64]any{
					1: int64(-1),
					2: "",
				},
			},
		},
	}
	t, err := NewTemplate(root,
		[]int64{DefaultSID, 4, 1, 2},
		[]int64{DefaultSID, 4, 1, 1})
	if err != nil {
		panic(err) // static tree, cannot fail
	}
	return t
}

// Encode returns a fresh CBOR-encoded CompactRecord with both leaves
// rewritten. The shared template tree is never touched.
func (t *Template) Encode(name string, status LightStatus) ([]byte, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: code %d", ErrUnknownStatus, int(status))
	}
	clone := cloneTree(t.root)
	if err := setLeaf(clone, t.namePath, name); err != nil {
		return nil, err
	}
	if err := setLeaf(clone, t.codePath, int64(status)); err != nil {
		return nil, err
	}
	return cbor.Marshal(clone)
}

// EncodeName is Encode with a name-table lookup instead of a code.
func (t *Template) EncodeName(name, statusName string) ([]byte, error) {
	s, err := StatusFromName(statusName)
	if err != nil {
		return nil, err
	}
	return t.Encode(name, s)
}

// Decode parses a CompactRecord and resolves both leaves against the
// status table. Structural mismatches, a missing leaf, and an
// out-of-range code all classify as ErrDecode.
func (t *Template) Decode(data []byte) (Envelope, error) {
	var tree any
	if err := cbor.Unmarshal(data, &tree); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	nameLeaf, err := walk(tree, t.namePath)
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: name leaf: %v", ErrDecode, err)
	}
	name, ok := nameLeaf.(string)
	if !ok {
		return Envelope{}, fmt.Errorf("%w: name leaf is %T, want string", ErrDecode, nameLeaf)
	}
	codeLeaf, err := walk(tree, t.codePath)
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: code leaf: %v", ErrDecode, err)
	}
	code, ok := asInt64(codeLeaf)
	if !ok {
		return Envelope{}, fmt.Errorf("%w: code leaf is %T, want integer", ErrDecode, codeLeaf)
	}
	status := LightStatus(code)
	if !status.Valid() {
		return Envelope{}, fmt.Errorf("%w: code %d outside 0-%d", ErrDecode, code, numStatuses-1)
	}
	return Envelope{Name: name, Status: status}, nil
}

// cloneTree deep-copies the nested map so an encode never writes into
// shared structure.
func cloneTree(m map[int64]any) map[int64]any {
	out := make(map[int64]any, len(m))
	for k, v := range m {
		if child, ok := v.(map[int64]any); ok {
			out[k] = cloneTree(child)
			continue
		}
		out[k] = v
	}
	return out
}

func setLeaf(m map[int64]any, path []int64, v any) error {
	for _, k := range path[:len(path)-1] {
		child, ok := m[k].(map[int64]any)
		if !ok {
			return fmt.Errorf("template: no subtree at key %d", k)
		}
		m = child
	}
	m[path[len(path)-1]] = v
	return nil
}

// walk descends a decoded CBOR tree. The CBOR decoder hands back
// map[any]any with uint64 keys for non-negative integers, so both key
// widths are tried at every step; the template's own map[int64]any is
// accepted too so NewTemplate can validate paths before any decode.
func walk(node any, path []int64) (any, error) {
	for _, k := range path {
		switch m := node.(type) {
		case map[int64]any:
			v, ok := m[k]
			if !ok {
				return nil, fmt.Errorf("missing key %d", k)
			}
			node = v
		case map[any]any:
			v, ok := m[uint64(k)]
			if !ok {
				v, ok = m[k]
			}
			if !ok {
				return nil, fmt.Errorf("missing key %d", k)
			}
			node = v
		default:
			return nil, fmt.Errorf("unexpected node %T at key %d", node, k)
		}
	}
	return node, nil
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	case int:
		return int64(n), true
	}
	return 0, false
}
