// Package assembly turns weak form patterns into global sparse matrix and
// vector contributions: basis evaluators with geometric pushforward, the
// pattern descriptors, and the entity loop that forms and scatters local
// element contributions.
package assembly

import (
	"fmt"

	"github.com/james-bowman/sparse"

	"github.com/notargets/gofea/fespace"
	"github.com/notargets/gofea/utils"
)

// Block names one unknown field's slice of a global vector or matrix axis.
type Block struct {
	Name   string
	Offset int
	NDofs  int
}

// FEVector is a flat coefficient vector partitioned into named blocks, one
// per unknown field. Created once per solve and refilled in place.
type FEVector struct {
	Data   []float64
	Blocks []Block
}

func NewFEVector(names []string, spaces []*fespace.Space) (v *FEVector) {
	if len(names) != len(spaces) {
		panic(fmt.Errorf("FEVector: %d names for %d spaces", len(names), len(spaces)))
	}
	v = &FEVector{}
	var offset int
	for i, sp := range spaces {
		v.Blocks = append(v.Blocks, Block{Name: names[i], Offset: offset, NDofs: sp.NDofs()})
		offset += sp.NDofs()
	}
	v.Data = make([]float64, offset)
	return
}

func (v *FEVector) NDofs() int { return len(v.Data) }

// Block returns the coefficient slice of block i, aliasing Data.
func (v *FEVector) Block(i int) []float64 {
	b := v.Blocks[i]
	return v.Data[b.Offset : b.Offset+b.NDofs]
}

func (v *FEVector) BlockByName(name string) []float64 {
	for i, b := range v.Blocks {
		if b.Name == name {
			return v.Block(i)
		}
	}
	panic(fmt.Errorf("no block named %q", name))
}

func (v *FEVector) Zero() {
	for i := range v.Data {
		v.Data[i] = 0
	}
}

func (v *FEVector) Copy() (r *FEVector) {
	r = &FEVector{
		Data:   make([]float64, len(v.Data)),
		Blocks: v.Blocks,
	}
	copy(r.Data, v.Data)
	return
}

// FEMatrix is the global sparse system matrix with the same block structure
// on both axes. Writes accumulate in a DOK staging structure; Flush must be
// called before the matrix is read or solved.
type FEMatrix struct {
	DOK    *utils.DOK
	Blocks []Block
}

func NewFEMatrix(v *FEVector) (m *FEMatrix) {
	n := v.NDofs()
	m = &FEMatrix{
		DOK:    utils.NewDOK(n, n),
		Blocks: v.Blocks,
	}
	return
}

func (m *FEMatrix) NDofs() int { r, _ := m.DOK.Dims(); return r }

func (m *FEMatrix) Add(i, j int, val float64) { m.DOK.Add(i, j, val) }

func (m *FEMatrix) Zero() { m.DOK.Zero() }

func (m *FEMatrix) Flush() *sparse.CSR { return m.DOK.Flush() }

// BlockOffset returns the global dof offset of the named block.
func (m *FEMatrix) BlockOffset(name string) int {
	for _, b := range m.Blocks {
		if b.Name == name {
			return b.Offset
		}
	}
	panic(fmt.Errorf("no block named %q", name))
}
