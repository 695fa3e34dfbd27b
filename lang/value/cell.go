package value

// Cell is a heap box for a single local variable that has been captured by
// a nested closure (spec §4.2 "Closures and cell capture"). Every read/write
// of a captured local goes through its Cell once the compiler has promoted
// it, so the closure and the enclosing frame observe the same mutations.
//
// Grounded on the teacher's lang/machine/cell.go, which is exactly this:
// a one-field box shared by pointer between frames.
type Cell struct {
	v Value
}

// NewCell returns a cell initialized to v.
func NewCell(v Value) *Cell { return &Cell{v: v} }

func (c *Cell) Get() Value  { return c.v }
func (c *Cell) Set(v Value) { c.v = v }

func (c *Cell) String() string { return "<cell " + c.v.String() + ">" }
func (*Cell) Type() string     { return "cell" }
func (c *Cell) Truth() bool    { return c.v.Truth() }
