package typespec

// Factory is the node arena. Every node gets a stable index when created;
// objects reserve theirs before their members are walked so a cycle can
// point back at them.
type Factory struct {
	nodes []Node
}

func (f *Factory) Create(n Node) Ref {
	f.nodes = append(f.nodes, n)
	return Ref(len(f.nodes) - 1)
}

func (f *Factory) reserve() Ref {
	return f.Create(nil)
}

func (f *Factory) fill(r Ref, n Node) {
	f.nodes[r] = n
}

func (f *Factory) Node(r Ref) Node {
	if int(r) < 0 || int(r) >= len(f.nodes) {
		return nil
	}
	return f.nodes[r]
}

func (f *Factory) Len() int { return len(f.nodes) }

// Nodes returns the arena in index order.
func (f *Factory) Nodes() []Node {
	return append([]Node(nil), f.nodes...)
}
