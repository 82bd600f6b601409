package bt

// ResultKind tags the outcome of a single Execute call.
type ResultKind uint8

const (
	// Continuing means the tree may go on with the next active node.
	Continuing ResultKind = iota
	// StructureChanged means the active set was replaced and the tick must stop.
	StructureChanged
	// Faulted means a hook failed; Err holds the cause.
	Faulted
)

func (k ResultKind) String() string {
	switch k {
	case Continuing:
		return "continuing"
	case StructureChanged:
		return "structure-changed"
	case Faulted:
		return "faulted"
	default:
		return "unknown"
	}
}

type Result struct {
	Kind ResultKind
	Err  error
}

func continuing() Result       { return Result{Kind: Continuing} }
func structureChanged() Result { return Result{Kind: StructureChanged} }
func faulted(err error) Result { return Result{Kind: Faulted, Err: err} }
