package model

// OperationKind is the closed set of pipeline operation kinds (spec §3).
type OperationKind int

const (
	KindUpdate OperationKind = iota
	KindDelete
	KindAggregate
	KindAppend
	KindOutput
)

func (k OperationKind) String() string {
	switch k {
	case KindUpdate:
		return "update"
	case KindDelete:
		return "delete"
	case KindAggregate:
		return "aggregate"
	case KindAppend:
		return "append"
	case KindOutput:
		return "output"
	default:
		return "unknown"
	}
}

// Assignment is one {column, expression} pair of an Update operation.
type Assignment struct {
	Column     string
	Expression string
}

// Join is one runtime-join descriptor attached to an Update (spec §4.4.6).
type Join struct {
	Alias          string
	DatasetID      string
	DatasetVersion *int // nil means "latest active at run time"
	OnExpression   string
}

// Aggregation is one {column, expression} pair of an Aggregate operation.
type Aggregation struct {
	Column     string
	Expression string
}

// UpdateArgs is the argument shape of a KindUpdate operation.
type UpdateArgs struct {
	Selector    string // empty means TRUE
	Assignments []Assignment
	Joins       []Join
}

// DeleteArgs is the argument shape of a KindDelete operation.
type DeleteArgs struct {
	Selector string
}

// AggregateArgs is the argument shape of a KindAggregate operation.
type AggregateArgs struct {
	GroupBy      []string
	Aggregations []Aggregation
	Selector     string
}

// AppendArgs is the argument shape of a KindAppend operation.
type AppendArgs struct {
	SourceDatasetID string
	Selector        string
	Aggregation     *AggregateArgs // reduction run over source rows, if present
}

// OutputArgs is the argument shape of a KindOutput operation.
type OutputArgs struct {
	Selector         string
	Columns          []string // nil means "all"
	IncludeDeleted   bool
	Destination      string // opaque, resolved via the resolver
	RegisterAsDataset *string
}

// Operation is a tagged record; exactly one of the Args fields is
// populated, matching Kind (spec §3 "Operation").
type Operation struct {
	Order int
	Kind  OperationKind

	Update    *UpdateArgs
	Delete    *DeleteArgs
	Aggregate *AggregateArgs
	Append    *AppendArgs
	Output    *OutputArgs
}
