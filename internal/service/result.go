package service

// ResultKind tells a caller how a lookup ended. Resolvers return it
// instead of failing so that one bad lookup never aborts a delta.
type ResultKind int

const (
	ResultFound ResultKind = iota
	ResultEmpty
	ResultFailed
)

func (k ResultKind) String() string {
	switch k {
	case ResultFound:
		return "found"
	case ResultEmpty:
		return "empty"
	case ResultFailed:
		return "failed"
	}
	return "unknown"
}
