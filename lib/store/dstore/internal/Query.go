package internal

// QueryType selects the read performed by the state machine.
type QueryType uint8

const (
	QueryTGet       QueryType = iota // value of a live entry
	QueryTHas                        // existence of a live entry
	QueryTGetDBInfo                  // engine metadata
)

func (q QueryType) String() string {
	switch q {
	case QueryTGet:
		return "Get"
	case QueryTHas:
		return "Has"
	case QueryTGetDBInfo:
		return "GetDBInfo"
	default:
		return "Unknown"
	}
}

// Query is passed to SyncRead. Has answers a bool, GetDBInfo a db.DatabaseInfo and Get a
// QueryResult.
type Query struct {
	Type QueryType
	Key  string // empty for GetDBInfo
	Now  int64  // unix nanos, entries expired at Now are invisible
}

// QueryResult answers QueryTGet.
type QueryResult struct {
	Ok    bool
	Value []byte
}
