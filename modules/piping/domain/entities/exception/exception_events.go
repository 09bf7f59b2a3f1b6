package exception

// RaisedEvent is published when a new record enters the needs-review queue.
type RaisedEvent struct {
	Record *Record
}
