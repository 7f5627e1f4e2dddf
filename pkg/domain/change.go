package domain

// Action indicates the type of modification performed on the collection.
type Action string

// Change actions published to collection observers.
const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	// ActionClear indicates the whole collection was emptied.
	ActionClear Action = "clear"
	// ActionMerge indicates a remote snapshot was merged in.
	ActionMerge Action = "merge"
	// ActionLoad indicates the collection was restored from local storage.
	ActionLoad Action = "load"
)

// Change describes one committed mutation. Before and After are nil when not
// applicable to the action.
type Change struct {
	Action Action
	ID     string
	Before *PlacedObject
	After  *PlacedObject
}
