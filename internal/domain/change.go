package domain

// ChangeKind names what changed. Change signals carry no payload: receivers
// re-fetch the affected collection.
type ChangeKind string

const (
	TaskChanged ChangeKind = "TaskChanged"
	UserChanged ChangeKind = "UserChanged"
)

// ChangeKinds lists every kind in a stable order.
var ChangeKinds = []ChangeKind{TaskChanged, UserChanged}

// Valid reports whether k is a known change kind.
func (k ChangeKind) Valid() bool {
	return k == TaskChanged || k == UserChanged
}

func (k ChangeKind) String() string { return string(k) }
