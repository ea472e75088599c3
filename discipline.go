package gspawn

// Discipline decides which duplicated references the server keeps after
// handing a connection to a worker.
type Discipline struct {
	// RetainConns keeps the parent's reference to every dispatched
	// connection. Clients then never see the connection close, and the
	// server eventually runs out of descriptors.
	RetainConns bool
	// InheritListener hands a duplicate of the listening socket to every
	// worker process.
	InheritListener bool
}

var (
	// Correct releases every reference the receiving context does not use.
	Correct = Discipline{}
	// Defective keeps both duplicates, leaking descriptors in the parent
	// and holding the listener open in every worker.
	Defective = Discipline{RetainConns: true, InheritListener: true}
)

// String names the preset d matches, if any.
func (d Discipline) String() string {
	switch d {
	case Correct:
		return "correct"
	case Defective:
		return "defective"
	}
	return "custom"
}
