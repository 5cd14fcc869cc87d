package tweak

import "github.com/cogentembedded/tweak-go/variant"

// Snapshot is an owned, deep-copied view of one item at a moment in time.
// Go's garbage collector frees it like any other value; there is no
// separate release step.
type Snapshot struct {
	ID          uint64
	URI         string
	Description string
	Default     variant.Value
	Current     variant.Value
}
