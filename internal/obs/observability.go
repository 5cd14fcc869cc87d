package obs

import "github.com/rs/zerolog"

// Observability bundles the two ambient seams every constructor in this
// module accepts: a logger and an optional metrics set. It travels from a
// Context down through the RPC skeleton to the transport backends.
type Observability struct {
	Logger  zerolog.Logger
	Metrics *Metrics
}

// Nop is the zero-cost default: a discarding logger and a nil Metrics set,
// whose IncX/ObserveX methods are nil-receiver safe.
func Nop() Observability {
	return Observability{Logger: zerolog.Nop()}
}
