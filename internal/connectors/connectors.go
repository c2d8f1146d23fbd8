package connectors

import "repricer/internal"

// Source fetches inbound price-list documents from somewhere: a
// mailbox, a watched directory.
type Source interface {
	Fetch(label string, max int) ([]internal.InboundDocument, error)
}
