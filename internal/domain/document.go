package domain

import "context"

// Document is a rendered artifact ready for storage
type Document struct {
	Key         string
	Body        []byte
	ContentType string
	Metadata    map[string]string
}

// DocumentStore keeps rendered invoices outside the local disk
type DocumentStore interface {
	// Put stores the document and returns a URL the client can open
	Put(ctx context.Context, doc *Document) (string, error)
}
