// Package models defines the request and response types shared by the engine, server and CLI.
package models

// Product is one indexable unit: an opaque identifier and its canonical, already-cleaned text.
// The same text is embedded by the document embedder and handed to the reranker at query time.
type Product struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// AppendRequest is the body of an append call.
type AppendRequest struct {
	Products []Product `json:"products"`
}

// AppendResult reports a committed append batch.
type AppendResult struct {
	Appended int    `json:"appended"`
	Total    int    `json:"total"`
	BatchID  string `json:"batch_id,omitempty"`
}
