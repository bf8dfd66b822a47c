package retrieval

import "errors"

var (
	// ErrInvalidInput is returned for empty queries, empty product ids and malformed requests.
	ErrInvalidInput = errors.New("invalid input")
	// ErrDuplicateID is returned when an append batch repeats an id or contains one already indexed.
	ErrDuplicateID = errors.New("duplicate product id")
	// ErrCorrupted is returned after a failed rollback left the index and identifier map out of
	// step. Only Reload clears it.
	ErrCorrupted = errors.New("index state corrupted; reload required")
)
