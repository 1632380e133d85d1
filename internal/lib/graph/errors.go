package graph

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedGraph is matched by every load-time validation failure
var ErrMalformedGraph = errors.New("malformed road graph")

// MalformedGraphError lists every problem found while loading a graph
type MalformedGraphError struct {
	Problems []string
}

func (e *MalformedGraphError) Error() string {
	if len(e.Problems) == 1 {
		return fmt.Sprintf("%s: %s", ErrMalformedGraph, e.Problems[0])
	}
	return fmt.Sprintf("%s: %d problems: %s", ErrMalformedGraph, len(e.Problems), strings.Join(e.Problems, "; "))
}

func (e *MalformedGraphError) Unwrap() error {
	return ErrMalformedGraph
}

func malformed(problems ...string) *MalformedGraphError {
	return &MalformedGraphError{Problems: problems}
}
