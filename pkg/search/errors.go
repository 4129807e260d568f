package search

import (
	"errors"
	"fmt"
)

// ErrBuild is matched by every BuildError via errors.Is.
var ErrBuild = errors.New("automaton build failed")

// BuildError reports that the multi-pattern automaton could not be built
// from the anchor set. No partial results accompany it.
type BuildError struct {
	Anchors int   // number of anchors handed to the automaton
	Err     error // cause reported by the automaton library
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("building automaton over %d anchors: %v", e.Anchors, e.Err)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrBuild) true for build errors.
func (e *BuildError) Is(target error) bool {
	return target == ErrBuild
}
