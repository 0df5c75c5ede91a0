package service

import (
	"errors"
	"fmt"
)

type Stage string

const (
	StageRetrieval  Stage = "retrieval"
	StageGeneration Stage = "generation"
)

var (
	// ErrIndex marks a failure while building the index at startup.
	ErrIndex         = errors.New("index error")
	ErrEmptyQuestion = errors.New("question is empty")
)

// StageError keeps track of which pipeline stage failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
