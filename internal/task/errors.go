package task

import "errors"

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrAlreadyExecuted = errors.New("task already executed")
	ErrTaskNotStarted  = errors.New("task not started")
	ErrNotOwner        = errors.New("task owned by another process")
	ErrProcessNotFound = errors.New("task process not found")
	ErrSpawnFailure    = errors.New("task spawn failed")
)
