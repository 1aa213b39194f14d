package domain

import "errors"

var (
	ErrInvalidID          = errors.New("invalid id")
	ErrInvalidName        = errors.New("invalid name")
	ErrInvalidStartDate   = errors.New("invalid start date")
	ErrInvalidRelation    = errors.New("invalid relation type")
	ErrInvalidPredecessor = errors.New("invalid predecessor")
	ErrInvalidEventKind   = errors.New("invalid run event kind")
	ErrInvalidActivity    = errors.New("invalid activity")
	ErrInvalidGraph       = errors.New("invalid activity graph")
)
