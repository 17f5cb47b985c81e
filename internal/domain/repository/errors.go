package repository

import "errors"

var (
	// ErrDuplicateTick means a tick with the same (symbol, timestamp)
	// is already stored. Callers treat it as benign.
	ErrDuplicateTick = errors.New("duplicate tick")

	// ErrUnknownSymbol means the source does not recognize the symbol.
	// Not retriable; any other source error is.
	ErrUnknownSymbol = errors.New("unknown symbol")
)
