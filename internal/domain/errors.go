package domain

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrNoOrderBook  = errors.New("no order book data")
	ErrMarketClosed = errors.New("market closed")
	ErrInvalidOrder = errors.New("invalid order parameters")
	ErrNoSources    = errors.New("no signal sources configured")
	ErrContextDone  = errors.New("context cancelled")
)
