package repository

import "errors"

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a unique constraint is violated.
	ErrAlreadyExists = errors.New("already exists")
)

const (
	// DefaultLimit caps listings when the caller does not provide a limit.
	DefaultLimit = 100
	// Unlimited disables the limit of a Page.
	Unlimited = -1
)

// Page is an offset/limit window over an ordered listing.
type Page struct {
	Offset int
	Limit  int
}

// Normalize clamps p to sane values.
func (p Page) Normalize() Page {
	if p.Offset < 0 {
		p.Offset = 0
	}
	switch {
	case p.Limit == 0:
		p.Limit = DefaultLimit
	case p.Limit < 0:
		p.Limit = Unlimited
	}
	return p
}

// Bounded reports whether p carries a limit.
func (p Page) Bounded() bool { return p.Limit > 0 }
