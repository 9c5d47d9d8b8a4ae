// Package ghost decides whether a content entity is rendered directly or
// redirects the reader to the entity it aliases.
package ghost

// Entity is the minimal view of a page or post the resolver needs.
type Entity interface {
	EntityID() uint
	GhostTarget() *uint
	Published() bool
	PublicAddress() string
}

// Lookup fetches an entity by ID. It returns (nil, nil) when no entity
// exists; errors are reserved for storage failures.
type Lookup func(id uint) (Entity, error)

// Kind is the outcome of resolving an entity.
type Kind int

const (
	// Direct means the entity has no ghost reference and renders itself.
	Direct Kind = iota
	// Redirect means the reader should be sent to Resolution.Location.
	Redirect
	// NotFound covers the guard cases: self-referential ghosts and ghosts
	// whose target is missing or unpublished. Responding 404 instead of
	// redirecting prevents redirect loops and does not reveal whether an
	// unpublished target exists.
	NotFound
)

// Resolution is the result of Resolve.
type Resolution struct {
	Kind     Kind
	Location string // set only for Redirect
	Target   Entity // set only for Redirect
}

// Resolve evaluates the ghost state machine for a single entity. Exactly one
// hop is followed: if the target is itself a ghost, the redirect still points
// at the target's own address and the next request resolves it afresh.
func Resolve(e Entity, lookup Lookup) (Resolution, error) {
	ref := e.GhostTarget()
	if ref == nil {
		return Resolution{Kind: Direct}, nil
	}
	if *ref == e.EntityID() {
		return Resolution{Kind: NotFound}, nil
	}

	target, err := lookup(*ref)
	if err != nil {
		return Resolution{}, err
	}
	if target == nil || !target.Published() {
		return Resolution{Kind: NotFound}, nil
	}
	return Resolution{Kind: Redirect, Location: target.PublicAddress(), Target: target}, nil
}
