package ghost

import (
	"errors"
	"testing"
)

type fakeEntity struct {
	id        uint
	ghosted   *uint
	published bool
	address   string
}

func (f *fakeEntity) EntityID() uint        { return f.id }
func (f *fakeEntity) GhostTarget() *uint    { return f.ghosted }
func (f *fakeEntity) Published() bool       { return f.published }
func (f *fakeEntity) PublicAddress() string { return f.address }

func lookupFrom(entities ...*fakeEntity) Lookup {
	return func(id uint) (Entity, error) {
		for _, e := range entities {
			if e.id == id {
				return e, nil
			}
		}
		return nil, nil
	}
}

func ref(id uint) *uint { return &id }

func TestResolveDirect(t *testing.T) {
	e := &fakeEntity{id: 1, published: true, address: "/about"}

	res, err := Resolve(e, lookupFrom(e))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Kind != Direct {
		t.Errorf("kind = %v, want Direct", res.Kind)
	}
}

func TestResolveSelfLoop(t *testing.T) {
	e := &fakeEntity{id: 1, ghosted: ref(1), published: true, address: "/loop"}

	res, err := Resolve(e, lookupFrom(e))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Kind != NotFound {
		t.Errorf("self-referential ghost resolved to %v, want NotFound", res.Kind)
	}
}

func TestResolveMissingTarget(t *testing.T) {
	e := &fakeEntity{id: 1, ghosted: ref(99), published: true}

	res, err := Resolve(e, lookupFrom(e))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Kind != NotFound {
		t.Errorf("ghost with missing target resolved to %v, want NotFound", res.Kind)
	}
}

func TestResolveUnpublishedTarget(t *testing.T) {
	target := &fakeEntity{id: 2, published: false, address: "/secret"}
	e := &fakeEntity{id: 1, ghosted: ref(2), published: true}

	res, err := Resolve(e, lookupFrom(e, target))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Kind != NotFound {
		t.Errorf("ghost of unpublished target resolved to %v, want NotFound", res.Kind)
	}
}

func TestResolveRedirect(t *testing.T) {
	target := &fakeEntity{id: 2, published: true, address: "/target"}
	e := &fakeEntity{id: 1, ghosted: ref(2), published: true, address: "/alias"}

	res, err := Resolve(e, lookupFrom(e, target))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Kind != Redirect {
		t.Fatalf("kind = %v, want Redirect", res.Kind)
	}
	if res.Location != "/target" {
		t.Errorf("location = %q, want /target", res.Location)
	}
}

func TestResolveSingleHop(t *testing.T) {
	// A ghosts B, B ghosts C. Resolving A must redirect to B's address and
	// never follow the chain to C.
	c := &fakeEntity{id: 3, published: true, address: "/c"}
	b := &fakeEntity{id: 2, ghosted: ref(3), published: true, address: "/b"}
	a := &fakeEntity{id: 1, ghosted: ref(2), published: true, address: "/a"}

	res, err := Resolve(a, lookupFrom(a, b, c))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Kind != Redirect || res.Location != "/b" {
		t.Errorf("got (%v, %q), want single-hop redirect to /b", res.Kind, res.Location)
	}
}

func TestResolveLookupError(t *testing.T) {
	e := &fakeEntity{id: 1, ghosted: ref(2), published: true}
	boom := errors.New("storage down")

	_, err := Resolve(e, func(uint) (Entity, error) { return nil, boom })
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped storage error", err)
	}
}
