// Package intern maps functor and variable names to small stable integers.
//
// Functors (name and arity) and variables live in independent namespaces, so
// a variable and an atom may share the same text. An Interner may be shared by
// several compilers and machines; interning is serialized by a single-writer
// lock, while lookups of known names only take the read lock.
package intern

import (
	"fmt"
	"sync"

	"github.com/prologkit/warren/errors"
)

// FunctorID identifies a functor name and arity within an Interner.
type FunctorID int32

// VarID identifies a variable name within an Interner.
type VarID int32

// Functor is the textual identity of a FunctorID.
type Functor struct {
	Name  string
	Arity int
}

func (f Functor) String() string {
	return fmt.Sprintf("%s/%d", f.Name, f.Arity)
}

// ErrUnknownIdentifier is matched by every UnknownIdentifierError.
var ErrUnknownIdentifier = errors.New("unknown identifier")

// UnknownIdentifierError is returned when resolving an id that was never
// issued by the Interner.
type UnknownIdentifierError struct {
	Namespace string
	ID        int32
}

func (err *UnknownIdentifierError) Error() string {
	return fmt.Sprintf("unknown %s id %d", err.Namespace, err.ID)
}

// Is makes errors.Is(err, ErrUnknownIdentifier) hold.
func (err *UnknownIdentifierError) Is(target error) bool {
	return target == ErrUnknownIdentifier
}

// Interner is a bijective table between names and ids.
type Interner struct {
	mu         sync.RWMutex
	functors   []Functor
	functorIDs map[Functor]FunctorID
	vars       []string
	varIDs     map[string]VarID
}

// New returns an empty Interner.
func New() *Interner {
	return &Interner{
		functorIDs: make(map[Functor]FunctorID),
		varIDs:     make(map[string]VarID),
	}
}

// Functor returns the id for name/arity, registering it if needed.
func (in *Interner) Functor(name string, arity int) FunctorID {
	f := Functor{name, arity}
	in.mu.RLock()
	id, ok := in.functorIDs[f]
	in.mu.RUnlock()
	if ok {
		return id
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	if id, ok := in.functorIDs[f]; ok {
		return id
	}
	id = FunctorID(len(in.functors))
	in.functors = append(in.functors, f)
	in.functorIDs[f] = id
	return id
}

// Atom returns the id for the 0-arity functor name.
func (in *Interner) Atom(name string) FunctorID {
	return in.Functor(name, 0)
}

// Var returns the id for a variable name, registering it if needed.
func (in *Interner) Var(name string) VarID {
	in.mu.RLock()
	id, ok := in.varIDs[name]
	in.mu.RUnlock()
	if ok {
		return id
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	if id, ok := in.varIDs[name]; ok {
		return id
	}
	id = VarID(len(in.vars))
	in.vars = append(in.vars, name)
	in.varIDs[name] = id
	return id
}

// LookupFunctor returns the id for name/arity without registering it.
func (in *Interner) LookupFunctor(name string, arity int) (FunctorID, bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	id, ok := in.functorIDs[Functor{name, arity}]
	return id, ok
}

// ResolveFunctor returns the name and arity of id.
func (in *Interner) ResolveFunctor(id FunctorID) (Functor, error) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	if id < 0 || int(id) >= len(in.functors) {
		return Functor{}, &UnknownIdentifierError{"functor", int32(id)}
	}
	return in.functors[id], nil
}

// ResolveVar returns the name of id.
func (in *Interner) ResolveVar(id VarID) (string, error) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	if id < 0 || int(id) >= len(in.vars) {
		return "", &UnknownIdentifierError{"variable", int32(id)}
	}
	return in.vars[id], nil
}

// MustFunctor is like ResolveFunctor but panics on unknown ids. It is meant
// for ids carried by compiled code, which are always issued by the same
// Interner.
func (in *Interner) MustFunctor(id FunctorID) Functor {
	f, err := in.ResolveFunctor(id)
	if err != nil {
		panic(err)
	}
	return f
}

// Len returns the number of interned functors and variables.
func (in *Interner) Len() (functors, vars int) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return len(in.functors), len(in.vars)
}
