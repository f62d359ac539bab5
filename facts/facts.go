// Package facts loads ground facts from YAML documents.
//
// Facts are listed either as single-key maps from predicate name to args,
//
//	facts:
//	  - likes: [mary, wine]
//	  - age: [peter, 7]
//	  - color: red
//
// or with explicit functor and args:
//
//	predicates:
//	  - functor: likes
//	    args: [john, wine]
//
// Plain scalars are read as terms, so that '7' is an integer and 'f(a)' a
// compound term. Quoted scalars are always atoms. Sequences are lists.
package facts

import (
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/prologkit/warren/errors"
	"github.com/prologkit/warren/logic"
	"github.com/prologkit/warren/parser"
)

type source struct {
	Facts      []yaml.Node `yaml:"facts"`
	Predicates []predicate `yaml:"predicates"`
}

type predicate struct {
	Functor string      `yaml:"functor"`
	Args    []yaml.Node `yaml:"args"`
}

// Load reads the facts of a YAML document.
func Load(r io.Reader) ([]*logic.Clause, error) {
	var src source
	if err := yaml.NewDecoder(r).Decode(&src); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, errors.New("facts: %v", err)
	}
	var clauses []*logic.Clause
	for i := range src.Facts {
		c, err := decodeFact(&src.Facts[i])
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, c)
	}
	for _, pred := range src.Predicates {
		c, err := newFact(pred.Functor, pred.Args)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, c)
	}
	return clauses, nil
}

// LoadFile reads the facts of a YAML file.
func LoadFile(path string) ([]*logic.Clause, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	clauses, err := Load(f)
	if err != nil {
		return nil, errors.New("%s: %v", path, err)
	}
	return clauses, nil
}

func decodeFact(node *yaml.Node) (*logic.Clause, error) {
	if node.Kind != yaml.MappingNode || len(node.Content) != 2 {
		return nil, errors.New("facts: line %d: expected a map with a single predicate", node.Line)
	}
	key, value := node.Content[0], node.Content[1]
	if key.Kind != yaml.ScalarNode {
		return nil, errors.New("facts: line %d: predicate name must be a scalar", key.Line)
	}
	args := []yaml.Node{*value}
	if value.Kind == yaml.SequenceNode {
		args = make([]yaml.Node, len(value.Content))
		for i, arg := range value.Content {
			args[i] = *arg
		}
	}
	return newFact(key.Value, args)
}

func newFact(name string, nodes []yaml.Node) (*logic.Clause, error) {
	if name == "" {
		return nil, errors.New("facts: empty predicate name")
	}
	if len(nodes) == 0 {
		return logic.NewClause(logic.Atom{Name: name}), nil
	}
	args := make([]logic.Term, len(nodes))
	for i := range nodes {
		arg, err := decodeTerm(&nodes[i])
		if err != nil {
			return nil, errors.New("facts: %s/%d, arg #%d: %v", name, len(nodes), i+1, err)
		}
		args[i] = arg
	}
	return logic.NewClause(logic.NewComp(name, args...)), nil
}

func decodeTerm(node *yaml.Node) (logic.Term, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Style&(yaml.SingleQuotedStyle|yaml.DoubleQuotedStyle) != 0 {
			return logic.Atom{Name: node.Value}, nil
		}
		term, err := parser.ParseTerm(node.Value)
		if err != nil {
			return nil, errors.New("line %d: %v", node.Line, err)
		}
		return term, nil
	case yaml.SequenceNode:
		terms := make([]logic.Term, len(node.Content))
		for i, child := range node.Content {
			term, err := decodeTerm(child)
			if err != nil {
				return nil, err
			}
			terms[i] = term
		}
		return logic.NewList(terms...), nil
	case yaml.AliasNode:
		return decodeTerm(node.Alias)
	}
	return nil, errors.New("line %d: unsupported YAML node", node.Line)
}
