package vm

import "github.com/CSUNetSec/bgpcore/bgp"

const maxCommExprDepth = 16

type commOp uint8

const (
	commLit commOp = iota
	commAnd
	commOr
	commNot
)

type commNode struct {
	op       commOp
	lit      bgp.Community
	children []*commNode
}

// commExpr is a compiled boolean expression tree over community
// literals, backing COMMTCH.
type commExpr struct {
	root *commNode
}

// NewCommLit returns an expression matching c's literal presence.
func NewCommLit(c bgp.Community) *commExpr {
	return &commExpr{root: &commNode{op: commLit, lit: c}}
}

// NewCommAnd returns an expression requiring every sub-expression to
// match.
func NewCommAnd(exprs ...*commExpr) (*commExpr, error) { return combineComm(commAnd, exprs) }

// NewCommOr returns an expression requiring any sub-expression to match.
func NewCommOr(exprs ...*commExpr) (*commExpr, error) { return combineComm(commOr, exprs) }

// NewCommNot negates e.
func NewCommNot(e *commExpr) (*commExpr, error) {
	if e == nil {
		return nil, ErrBadCommMatch
	}
	return &commExpr{root: &commNode{op: commNot, children: []*commNode{e.root}}}, nil
}

func combineComm(op commOp, exprs []*commExpr) (*commExpr, error) {
	if len(exprs) == 0 {
		return nil, ErrBadCommMatch
	}
	children := make([]*commNode, len(exprs))
	for i, e := range exprs {
		if e == nil {
			return nil, ErrBadCommMatch
		}
		children[i] = e.root
	}
	return &commExpr{root: &commNode{op: op, children: children}}, nil
}

// Match evaluates the expression against the UPDATE's decoded community
// set.
func (e *commExpr) Match(present []bgp.Community) (bool, error) {
	return evalCommNode(e.root, present, 0)
}

func evalCommNode(n *commNode, present []bgp.Community, depth int) (bool, error) {
	if n == nil {
		return false, ErrBadCommMatch
	}
	if depth > maxCommExprDepth {
		return false, ErrBadCommMatch
	}
	switch n.op {
	case commLit:
		for _, c := range present {
			if c == n.lit {
				return true, nil
			}
		}
		return false, nil
	case commAnd:
		for _, c := range n.children {
			ok, err := evalCommNode(c, present, depth+1)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	case commOr:
		for _, c := range n.children {
			ok, err := evalCommNode(c, present, depth+1)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case commNot:
		if len(n.children) != 1 {
			return false, ErrBadCommMatch
		}
		ok, err := evalCommNode(n.children[0], present, depth+1)
		if err != nil {
			return false, err
		}
		return !ok, nil
	default:
		return false, ErrBadCommMatch
	}
}
