package vm

import (
	"fmt"
	"strconv"

	"github.com/CSUNetSec/bgpcore/asn"
	"github.com/CSUNetSec/bgpcore/bgp"
)

const (
	maxASGroupDepth = 8
	asMatchBudget   = 200000
)

type patOp uint8

const (
	patLit patOp = iota
	patAny
	patGroup
)

// patNode is one element of a compiled AS-path pattern: an ASN literal, a
// '.' wildcard matching any single hop, or a parenthesized alternation.
// star/opt record a trailing '*'/'?' quantifier on this node.
type patNode struct {
	op   patOp
	asn  asn.Asn
	alts [][]patNode // patGroup only: alternatives separated by '|'
	star bool
	opt  bool
}

// asPattern is a compiled AS-path pattern, ready for repeated matching.
type asPattern struct {
	nodes []patNode
}

type asParser struct {
	toks  []string
	pos   int
	depth int
}

func tokenizeASPattern(s string) []string {
	var toks []string
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c == '.' || c == '*' || c == '?' || c == '|' || c == '(' || c == ')':
			toks = append(toks, string(c))
			i++
		default:
			j := i
			for j < len(s) && s[j] >= '0' && s[j] <= '9' {
				j++
			}
			if j == i {
				toks = append(toks, string(c))
				i++
				continue
			}
			toks = append(toks, s[i:j])
			i = j
		}
	}
	return toks
}

// compileASPattern parses an AS-path pattern: ASN literals, '.' (any
// single hop), postfix '*'/'?' quantifiers, '|' alternation, and '(' ')'
// grouping up to maxASGroupDepth nesting levels.
func compileASPattern(s string) (*asPattern, error) {
	p := &asParser{toks: tokenizeASPattern(s)}
	alts, err := p.parseAlt()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.toks) {
		return nil, fmt.Errorf("%w: unexpected token %q", ErrBadASMatch, p.toks[p.pos])
	}
	if len(alts) == 1 {
		return &asPattern{nodes: alts[0]}, nil
	}
	return &asPattern{nodes: []patNode{{op: patGroup, alts: alts}}}, nil
}

func (p *asParser) peek() string {
	if p.pos >= len(p.toks) {
		return ""
	}
	return p.toks[p.pos]
}

func (p *asParser) parseAlt() ([][]patNode, error) {
	concat, err := p.parseConcat()
	if err != nil {
		return nil, err
	}
	alts := [][]patNode{concat}
	for p.peek() == "|" {
		p.pos++
		concat, err := p.parseConcat()
		if err != nil {
			return nil, err
		}
		alts = append(alts, concat)
	}
	return alts, nil
}

func (p *asParser) parseConcat() ([]patNode, error) {
	var nodes []patNode
	for {
		t := p.peek()
		if t == "" || t == "|" || t == ")" {
			break
		}
		n, err := p.parseAtom()
		if err != nil {
			return nil, err
		}
		switch p.peek() {
		case "*":
			n.star = true
			p.pos++
		case "?":
			n.opt = true
			p.pos++
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func (p *asParser) parseAtom() (patNode, error) {
	t := p.peek()
	switch {
	case t == "":
		return patNode{}, fmt.Errorf("%w: unexpected end of pattern", ErrBadASMatch)
	case t == ".":
		p.pos++
		return patNode{op: patAny}, nil
	case t == "(":
		p.pos++
		p.depth++
		if p.depth > maxASGroupDepth {
			return patNode{}, ErrASGroupLimit
		}
		alts, err := p.parseAlt()
		if err != nil {
			return patNode{}, err
		}
		p.depth--
		if p.peek() != ")" {
			return patNode{}, fmt.Errorf("%w: missing closing paren", ErrBadASMatch)
		}
		p.pos++
		return patNode{op: patGroup, alts: alts}, nil
	default:
		n, err := strconv.ParseUint(t, 10, 32)
		if err != nil {
			return patNode{}, fmt.Errorf("%w: bad ASN literal %q", ErrBadASMatch, t)
		}
		p.pos++
		return patNode{op: patLit, asn: asn.From32(uint32(n))}, nil
	}
}

// asPosition is one position along the merged AS path: either the single
// ASN an AS_SEQUENCE element carries, or every member of an AS_SET, any
// one of which satisfies a match at that position.
type asPosition struct {
	candidates []asn.Asn
}

// flattenASPath turns a merged AS path into the position sequence
// asMatcher operates over.
func flattenASPath(segs []bgp.Segment) []asPosition {
	var out []asPosition
	for _, seg := range segs {
		if seg.Type == bgp.AsSet {
			out = append(out, asPosition{candidates: seg.ASNs})
			continue
		}
		for _, a := range seg.ASNs {
			out = append(out, asPosition{candidates: []asn.Asn{a}})
		}
	}
	return out
}

// asMatcher tracks a step budget, renewed for each start position Match
// tries, so a pathological pattern fails closed with ErrASMatchSize
// instead of spinning forever.
type asMatcher struct{ steps int }

func (m *asMatcher) budget() error {
	m.steps++
	if m.steps > asMatchBudget {
		return ErrASMatchSize
	}
	return nil
}

// matchNode returns every length a single, unquantified occurrence of n
// could consume starting at pos.
func (m *asMatcher) matchNode(n patNode, path []asPosition, pos int) ([]int, error) {
	if err := m.budget(); err != nil {
		return nil, err
	}
	switch n.op {
	case patAny:
		if pos < len(path) {
			return []int{1}, nil
		}
		return nil, nil
	case patLit:
		if pos < len(path) {
			for _, c := range path[pos].candidates {
				if c.Uint32() == n.asn.Uint32() {
					return []int{1}, nil
				}
			}
		}
		return nil, nil
	case patGroup:
		var lens []int
		for _, alt := range n.alts {
			for l := 0; pos+l <= len(path); l++ {
				ok, err := m.matchSeq(alt, path[pos:pos+l], 0)
				if err != nil {
					return nil, err
				}
				if ok {
					lens = append(lens, l)
				}
			}
		}
		return lens, nil
	default:
		return nil, ErrBadASMatch
	}
}

// matchSeq reports whether nodes matches path[pos:] exactly, consuming
// every remaining position.
func (m *asMatcher) matchSeq(nodes []patNode, path []asPosition, pos int) (bool, error) {
	if err := m.budget(); err != nil {
		return false, err
	}
	if len(nodes) == 0 {
		return pos == len(path), nil
	}
	n := nodes[0]
	rest := nodes[1:]

	if n.opt {
		plain := n
		plain.opt = false
		if ok, err := m.matchSeq(rest, path, pos); err != nil || ok {
			return ok, err
		}
		lens, err := m.matchNode(plain, path, pos)
		if err != nil {
			return false, err
		}
		for _, l := range lens {
			if ok, err := m.matchSeq(rest, path, pos+l); err != nil {
				return false, err
			} else if ok {
				return true, nil
			}
		}
		return false, nil
	}
	if n.star {
		plain := n
		plain.star = false
		return m.matchStar(plain, rest, path, pos)
	}
	lens, err := m.matchNode(n, path, pos)
	if err != nil {
		return false, err
	}
	for _, l := range lens {
		if ok, err := m.matchSeq(rest, path, pos+l); err != nil {
			return false, err
		} else if ok {
			return true, nil
		}
	}
	return false, nil
}

func (m *asMatcher) matchStar(n patNode, rest []patNode, path []asPosition, pos int) (bool, error) {
	if err := m.budget(); err != nil {
		return false, err
	}
	if ok, err := m.matchSeq(rest, path, pos); err != nil || ok {
		return ok, err
	}
	lens, err := m.matchNode(n, path, pos)
	if err != nil {
		return false, err
	}
	for _, l := range lens {
		if l == 0 {
			continue
		}
		if ok, err := m.matchStar(n, rest, path, pos+l); err != nil {
			return false, err
		} else if ok {
			return true, nil
		}
	}
	return false, nil
}

// Match reports whether segs contains a contiguous run matching p
// anywhere along the path, the same unanchored convention conventional
// AS-path access-list regexes use.
func (p *asPattern) Match(segs []bgp.Segment) (bool, error) {
	path := flattenASPath(segs)
	for start := 0; start <= len(path); start++ {
		m := &asMatcher{}
		for end := start; end <= len(path); end++ {
			ok, err := m.matchSeq(p.nodes, path[start:end], 0)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
	}
	return false, nil
}
