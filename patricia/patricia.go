// Package patricia implements a set of IP prefixes backed by a radix
// trie, giving exact-match and longest-prefix-match membership tests in
// O(key length) instead of a linear scan. It is the concrete collaborator
// behind the filter VM's PFXMTCH opcode and the convenience filter
// package's prefix filters.
package patricia

import (
	"bytes"
	"fmt"
	"net"

	radix "github.com/armon/go-radix"
)

// Set is a set of IP prefixes. The zero value is not usable; use New.
type Set struct {
	tree *radix.Tree
}

// New returns an empty Set.
func New() *Set {
	return &Set{tree: radix.New()}
}

// key converts ip/mask into the bitstring radix key: an address-family
// character ('4' or '6') followed by one character per masked bit, so
// that a trie prefix relationship on the key exactly matches a CIDR
// containment relationship on the address.
func key(ip net.IP, mask uint8) (string, error) {
	if len(ip) == 0 {
		return "", fmt.Errorf("patricia: empty address")
	}
	var masked net.IP
	fam := "6"
	if v4 := ip.To4(); v4 != nil {
		fam = "4"
		if mask > 32 {
			return "", fmt.Errorf("patricia: mask %d out of range for IPv4", mask)
		}
		masked = v4.Mask(net.CIDRMask(int(mask), 32))
	} else {
		if mask > 128 {
			return "", fmt.Errorf("patricia: mask %d out of range for IPv6", mask)
		}
		masked = ip.To16().Mask(net.CIDRMask(int(mask), 128))
	}
	var buf bytes.Buffer
	for i := 0; i < len(masked) && i*8 < int(mask); i++ {
		fmt.Fprintf(&buf, "%08b", masked[i])
	}
	s := buf.String()
	if int(mask) > len(s) {
		return "", fmt.Errorf("patricia: mask %d exceeds available bits", mask)
	}
	return fam + s[:mask], nil
}

// Add inserts ip/mask into the set.
func (s *Set) Add(ip net.IP, mask uint8) error {
	k, err := key(ip, mask)
	if err != nil {
		return err
	}
	s.tree.Insert(k, nil)
	return nil
}

// AddCIDR parses and inserts a "1.2.3.0/24"-style CIDR string.
func (s *Set) AddCIDR(cidr string) error {
	ip, ipnet, err := net.ParseCIDR(cidr)
	if err != nil {
		return fmt.Errorf("patricia: %w", err)
	}
	ones, _ := ipnet.Mask.Size()
	return s.Add(ip, uint8(ones))
}

// Contains reports whether ip/mask is present in the set exactly as
// given (same address and mask length), not merely covered by a
// less-specific member.
func (s *Set) Contains(ip net.IP, mask uint8) (bool, error) {
	k, err := key(ip, mask)
	if err != nil {
		return false, err
	}
	_, ok := s.tree.Get(k)
	return ok, nil
}

// Covers reports whether some member of the set is an equal-or-less
// specific prefix that contains ip/mask (longest-prefix-match
// membership, the semantics the VM's PFXMTCH opcode needs).
func (s *Set) Covers(ip net.IP, mask uint8) (bool, error) {
	k, err := key(ip, mask)
	if err != nil {
		return false, err
	}
	_, _, ok := s.tree.LongestPrefix(k)
	return ok, nil
}

// Len returns the number of prefixes in the set.
func (s *Set) Len() int { return s.tree.Len() }

// RemoveCovered deletes every member of the set that is itself covered by
// a less-specific member already in the set, leaving only the top-level
// (least specific) prefixes of each covering chain. This is the same
// child-prefix pruning the teacher's dump formatter performs over a
// radix tree of seen prefixes before writing a unique-prefix report.
func (s *Set) RemoveCovered() {
	var toDelete []string
	s.tree.Walk(func(k string, _ interface{}) bool {
		top := true
		s.tree.WalkPrefix(k, func(sub string, _ interface{}) bool {
			if top {
				top = false
				return false
			}
			toDelete = append(toDelete, sub)
			return false
		})
		return false
	})
	for _, k := range toDelete {
		s.tree.Delete(k)
	}
}
