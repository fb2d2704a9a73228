// Package rbac decides whether an access context may invoke an operation.
package rbac

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/odyssey-erp/odyssey-wms/internal/access"
)

// Token is a canonical <ENTITY>_<OPERATION> permission id.
type Token string

var (
	segmentPattern = regexp.MustCompile(`^[A-Z][A-Z0-9]*$`)
	tokenPattern   = regexp.MustCompile(`^[A-Z][A-Z0-9]*(_[A-Z][A-Z0-9]*)+$`)
)

// Requirement names the entity and operation an operation demands.
type Requirement struct {
	Entity    string
	Operation string
}

// Token returns the canonical token of the requirement.
func (r Requirement) Token() (Token, error) {
	return NewToken(r.Entity, r.Operation)
}

func (r Requirement) String() string {
	return r.Entity + "_" + r.Operation
}

// NewToken upper-cases and joins the segments, rejecting anything that would
// not compare equal to a stored permission id.
func NewToken(entity, operation string) (Token, error) {
	e := access.CanonicalPermission(entity)
	o := access.CanonicalPermission(operation)
	if !segmentPattern.MatchString(e) {
		return "", fmt.Errorf("rbac: invalid entity %q", entity)
	}
	if !segmentPattern.MatchString(o) {
		return "", fmt.Errorf("rbac: invalid operation %q", operation)
	}
	return Token(e + "_" + o), nil
}

// ParseToken validates an already joined token such as ITEM_DELETE.
func ParseToken(raw string) (Token, error) {
	t := access.CanonicalPermission(raw)
	if !tokenPattern.MatchString(t) {
		return "", fmt.Errorf("rbac: invalid permission token %q", raw)
	}
	return Token(t), nil
}

// MustToken is NewToken for package level declarations.
func MustToken(entity, operation string) Token {
	t, err := NewToken(entity, operation)
	if err != nil {
		panic(err)
	}
	return t
}

func (t Token) String() string {
	return string(t)
}

// Entity returns the segment before the last underscore.
func (t Token) Entity() string {
	i := strings.LastIndexByte(string(t), '_')
	if i < 0 {
		return ""
	}
	return string(t[:i])
}
