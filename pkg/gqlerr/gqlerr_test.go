package gqlerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessageWithoutLocation(t *testing.T) {
	err := New(KindInternal, "something broke: %d", 42)
	assert.Equal(t, "Internal: something broke: 42", err.Error())
}

func TestErrorMessageWithLineColumnLocation(t *testing.T) {
	err := Syntax(Location{Line: 3, Column: 7, Token: "RETURN"}, "unexpected token")
	assert.Equal(t, `SyntaxError: unexpected token (line 3, column 7, near "RETURN")`, err.Error())
}

func TestErrorMessageWithOperatorLocation(t *testing.T) {
	err := New(KindInternal, "boom").At(Location{Operator: "Filter"})
	assert.Equal(t, "Internal: boom (operator Filter)", err.Error())
}

func TestErrorMessageWithEntityIDLocation(t *testing.T) {
	err := NotFound("node-123")
	assert.Equal(t, "NotFound: node-123 not found (entity node-123)", err.Error())
}

func TestWrapPreservesUnwrapChain(t *testing.T) {
	root := errors.New("disk full")
	err := StorageUnavailable(root)
	assert.Same(t, root, errors.Unwrap(err))
	assert.ErrorIs(t, err, root)
}

func TestCodeReturnsKindString(t *testing.T) {
	err := New(KindConflict, "write-write conflict")
	assert.Equal(t, "Conflict", err.Code())
}

func TestIsMatchesKindThroughWrapping(t *testing.T) {
	inner := AlreadyExists("/social")
	outer := fmt.Errorf("creating schema: %w", inner)
	assert.True(t, Is(outer, KindAlreadyExists))
	assert.False(t, Is(outer, KindNotFound))
}

func TestIsReturnsFalseForPlainErrors(t *testing.T) {
	assert.False(t, Is(errors.New("plain"), KindInternal))
}

func TestKindOfExtractsTaggedKind(t *testing.T) {
	err := Timeout("deadline exceeded after %s", "30s")
	assert.Equal(t, KindTimeout, KindOf(err))
}

func TestKindOfDefaultsToInternalForUntaggedErrors(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
}

func TestWithExpectedAttachesTokenList(t *testing.T) {
	err := Syntax(Location{}, "unexpected token").WithExpected("SCHEMA", "GRAPH")
	assert.Equal(t, []string{"SCHEMA", "GRAPH"}, err.Expected)
}

func TestConvenienceConstructorsTagCorrectKind(t *testing.T) {
	cases := []struct {
		name string
		err  *Error
		kind Kind
	}{
		{"Semantic", Semantic(Location{}, "bad"), KindSemantic},
		{"TypeErr", TypeErr("bad type"), KindType},
		{"NotFound", NotFound("x"), KindNotFound},
		{"AlreadyExists", AlreadyExists("x"), KindAlreadyExists},
		{"PermissionDenied", PermissionDenied("denied"), KindPermissionDenied},
		{"Conflict", Conflict("conflict"), KindConflict},
		{"Timeout", Timeout("timeout"), KindTimeout},
		{"Corruption", Corruption("x", errors.New("bad bytes")), KindCorruption},
		{"StorageUnavailable", StorageUnavailable(errors.New("down")), KindStorageUnavailable},
		{"Internal", Internal(errors.New("oops"), "wrapped"), KindInternal},
	}
	for _, c := range cases {
		assert.Equal(t, c.kind, c.err.Kind, c.name)
	}
}

func TestLocationStringPrefersLineOverOperatorAndEntity(t *testing.T) {
	loc := Location{Line: 1, Column: 2, Operator: "Scan", EntityID: "n1"}
	assert.Equal(t, "line 1, column 2", loc.String())
}

func TestLocationStringEmptyWhenNothingSet(t *testing.T) {
	assert.Equal(t, "", Location{}.String())
}
