package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/graphlite/pkg/gqlerr"
)

func TestCreateUserRejectsDuplicateAndHashesCredential(t *testing.T) {
	cat := newTestCatalog(t)
	require.NoError(t, cat.CreateUser("alice", "hunter2", []string{"reader"}))
	assert.NotEqual(t, "hunter2", string(cat.users["alice"].CredentialHash))

	err := cat.CreateUser("alice", "other", nil)
	assert.True(t, gqlerr.Is(err, gqlerr.KindAlreadyExists))
}

func TestAuthenticateAcceptsCorrectCredentialOnly(t *testing.T) {
	cat := newTestCatalog(t)
	require.NoError(t, cat.CreateUser("alice", "hunter2", []string{"reader"}))

	p, err := cat.Authenticate("alice", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "alice", p.UserName)
	assert.Equal(t, []string{"reader"}, p.Roles)

	_, err = cat.Authenticate("alice", "wrong")
	assert.True(t, gqlerr.Is(err, gqlerr.KindPermissionDenied))

	_, err = cat.Authenticate("nosuchuser", "whatever")
	assert.True(t, gqlerr.Is(err, gqlerr.KindPermissionDenied))
}

func TestCheckPermissionDeniesByDefault(t *testing.T) {
	cat := newTestCatalog(t)
	require.NoError(t, cat.CreateRole("reader", []Grant{{OpClass: OpDQL, Pattern: "/social/*"}}))
	require.NoError(t, cat.CreateUser("bob", "pw", []string{"reader"}))
	p, err := cat.Authenticate("bob", "pw")
	require.NoError(t, err)

	assert.NoError(t, cat.CheckPermission(p, OpDQL, "/social/main"))
	err = cat.CheckPermission(p, OpDML, "/social/main")
	assert.True(t, gqlerr.Is(err, gqlerr.KindPermissionDenied), "reader has no DML grant")
	err = cat.CheckPermission(p, OpDQL, "/eng/main")
	assert.True(t, gqlerr.Is(err, gqlerr.KindPermissionDenied), "a single-segment * must not cross schema boundaries")
}

func TestCheckPermissionDoubleStarMatchesAnyDepth(t *testing.T) {
	cat := newTestCatalog(t)
	require.NoError(t, cat.CreateRole("admin", []Grant{{OpClass: OpAdmin, Pattern: "**"}}))
	require.NoError(t, cat.CreateUser("root", "pw", []string{"admin"}))
	p, err := cat.Authenticate("root", "pw")
	require.NoError(t, err)

	assert.NoError(t, cat.CheckPermission(p, OpAdmin, "/any/number/of/segments"))
	err = cat.CheckPermission(p, OpDDL, "/social/main")
	assert.True(t, gqlerr.Is(err, gqlerr.KindPermissionDenied), "the grant's op class must match exactly")
}

func TestMatchResourceSegments(t *testing.T) {
	cases := []struct {
		pattern, path string
		want          bool
	}{
		{"/social/*", "/social/main", true},
		{"/social/*", "/social/main/extra", false},
		{"/social/**", "/social/main/extra", true},
		{"**", "/anything", true},
		{"/social/main", "/social/main", true},
		{"/social/main", "/eng/main", false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, matchResource(c.pattern, c.path), "pattern=%q path=%q", c.pattern, c.path)
	}
}
