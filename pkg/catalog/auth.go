package catalog

import (
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/orneryd/graphlite/pkg/gqlerr"
)

// OpClass is one of the four operation classes a permission grant covers
// (spec §3: "Operation classes include DDL, DML, DQL, ADMIN").
type OpClass string

const (
	OpDDL   OpClass = "DDL"
	OpDML   OpClass = "DML"
	OpDQL   OpClass = "DQL"
	OpAdmin OpClass = "ADMIN"
)

// Grant is one (operation-class, resource-pattern) permission entry. The
// resource pattern is a "/"-separated path (e.g. "/social/*") with "*"
// matching exactly one path segment and "**" matching any number,
// generalizing the teacher's fixed four-role RBAC (pkg/auth/auth.go) to the
// spec's open grant model.
type Grant struct {
	OpClass OpClass
	Pattern string
}

// Role is a named bundle of grants.
type Role struct {
	Name   string
	Grants []Grant
}

// User is a named principal with a bcrypt credential hash and a set of
// role names (spec §3).
type User struct {
	Name           string
	CredentialHash []byte
	Roles          []string
}

// Principal is the opaque handle authenticate() returns: the caller sees
// only the user name and resolved roles, never the credential material.
type Principal struct {
	UserName string
	Roles    []string
}

type userRecord struct {
	Name           string
	CredentialHash []byte
	Roles          []string
}

func toUserRecord(u *User) userRecord {
	return userRecord{Name: u.Name, CredentialHash: u.CredentialHash, Roles: u.Roles}
}
func fromUserRecord(r userRecord) *User {
	return &User{Name: r.Name, CredentialHash: r.CredentialHash, Roles: r.Roles}
}

type roleRecord struct {
	Name   string
	Grants []Grant
}

func toRoleRecord(r *Role) roleRecord { return roleRecord{Name: r.Name, Grants: r.Grants} }
func fromRoleRecord(r roleRecord) *Role { return &Role{Name: r.Name, Grants: r.Grants} }

// CreateUser hashes credential with bcrypt and persists a new user bound to
// roles. Returns AlreadyExists if the name is taken.
func (c *Catalog) CreateUser(name, credential string, roles []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.users[name]; ok {
		return gqlerr.AlreadyExists("user " + name)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(credential), bcrypt.DefaultCost)
	if err != nil {
		return gqlerr.Internal(err, "hash credential")
	}
	u := &User{Name: name, CredentialHash: hash, Roles: roles}
	txn := c.engine.Begin()
	b, err := gobEncode(toUserRecord(u))
	if err != nil {
		txn.Rollback()
		return gqlerr.Internal(err, "encode user")
	}
	txn.RawPut(catalogKey(subUser, name), b)
	if err := txn.Commit(); err != nil {
		return err
	}
	c.users[name] = u
	return nil
}

// CreateRole persists a new role with the given grants.
func (c *Catalog) CreateRole(name string, grants []Grant) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.roles[name]; ok {
		return gqlerr.AlreadyExists("role " + name)
	}
	r := &Role{Name: name, Grants: grants}
	txn := c.engine.Begin()
	b, err := gobEncode(toRoleRecord(r))
	if err != nil {
		txn.Rollback()
		return gqlerr.Internal(err, "encode role")
	}
	txn.RawPut(catalogKey(subRole, name), b)
	if err := txn.Commit(); err != nil {
		return err
	}
	c.roles[name] = r
	return nil
}

// Authenticate verifies credential against the stored bcrypt hash for user
// and returns an opaque Principal on success (spec §4.2). The comparison
// itself is bcrypt's own constant-time check; for a user that does not
// exist a dummy bcrypt comparison still runs, so failure timing does not
// reveal whether the user exists.
func (c *Catalog) Authenticate(user, credential string) (*Principal, error) {
	c.mu.RLock()
	u, ok := c.users[user]
	c.mu.RUnlock()
	if !ok {
		// Run a comparison against a fixed hash anyway so failure timing
		// doesn't distinguish "no such user" from "wrong credential".
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(credential))
		return nil, gqlerr.PermissionDenied("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword(u.CredentialHash, []byte(credential)); err != nil {
		return nil, gqlerr.PermissionDenied("invalid credentials")
	}
	roles := append([]string(nil), u.Roles...)
	return &Principal{UserName: u.Name, Roles: roles}, nil
}

var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("graphlite-timing-guard"), bcrypt.DefaultCost)

// CheckPermission evaluates principal's roles against op/resource,
// returning PermissionDenied unless some grant matches (spec §4.2: "deny
// by default").
func (c *Catalog) CheckPermission(principal *Principal, op OpClass, resource string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, roleName := range principal.Roles {
		role, ok := c.roles[roleName]
		if !ok {
			continue
		}
		for _, g := range role.Grants {
			if g.OpClass == op && matchResource(g.Pattern, resource) {
				return nil
			}
		}
	}
	return gqlerr.PermissionDenied("user %s lacks %s permission on %s", principal.UserName, op, resource)
}

// matchResource matches a "/"-separated resource pattern against path,
// where "*" matches exactly one segment and "**" matches the remainder.
func matchResource(pattern, path string) bool {
	pparts := strings.Split(strings.Trim(pattern, "/"), "/")
	rparts := strings.Split(strings.Trim(path, "/"), "/")
	return matchSegments(pparts, rparts)
}

func matchSegments(pattern, path []string) bool {
	for i := 0; i < len(pattern); i++ {
		if pattern[i] == "**" {
			return true
		}
		if i >= len(path) {
			return false
		}
		if pattern[i] != "*" && pattern[i] != path[i] {
			return false
		}
	}
	return len(pattern) == len(path)
}
