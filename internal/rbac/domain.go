package rbac

import (
	"sort"
	"time"
)

// Role represents a named permission grouping. The same table backs both
// account-level roles (users.role_name) and group-scoped roles
// (group_memberships.role_name); scope is determined by the referencing row.
type Role struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Permission represents an atomic capability.
type Permission struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// RolePermission ties a permission to a role.
type RolePermission struct {
	RoleName       string `json:"roleName"`
	PermissionName string `json:"permissionName"`
}

// Well-known role names.
const (
	RoleAdministrator = "Administrator"
	RoleGroupOwner    = "Group Owner"
	RoleGroupMember   = "Group Member"
)

// Permission names used by the access gates.
const (
	PermGroupUpdate = "group:update"
	PermGroupDelete = "group:delete"

	PermGroupBypassMembership = "group:bypass:membership"

	PermQuestionBypassOwnership  = "question:bypass:ownership"
	PermAnswerBypassOwnership    = "answer:bypass:ownership"
	PermCommentBypassOwnership   = "comment:bypass:ownership"
	PermGroupUserBypassOwnership = "group_user:bypass:ownership"
)

// AllPermissions lists every permission the gates reference.
func AllPermissions() []string {
	return []string{
		PermGroupUpdate,
		PermGroupDelete,
		PermGroupBypassMembership,
		PermQuestionBypassOwnership,
		PermAnswerBypassOwnership,
		PermCommentBypassOwnership,
		PermGroupUserBypassOwnership,
	}
}

// PermissionSet is the set of permission names granted through one or more
// roles. The zero value is usable and grants nothing.
type PermissionSet map[string]struct{}

// NewPermissionSet builds a set from permission names.
func NewPermissionSet(names ...string) PermissionSet {
	set := make(PermissionSet, len(names))
	for _, name := range names {
		if name == "" {
			continue
		}
		set[name] = struct{}{}
	}
	return set
}

// Has reports whether a single permission is granted.
func (s PermissionSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// HasAll reports whether every required permission is granted.
// An empty required list is vacuously true.
func (s PermissionSet) HasAll(required ...string) bool {
	for _, name := range required {
		if _, ok := s[name]; !ok {
			return false
		}
	}
	return true
}

// Names returns the granted permission names in sorted order.
func (s PermissionSet) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
