package files

import "strings"

// Role is the caller's privilege level. It is resolved once at the HTTP
// boundary and never re-read from raw input deeper in the pipeline.
type Role int

const (
	RoleUser Role = iota
	RoleAdmin
)

// ParseRole maps a raw user type to a Role. Only "admin" (any case) is
// privileged; every other value, including the empty string, is a user.
func ParseRole(raw string) Role {
	if strings.EqualFold(strings.TrimSpace(raw), "admin") {
		return RoleAdmin
	}
	return RoleUser
}

func (r Role) String() string {
	if r == RoleAdmin {
		return "admin"
	}
	return "user"
}

// Caller is the resolved identity of the party making a request.
type Caller struct {
	Identity string
	Role     Role
}

// CanDelete reports whether caller may delete rec. Ownership is the only
// criterion: the comparison is exact and case-sensitive and the admin role
// grants nothing extra.
func CanDelete(rec *FileRecord, caller Caller) bool {
	return rec.CreatedBy == caller.Identity
}

// VisibleTo reports whether rec may appear in caller's listings.
func VisibleTo(rec *FileRecord, caller Caller) bool {
	return caller.Role == RoleAdmin || rec.CreatedBy == caller.Identity
}

// FilterFor builds the store-level filter equivalent to VisibleTo combined
// with the requested program and memo.
func FilterFor(caller Caller, program, memoID string) ListFilter {
	f := ListFilter{Program: program, MemoID: memoID}
	if caller.Role != RoleAdmin {
		f.RestrictToOwner = true
		f.Owner = caller.Identity
	}
	return f
}

// Matches reports whether rec satisfies f. Stores without a query language
// use it to apply the filter in process.
func (f ListFilter) Matches(rec *FileRecord) bool {
	if f.Program != "" && rec.Program != f.Program {
		return false
	}
	if f.MemoID != "" && rec.MemoID != f.MemoID {
		return false
	}
	if f.RestrictToOwner && rec.CreatedBy != f.Owner {
		return false
	}
	return true
}
