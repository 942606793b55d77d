package domain

import "github.com/google/uuid"

// Role is a tagged capability set rather than a user hierarchy: each
// role carries the operations it may perform, checked per call.
type Role string

const (
	RoleSeeker   Role = "seeker"
	RoleProvider Role = "provider"
	RoleBoth     Role = "both"
)

// Permission names a role-gated operation.
type Permission string

const (
	PermBookSeat    Permission = "book_seat"
	PermPublishRide Permission = "publish_ride"
)

var rolePermissions = map[Role]map[Permission]struct{}{
	RoleSeeker:   {PermBookSeat: {}},
	RoleProvider: {PermPublishRide: {}},
	RoleBoth:     {PermBookSeat: {}, PermPublishRide: {}},
}

// Can reports whether the role carries the permission. Unknown roles
// carry nothing.
func (r Role) Can(p Permission) bool {
	_, ok := rolePermissions[r][p]
	return ok
}

// Identity is the externally resolved caller: the arbitrator never
// authenticates, it only authorizes against this pair.
type Identity struct {
	ID   uuid.UUID
	Role Role
}
