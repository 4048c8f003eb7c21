package models

// Entity types accepted by the access control API.
const (
	EntityDatasource = "datasource"
	EntityFeed       = "feed"
	EntityCategory   = "category"
	EntityTemplate   = "template"
)

// ChangeReplace replaces all members of a role.
const ChangeReplace = "REPLACE"

// MemberType is either a user or a group.
type MemberType string

const (
	MemberUser  MemberType = "user"
	MemberGroup MemberType = "group"
)

// Role is a security role that can be assigned on an entity.
type Role struct {
	SystemName  string `json:"systemName"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// Member is a user or group holding a role.
type Member struct {
	Type        MemberType `json:"type"`
	SystemName  string     `json:"systemName"`
	DisplayName string     `json:"displayName,omitempty"`
}

// RoleMembership links a role to its members on one entity.
type RoleMembership struct {
	Role    Role     `json:"role"`
	Members []Member `json:"members"`
}

// RoleMembershipChange is the request body that replaces a role's members.
type RoleMembershipChange struct {
	Change   string   `json:"change"`
	RoleName string   `json:"roleName"`
	Users    []string `json:"users"`
	Groups   []string `json:"groups"`
}

// NewRoleMembershipChange builds a REPLACE change from m.
// Members of unknown type are ignored.
func NewRoleMembershipChange(m RoleMembership) RoleMembershipChange {
	change := RoleMembershipChange{
		Change:   ChangeReplace,
		RoleName: m.Role.SystemName,
		Users:    []string{},
		Groups:   []string{},
	}
	for _, member := range m.Members {
		switch member.Type {
		case MemberUser:
			change.Users = append(change.Users, member.SystemName)
		case MemberGroup:
			change.Groups = append(change.Groups, member.SystemName)
		}
	}
	return change
}
