package enums

import "slices"

// ActorRole is the caller role carried in the access token.
type ActorRole string

const (
	ActorRoleAdmin         ActorRole = "admin"
	ActorRoleFundraiser    ActorRole = "fundraiser"
	ActorRoleKitchenStaff  ActorRole = "kitchen_staff"
	ActorRoleDeliveryStaff ActorRole = "delivery_staff"
	ActorRoleDonor         ActorRole = "donor"
)

var validActorRoles = []ActorRole{
	ActorRoleAdmin,
	ActorRoleFundraiser,
	ActorRoleKitchenStaff,
	ActorRoleDeliveryStaff,
	ActorRoleDonor,
}

func (r ActorRole) String() string {
	return string(r)
}

func (r ActorRole) IsValid() bool {
	return slices.Contains(validActorRoles, r)
}

func ParseActorRole(value string) (ActorRole, error) {
	return parseMember(validActorRoles, "actor role", value)
}
