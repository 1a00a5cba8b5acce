package enums

import "fmt"

// ActorRole identifies who a verified token belongs to. Issuance lives in the
// identity service; this backend only consumes the role claim.
type ActorRole string

const (
	ActorRoleCustomer            ActorRole = "customer"
	ActorRoleFarmer              ActorRole = "farmer"
	ActorRoleDeliveryAgent       ActorRole = "delivery_agent"
	ActorRoleRegionalCoordinator ActorRole = "regional_coordinator"
	ActorRoleAdmin               ActorRole = "admin"
)

var validActorRoles = []ActorRole{
	ActorRoleCustomer,
	ActorRoleFarmer,
	ActorRoleDeliveryAgent,
	ActorRoleRegionalCoordinator,
	ActorRoleAdmin,
}

// IsValid reports whether the value is a known ActorRole.
func (r ActorRole) IsValid() bool {
	for _, candidate := range validActorRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseActorRole converts raw input into an ActorRole.
func ParseActorRole(value string) (ActorRole, error) {
	for _, candidate := range validActorRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid actor role %q", value)
}
