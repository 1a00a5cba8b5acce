package enums

import "fmt"

// ActorKind identifies the pool a geographic assignment search runs against.
type ActorKind string

const (
	ActorKindDeliveryAgent       ActorKind = "delivery_agent"
	ActorKindRegionalCoordinator ActorKind = "regional_coordinator"
)

var validActorKinds = []ActorKind{
	ActorKindDeliveryAgent,
	ActorKindRegionalCoordinator,
}

// String implements fmt.Stringer.
func (k ActorKind) String() string {
	return string(k)
}

// IsValid reports whether the value is a known ActorKind.
func (k ActorKind) IsValid() bool {
	for _, candidate := range validActorKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseActorKind converts raw input into an ActorKind.
func ParseActorKind(value string) (ActorKind, error) {
	for _, candidate := range validActorKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid actor kind %q", value)
}
