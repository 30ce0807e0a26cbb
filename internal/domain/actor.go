package domain

// Capability is a coarse permission an actor can hold within a community.
type Capability string

const (
	CapMember    Capability = "member"
	CapModerator Capability = "moderator"
	CapAdmin     Capability = "admin"
	CapSystem    Capability = "system"
)

// Actor is the authenticated principal invoking a command or query.
// Authentication itself happens in the transport adapter; the core only
// checks capabilities.
type Actor struct {
	UserID       int64
	Address      string
	Capabilities []Capability
}

// Can reports whether the actor holds the given capability. System implies
// everything; admin implies moderator and member.
func (a Actor) Can(required Capability) bool {
	for _, c := range a.Capabilities {
		if c == required || c == CapSystem {
			return true
		}
		if c == CapAdmin && (required == CapModerator || required == CapMember) {
			return true
		}
		if c == CapModerator && required == CapMember {
			return true
		}
	}
	return false
}

// SystemActor is used by policies submitting follow-up commands.
// It bypasses capability checks but still goes through validation.
func SystemActor() Actor {
	return Actor{UserID: 0, Capabilities: []Capability{CapSystem}}
}
