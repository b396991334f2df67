package netcomponents

import "github.com/yohamta/donburi"

// NetIdentityData ties an entity record to its wire identity.
type NetIdentityData struct {
	SquirrelID string
	Name       string
	IsLocal    bool // client-side only, never synced

	// LastSequence is the most recent client sequence the server has
	// processed for this entity. Zero for remote mirrors.
	LastSequence uint64
}

var NetIdentity = donburi.NewComponentType[NetIdentityData]()
