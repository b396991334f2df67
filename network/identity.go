package network

import (
	"encoding/json"
	"log"

	"github.com/google/uuid"
	"github.com/quasilyte/gdata"
)

// Identity is the persisted player identity, so reconnects resume the same
// squirrel across sessions.
type Identity struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
}

var gdataManager *gdata.Manager
var gdataInitialized bool

// InitIdentityStore initializes the gdata manager backing identity storage.
func InitIdentityStore() error {
	m, err := gdata.Open(gdata.Config{
		AppName: "scamper",
	})
	if err != nil {
		log.Printf("Warning: could not initialize identity store: %v", err)
		return err
	}
	gdataManager = m
	gdataInitialized = true
	return nil
}

// LoadIdentity returns the stored identity, minting a fresh one when none
// exists or the store is unavailable.
func LoadIdentity(defaultName string) Identity {
	fresh := Identity{PlayerID: uuid.NewString(), Name: defaultName}
	if !gdataInitialized || gdataManager == nil {
		return fresh
	}

	data, err := gdataManager.LoadItem("identity")
	if err != nil || data == nil {
		return fresh
	}

	var id Identity
	if err := json.Unmarshal(data, &id); err != nil || id.PlayerID == "" {
		log.Printf("Warning: could not parse saved identity: %v", err)
		return fresh
	}
	if defaultName != "" {
		id.Name = defaultName
	}
	return id
}

// SaveIdentity persists the identity for future sessions.
func SaveIdentity(id Identity) error {
	if !gdataInitialized || gdataManager == nil {
		return nil
	}
	data, err := json.Marshal(id)
	if err != nil {
		return err
	}
	if err := gdataManager.SaveItem("identity", data); err != nil {
		log.Printf("Warning: could not save identity: %v", err)
		return err
	}
	return nil
}
