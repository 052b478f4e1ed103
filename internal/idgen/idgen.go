// Package idgen generates opaque, typed-prefix entity IDs.
package idgen

import "github.com/google/uuid"

// Prefixes for every entity kind the state store owns.
const (
	PrefixMission  = "mission"
	PrefixTask     = "task"
	PrefixArtifact = "artifact"
	PrefixAgent    = "agent"
	PrefixApproval = "approval"
)

// New returns a new opaque ID of the form "<prefix>-<uuid>".
func New(prefix string) string {
	return prefix + "-" + uuid.New().String()
}

// Mission returns a new mission ID.
func Mission() string { return New(PrefixMission) }

// Task returns a new task ID.
func Task() string { return New(PrefixTask) }

// Artifact returns a new artifact ID.
func Artifact() string { return New(PrefixArtifact) }

// Agent returns a new agent ID.
func Agent() string { return New(PrefixAgent) }

// Approval returns a new approval ID.
func Approval() string { return New(PrefixApproval) }
