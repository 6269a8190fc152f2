package game

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// RoleID identifies an agent role assigned by the planner.
type RoleID string

const (
	RoleGeneralist RoleID = "generalist"
	RoleDefender   RoleID = "defender"
	RoleSupplier   RoleID = "supplier"
	RoleScout      RoleID = "scout"
)

// RoleDescriptor is the human-facing description of a role.
type RoleDescriptor struct {
	ID               RoleID   `json:"id"`
	Label            string   `json:"label"`
	Responsibilities []string `json:"responsibilities"`
}

var roleDescriptors = map[RoleID]RoleDescriptor{
	RoleGeneralist: {
		ID:    RoleGeneralist,
		Label: "Generalist",
		Responsibilities: []string{
			"Follow planner instructions as given",
			"Gather resources and report surroundings",
		},
	},
	RoleDefender: {
		ID:    RoleDefender,
		Label: "Defender",
		Responsibilities: []string{
			"Engage hostile mobs near the group",
			"Hold position around the shared base",
		},
	},
	RoleSupplier: {
		ID:    RoleSupplier,
		Label: "Supplier",
		Responsibilities: []string{
			"Stockpile food, tools and building materials",
			"Deliver requested items to other agents",
		},
	},
	RoleScout: {
		ID:    RoleScout,
		Label: "Scout",
		Responsibilities: []string{
			"Explore unknown terrain and mark points of interest",
			"Report hazards and resource deposits",
		},
	},
}

// NormalizeRole maps arbitrary input to a known role, falling back to
// generalist for anything unrecognised.
func NormalizeRole(id string) RoleID {
	candidate := RoleID(strings.ToLower(strings.TrimSpace(id)))
	if _, ok := roleDescriptors[candidate]; ok {
		return candidate
	}
	return RoleGeneralist
}

// RoleStatus is the current role assignment with its provenance.
type RoleStatus struct {
	Role          RoleDescriptor `json:"role"`
	Source        string         `json:"source,omitempty"`
	Reason        string         `json:"reason,omitempty"`
	LastEventID   string         `json:"lastEventId,omitempty"`
	LastUpdatedAt time.Time      `json:"lastUpdatedAt"`
}

type roleState struct {
	status RoleStatus
}

func defaultRoleState() roleState {
	return roleState{status: RoleStatus{Role: roleDescriptors[RoleGeneralist]}}
}

// ApplyAgentRoleUpdate normalises the requested role id, updates the current
// assignment, and stamps a fresh event id and timestamp. Returns the new
// status and whether the requested id was recognised.
func (s *Supervisor) ApplyAgentRoleUpdate(id, source, reason string) (RoleStatus, bool) {
	normalized := NormalizeRole(id)
	known := strings.EqualFold(strings.TrimSpace(id), string(normalized))

	s.mu.Lock()
	s.role.status = RoleStatus{
		Role:          roleDescriptors[normalized],
		Source:        source,
		Reason:        reason,
		LastEventID:   uuid.NewString(),
		LastUpdatedAt: s.clk.Now(),
	}
	status := s.role.status
	s.mu.Unlock()
	return status, known
}

// RoleStatus returns the current role assignment.
func (s *Supervisor) RoleStatus() RoleStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.role.status
}
