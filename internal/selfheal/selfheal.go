// Package selfheal is the Self-Heal engine (spec.md §4.K): it
// synthesizes a fix proposal on task/mission failure, evaluates it
// against a narrow auto-approve policy, and applies it under a
// snapshot-execute-record pipeline. Grounded on the teacher's
// internal/supervisor/scanner.go sha256 content-keying (reused here to
// key failure signatures instead of scanned files) and
// internal/supervisor/executor.go's plan-to-dispatch bridge.
package selfheal

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/missioncontrol/missioncontrol/internal/domain"
	"github.com/missioncontrol/missioncontrol/internal/ratecost"
	"github.com/missioncontrol/missioncontrol/internal/statestore"
)

// autoApprovePaths are the only filesystem prefixes an auto-approved
// fix may touch (spec.md §4.K).
var autoApprovePaths = []string{"/logs/", "/temp/", "/cache/"}

// Key returns the selfHealKey for a failure signature: a sha256 hex
// digest, the same content-keying idiom the teacher uses for scanned
// file identity.
func Key(failureSignature string) string {
	sum := sha256.Sum256([]byte(failureSignature))
	return hex.EncodeToString(sum[:])
}

// Proposal is a synthesized fix, mirrored into an immutable
// self_heal_proposal artifact.
type Proposal struct {
	MissionID        string
	TaskID           string
	Key              string
	Diagnosis        string
	ProposedCommands []string
	FilesTouched     []string
	RiskRating       domain.RiskLevel
	RollbackPlan     string
	EstimatedCost    ratecost.Estimate
}

// Decision is this engine's verdict on a synthesized proposal.
type Decision struct {
	Allowed     bool
	Reason      string
	AutoApprove bool
}

// Engine synthesizes, evaluates, and applies self-heal proposals.
type Engine struct {
	store *statestore.Store

	mu             sync.Mutex
	appliedKeys    map[string]bool
	revokedClasses map[string]bool
}

// policyClass is the single auto-approve policy spec.md §4.K defines;
// kept as a named constant so RevokePolicy reads as revoking something
// specific rather than a magic string.
const policyClass = "logs_temp_cache_low_risk"

// New builds a Self-Heal Engine.
func New(store *statestore.Store) *Engine {
	return &Engine{
		store:          store,
		appliedKeys:    make(map[string]bool),
		revokedClasses: make(map[string]bool),
	}
}

// Synthesize records a proposal as an immutable self_heal_proposal
// artifact, rejects it outright if its key matches a proposal already
// applied, and otherwise evaluates the auto-approve policy — creating
// either an auto-approved approval_record or a needs_review Approval.
func (e *Engine) Synthesize(p Proposal) (*domain.Artifact, Decision, error) {
	if p.Key == "" {
		return nil, Decision{}, fmt.Errorf("selfheal: proposal key is required")
	}

	e.mu.Lock()
	alreadyApplied := e.appliedKeys[p.Key]
	e.mu.Unlock()

	proposalArtifact := &domain.Artifact{
		MissionID: p.MissionID,
		TaskID:    p.TaskID,
		Type:      domain.ArtifactSelfHealProposal,
		Label:     "self_heal_proposal",
		Payload: map[string]interface{}{
			"key":              p.Key,
			"diagnosis":        p.Diagnosis,
			"proposedCommands": p.ProposedCommands,
			"filesTouched":     p.FilesTouched,
			"riskRating":       string(p.RiskRating),
			"rollbackPlan":     p.RollbackPlan,
			"estimatedCost":    p.EstimatedCost,
		},
		Provenance: domain.Provenance{Producer: "system"},
	}
	created, err := e.store.CreateArtifact(proposalArtifact)
	if err != nil {
		return nil, Decision{}, fmt.Errorf("selfheal: record proposal: %w", err)
	}

	if alreadyApplied {
		return created, Decision{Allowed: false, Reason: "previously attempted fix"}, nil
	}

	mission, err := e.store.GetMission(p.MissionID)
	if err != nil {
		return created, Decision{}, err
	}

	if e.qualifiesForAutoApprove(mission, p) {
		if err := e.autoApprove(mission, p, created); err != nil {
			return created, Decision{}, err
		}
		return created, Decision{Allowed: true, AutoApprove: true}, nil
	}

	if err := e.requestReview(mission, p); err != nil {
		return created, Decision{}, err
	}
	return created, Decision{Allowed: true, AutoApprove: false, Reason: "escalated to needs_review"}, nil
}

// qualifiesForAutoApprove implements spec.md §9's conservative Open
// Question resolution: a destructive-class mission never auto-approves,
// regardless of risk or path match.
func (e *Engine) qualifiesForAutoApprove(mission *domain.Mission, p Proposal) bool {
	if mission.IsDestructive() {
		return false
	}

	e.mu.Lock()
	revoked := e.revokedClasses[policyClass]
	e.mu.Unlock()
	if revoked {
		return false
	}

	global := e.store.GlobalState()
	if !global.ArmedMode {
		return false
	}
	if !p.RiskRating.AtMost(domain.RiskMedium) {
		return false
	}
	for _, f := range p.FilesTouched {
		if !withinAutoApprovePaths(f) {
			return false
		}
	}
	return len(p.FilesTouched) > 0
}

func withinAutoApprovePaths(file string) bool {
	for _, prefix := range autoApprovePaths {
		if strings.Contains(file, prefix) {
			return true
		}
	}
	return false
}

func (e *Engine) autoApprove(mission *domain.Mission, p Proposal, proposalArtifact *domain.Artifact) error {
	approval, err := e.store.CreateApproval(&domain.Approval{
		MissionID: p.MissionID,
		TaskID:    p.TaskID,
		Action:    "self_heal_apply",
		ToolName:  "selfHeal.apply",
		RiskLevel: p.RiskRating,
	})
	if err != nil {
		return fmt.Errorf("selfheal: create approval: %w", err)
	}
	if _, err := e.store.AutoApprove(approval.ID); err != nil {
		return fmt.Errorf("selfheal: auto-approve: %w", err)
	}

	record := &domain.Artifact{
		MissionID: p.MissionID,
		TaskID:    p.TaskID,
		Type:      domain.ArtifactApprovalRecord,
		Label:     "policy_match_report",
		Payload: map[string]interface{}{
			"approvalId":     approval.ID,
			"proposalId":     proposalArtifact.ID,
			"policyClass":    policyClass,
			"filesTouched":   p.FilesTouched,
			"autoApprovedAt": time.Now().UTC().Format(time.RFC3339),
		},
		Provenance: domain.Provenance{Producer: "system"},
	}
	if _, err := e.store.CreateArtifact(record); err != nil {
		return fmt.Errorf("selfheal: record policy match: %w", err)
	}
	return nil
}

func (e *Engine) requestReview(mission *domain.Mission, p Proposal) error {
	if _, err := e.store.CreateApproval(&domain.Approval{
		MissionID: p.MissionID,
		TaskID:    p.TaskID,
		Action:    "self_heal_apply",
		ToolName:  "selfHeal.apply",
		RiskLevel: p.RiskRating,
	}); err != nil {
		return fmt.Errorf("selfheal: create approval: %w", err)
	}

	if domain.ValidMissionTransition(mission.Status, domain.MissionNeedsReview) {
		if _, err := e.store.MutateMission(p.MissionID, func(m *domain.Mission) error {
			m.Status = domain.MissionNeedsReview
			return nil
		}); err != nil {
			return fmt.Errorf("selfheal: escalate mission to needs_review: %w", err)
		}
	}
	return nil
}

// RevokePolicy blocks future auto-approvals of the standing policy class
// until a human resets it — called when a later failure is attributed to
// a fix this policy previously auto-approved.
func (e *Engine) RevokePolicy() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.revokedClasses[policyClass] = true
}

// ResetPolicy clears a revoked policy after human review.
func (e *Engine) ResetPolicy() {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.revokedClasses, policyClass)
}
