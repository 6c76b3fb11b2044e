package tools

import (
	"github.com/emergent-company/epistemic-core/internal/commitment"
	"github.com/emergent-company/epistemic-core/internal/constitution"
	"github.com/emergent-company/epistemic-core/internal/evidence"
	"github.com/emergent-company/epistemic-core/internal/interlock"
	"github.com/emergent-company/epistemic-core/internal/knowledge"
	"github.com/emergent-company/epistemic-core/internal/macro"
	"github.com/emergent-company/epistemic-core/internal/outcome"
	"github.com/emergent-company/epistemic-core/internal/project"
	"github.com/emergent-company/epistemic-core/internal/protocol"
	"github.com/emergent-company/epistemic-core/internal/resources"
	"github.com/emergent-company/epistemic-core/internal/sandbox"
	"github.com/emergent-company/epistemic-core/internal/skill"
	"github.com/emergent-company/epistemic-core/internal/truth"
	"github.com/emergent-company/epistemic-core/internal/verification"
	"github.com/emergent-company/epistemic-core/internal/workqueue"
)

// Deps bundles every domain store the macro table dispatches to. One
// engine instance owns exactly one of each, constructed at startup and
// threaded through here.
type Deps struct {
	KU            *knowledge.Store
	Evidence      *evidence.Store
	Verification  *verification.Engine
	Outcome       *outcome.Store
	Scheduler     *workqueue.Queue
	Skill         *skill.Store
	Project       *project.Store
	Truth         *truth.Engine
	Protocol      *protocol.Store
	Interlock     *interlock.Store
	Commitment    *commitment.Store
	Constitution  *constitution.Engine
	Sandbox       *sandbox.Store
	Resources     *resources.Store
}

// RegisterAll wires every domain's operations into tbl.
func RegisterAll(tbl *macro.Table, d Deps) {
	registerKU(tbl, d.KU)
	registerEvidence(tbl, d.Evidence)
	registerVerification(tbl, d.Verification, d.KU)
	registerOutcome(tbl, d.Outcome)
	registerScheduler(tbl, d.Scheduler)
	registerSkill(tbl, d.Skill)
	registerProject(tbl, d.Project)
	registerTruth(tbl, d.Truth)
	registerProtocol(tbl, d.Protocol)
	registerInterlock(tbl, d.Interlock)
	registerCommitment(tbl, d.Commitment)
	registerConstitution(tbl, d.Constitution)
	registerSandbox(tbl, d.Sandbox)
	registerResources(tbl, d.Resources)
}
