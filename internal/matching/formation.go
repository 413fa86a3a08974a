package matching

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"hostel-allocation-backend/config"
	"hostel-allocation-backend/internal/model"
	"hostel-allocation-backend/internal/scorer"
	"hostel-allocation-backend/internal/store"
)

// GroupScorer is the slice of the scorer client the formation engine needs.
type GroupScorer interface {
	ClusterGroups(ctx context.Context, students []scorer.StudentPayload, roomCapacity int, minGroupScore float64) ([]scorer.ProposedGroup, error)
}

// PassState tracks where a formation pass ended up.
type PassState string

const (
	PassIdle      PassState = "idle"
	PassScoring   PassState = "scoring"
	PassProposing PassState = "proposing"
	PassDone      PassState = "done"
	PassAborted   PassState = "aborted"
)

// PassResult summarizes one formation pass.
type PassResult struct {
	State          PassState             `json:"state"`
	Capacity       int                   `json:"capacity"`
	CandidateCount int                   `json:"candidate_count"`
	Accepted       []model.RoommateGroup `json:"accepted"`
	Rejected       int                   `json:"rejected"`
}

// Engine runs pool passes: snapshot the candidate pool, ask the scorer for
// groupings in one bulk call, accept the proposals that meet the score and
// size rules, and persist them. A pass makes no room or wallet writes, so
// aborting on scorer failure leaves nothing to undo.
type Engine struct {
	store  store.Store
	scorer GroupScorer
	cfg    config.MatchingConfig
}

// NewEngine creates a formation engine.
func NewEngine(s store.Store, gs GroupScorer, cfg config.MatchingConfig) *Engine {
	return &Engine{store: s, scorer: gs, cfg: cfg}
}

// Run drives periodic formation passes across the configured capacities
// until the context is cancelled.
func (e *Engine) Run(ctx context.Context) {
	if !e.cfg.Enabled {
		log.Println("Automated matching is disabled. Not starting.")
		return
	}
	log.Println("Starting group formation service...")

	timer := time.NewTimer(e.cfg.PassInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Group formation service shutting down.")
			return
		case <-timer.C:
			e.RunAllCapacities(ctx)
			timer.Reset(e.cfg.PassInterval)
		}
	}
}

// RunAllCapacities runs one pass per configured room capacity. A scorer
// outage aborts the remaining capacities too; there is no point hammering a
// service that just timed out.
func (e *Engine) RunAllCapacities(ctx context.Context) {
	for _, capacity := range e.cfg.Capacities {
		result, err := e.RunPass(ctx, capacity)
		if err != nil {
			log.Printf("Formation pass for capacity %d aborted: %v", capacity, err)
			return
		}
		log.Printf("Formation pass for capacity %d: %d candidates, %d groups accepted, %d proposals rejected",
			capacity, result.CandidateCount, len(result.Accepted), result.Rejected)
	}
}

// RunPass executes a single formation pass for one desired capacity.
func (e *Engine) RunPass(ctx context.Context, capacity int) (*PassResult, error) {
	if capacity < 2 {
		return nil, fmt.Errorf("formation requires capacity of at least 2, got %d", capacity)
	}

	result := &PassResult{State: PassIdle, Capacity: capacity}

	// Consistent snapshot of the pool; entries joining mid-pass wait for
	// the next one.
	entries, err := e.store.ListActivePool(ctx, capacity)
	if err != nil {
		result.State = PassAborted
		return result, err
	}
	result.CandidateCount = len(entries)

	minSize := e.minGroupSize(capacity)
	if len(entries) < minSize {
		result.State = PassDone
		return result, nil
	}

	joinedAt := make(map[int64]time.Time, len(entries))
	studentIDs := make([]int64, len(entries))
	for i, entry := range entries {
		studentIDs[i] = entry.StudentID
		joinedAt[entry.StudentID] = entry.JoinedAt
	}

	students, err := e.store.GetStudents(ctx, studentIDs)
	if err != nil {
		result.State = PassAborted
		return result, err
	}
	profiles, err := e.store.GetProfiles(ctx, studentIDs)
	if err != nil {
		result.State = PassAborted
		return result, err
	}

	result.State = PassScoring
	proposals, err := e.scorer.ClusterGroups(ctx, Payloads(students, profiles), capacity, e.cfg.MinGroupScore)
	if err != nil {
		// No side effects have happened; the pool is untouched for a
		// later retry.
		result.State = PassAborted
		return result, err
	}

	result.State = PassProposing
	accepted, rejected := e.selectProposals(proposals, capacity, joinedAt)
	result.Rejected = rejected

	if len(accepted) == 0 {
		result.State = PassDone
		return result, nil
	}

	groups := make([]model.RoommateGroup, len(accepted))
	now := time.Now().UTC()
	for i, proposal := range accepted {
		members := make([]model.RoommateGroupMember, len(proposal.StudentIDs))
		groupID := uuid.NewString()
		for j, sid := range proposal.StudentIDs {
			members[j] = model.RoommateGroupMember{GroupID: groupID, StudentID: sid, Position: j}
		}
		groups[i] = model.RoommateGroup{
			ID:             groupID,
			TargetCapacity: capacity,
			AggregateScore: proposal.AggregateScore,
			Status:         model.GroupProposed,
			FormedAt:       now,
			UpdatedAt:      now,
			Members:        members,
		}
	}

	if err := e.store.CreateProposedGroups(ctx, groups); err != nil {
		result.State = PassAborted
		return result, err
	}

	result.State = PassDone
	result.Accepted = groups
	return result, nil
}

func (e *Engine) minGroupSize(capacity int) int {
	if !e.cfg.AllowPartialGroups {
		return capacity
	}
	min := capacity - e.cfg.PartialSlack
	if min < 2 {
		min = 2
	}
	return min
}

// selectProposals filters the scorer's proposals down to the accepted set.
// Proposals below the score floor or with the wrong size are dropped. When
// a student appears in several surviving proposals, the higher aggregate
// score wins, then the earlier average join time.
func (e *Engine) selectProposals(proposals []scorer.ProposedGroup, capacity int, joinedAt map[int64]time.Time) ([]scorer.ProposedGroup, int) {
	minSize := e.minGroupSize(capacity)

	type ranked struct {
		scorer.ProposedGroup
		avgJoin time.Time
	}

	eligible := make([]ranked, 0, len(proposals))
	rejected := 0
	for _, p := range proposals {
		if p.AggregateScore < e.cfg.MinGroupScore {
			rejected++
			continue
		}
		if len(p.StudentIDs) < minSize || len(p.StudentIDs) > capacity {
			rejected++
			continue
		}

		valid := true
		var totalJoin int64
		for _, sid := range p.StudentIDs {
			t, ok := joinedAt[sid]
			if !ok {
				// Scorer returned a student outside the pass snapshot.
				valid = false
				break
			}
			totalJoin += t.UnixNano()
		}
		if !valid {
			rejected++
			continue
		}
		eligible = append(eligible, ranked{
			ProposedGroup: p,
			avgJoin:       time.Unix(0, totalJoin/int64(len(p.StudentIDs))),
		})
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		if eligible[i].AggregateScore != eligible[j].AggregateScore {
			return eligible[i].AggregateScore > eligible[j].AggregateScore
		}
		return eligible[i].avgJoin.Before(eligible[j].avgJoin)
	})

	used := make(map[int64]bool)
	accepted := make([]scorer.ProposedGroup, 0, len(eligible))
	for _, candidate := range eligible {
		overlap := false
		for _, sid := range candidate.StudentIDs {
			if used[sid] {
				overlap = true
				break
			}
		}
		if overlap {
			rejected++
			continue
		}
		for _, sid := range candidate.StudentIDs {
			used[sid] = true
		}
		accepted = append(accepted, candidate.ProposedGroup)
	}
	return accepted, rejected
}
