package scorer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"

	"hostel-allocation-backend/config"
)

// ErrScorerUnavailable signals that the external scoring service timed out,
// was unreachable, or answered with a non-2xx status. Callers must treat it
// as "cannot auto-match now", never as a zero score.
var ErrScorerUnavailable = errors.New("compatibility scorer unavailable")

// Service is the client for the external compatibility scoring service.
type Service struct {
	cfg    config.ScorerConfig
	client *http.Client
}

// NewService creates a scorer client with the configured bounded timeout.
func NewService(cfg config.ScorerConfig) *Service {
	return &Service{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Health checks the scoring service's liveness endpoint.
func (s *Service) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.BaseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create health request: %w", err)
	}
	for key, value := range s.cfg.Headers {
		req.Header.Set(key, value)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrScorerUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health returned status %d", ErrScorerUnavailable, resp.StatusCode)
	}

	var health healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return fmt.Errorf("%w: failed to decode health response: %v", ErrScorerUnavailable, err)
	}
	if health.Status != "healthy" {
		return fmt.Errorf("%w: service reports status %q", ErrScorerUnavailable, health.Status)
	}
	return nil
}

// Match asks the scorer for the topK most compatible candidates for one
// target student.
func (s *Service) Match(ctx context.Context, target StudentPayload, candidates []StudentPayload, topK int) ([]RankedMatch, error) {
	if topK <= 0 {
		topK = 5
	}

	var out matchResponse
	if err := s.post(ctx, "/match", matchRequest{
		TargetStudent: target,
		Candidates:    candidates,
		TopK:          topK,
	}, &out); err != nil {
		return nil, err
	}

	matches := make([]RankedMatch, 0, len(out.Matches))
	for _, m := range out.Matches {
		id, err := strconv.ParseInt(m.Student.ID, 10, 64)
		if err != nil {
			log.Printf("Warning: scorer returned non-numeric student id %q; skipping", m.Student.ID)
			continue
		}
		matches = append(matches, RankedMatch{
			StudentID: id,
			Name:      m.Student.Name,
			Score:     m.CompatibilityScore,
		})
	}
	return matches, nil
}

// Score computes the pairwise compatibility of two students as a number in
// [0,100], by asking for a single-candidate match.
func (s *Service) Score(ctx context.Context, a, b StudentPayload) (float64, error) {
	matches, err := s.Match(ctx, a, []StudentPayload{b}, 1)
	if err != nil {
		return 0, err
	}
	if len(matches) == 0 {
		// The scorer filters out pairs below its floor; report those as
		// zero compatibility rather than an error.
		return 0, nil
	}
	return matches[0].Score, nil
}

// ClusterGroups asks the scorer to propose roommate groupings for the full
// candidate set in one bulk call.
func (s *Service) ClusterGroups(ctx context.Context, students []StudentPayload, roomCapacity int, minGroupScore float64) ([]ProposedGroup, error) {
	var out groupResponse
	if err := s.post(ctx, "/match-groups", groupRequest{
		Students:      students,
		RoomCapacity:  roomCapacity,
		MinGroupScore: minGroupScore,
	}, &out); err != nil {
		return nil, err
	}

	groups := make([]ProposedGroup, 0, len(out.Groups))
	for _, g := range out.Groups {
		ids := make([]int64, 0, len(g.Students))
		for _, st := range g.Students {
			id, err := strconv.ParseInt(st.ID, 10, 64)
			if err != nil {
				log.Printf("Warning: scorer returned non-numeric student id %q in group; skipping group", st.ID)
				ids = nil
				break
			}
			ids = append(ids, id)
		}
		if ids == nil {
			continue
		}
		groups = append(groups, ProposedGroup{StudentIDs: ids, AggregateScore: g.AverageScore})
	}
	return groups, nil
}

func (s *Service) post(ctx context.Context, path string, payload any, out any) error {
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+path, bytes.NewBuffer(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range s.cfg.Headers {
		req.Header.Set(key, value)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrScorerUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s returned status %d", ErrScorerUnavailable, path, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response body: %v", ErrScorerUnavailable, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to unmarshal scorer response: %w", err)
	}
	return nil
}
