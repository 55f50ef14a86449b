// Package sweep implements the recurring automation driver: it finds due
// schedule rules, classifies recent mail, applies the rule's action through
// the mail gateway, and records and reports the outcome.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"sweeper_server/core/domain"
	"sweeper_server/core/port/out"
	"sweeper_server/core/service/classification"
	"sweeper_server/pkg/logger"
)

// ErrSweepInProgress is returned when a tick fires while the previous sweep
// is still executing. The tick is skipped, never queued.
var ErrSweepInProgress = errors.New("sweep already in progress")

// Config holds sweep tuning knobs.
type Config struct {
	FetchLimit int           // max inbox items fetched per rule
	BatchSize  int           // messages per mutation batch
	BatchDelay time.Duration // pause between batches, rate-limit friendliness
}

// DefaultConfig returns the default sweep configuration.
func DefaultConfig() *Config {
	return &Config{
		FetchLimit: 100,
		BatchSize:  10,
		BatchDelay: 500 * time.Millisecond,
	}
}

// Service is the sweeper. One instance owns the process-wide overlap guard;
// within a sweep, due rules are processed sequentially to bound external
// API concurrency and keep failure attribution simple.
type Service struct {
	schedules   domain.ScheduleRepository
	execLog     domain.ExecutionLogRepository
	profiles    domain.SenderProfileRepository
	gateway     out.MailGateway
	notifier    out.Notifier
	credentials out.CredentialRepository
	engine      *classification.Engine

	cfg     *Config
	running atomic.Bool
	now     func() time.Time
}

// Deps holds the collaborators for creating a sweep Service.
type Deps struct {
	Schedules   domain.ScheduleRepository
	ExecLog     domain.ExecutionLogRepository
	Profiles    domain.SenderProfileRepository
	Gateway     out.MailGateway
	Notifier    out.Notifier
	Credentials out.CredentialRepository
	Engine      *classification.Engine
}

// NewService creates a sweep service.
func NewService(deps *Deps, cfg *Config) *Service {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	engine := deps.Engine
	if engine == nil {
		engine = classification.NewEngine(deps.Profiles)
	}
	return &Service{
		schedules:   deps.Schedules,
		execLog:     deps.ExecLog,
		profiles:    deps.Profiles,
		gateway:     deps.Gateway,
		notifier:    deps.Notifier,
		credentials: deps.Credentials,
		engine:      engine,
		cfg:         cfg,
		now:         time.Now,
	}
}

// SetClock overrides the service clock (for testing).
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
	s.engine.SetClock(now)
}

// RunTick executes one sweep: list all active rules whose next run is due
// and process each sequentially. Returns ErrSweepInProgress if the guard is
// held by an earlier tick.
func (s *Service) RunTick(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrSweepInProgress
	}
	defer s.running.Store(false)

	now := s.now()
	rules, err := s.schedules.ListDue(ctx, now)
	if err != nil {
		return fmt.Errorf("list due schedules: %w", err)
	}
	if len(rules) == 0 {
		return nil
	}

	logger.Info("[Sweep] Tick: %d rule(s) due", len(rules))
	for _, rule := range rules {
		s.runRule(ctx, rule)
	}
	return nil
}

// runRule drives one rule through fetch → classify → filter → execute →
// log → reschedule → notify. A failure in any step aborts only this rule's
// run; bookkeeping and notification always happen.
func (s *Service) runRule(ctx context.Context, rule *domain.ScheduleRule) {
	started := s.now()
	processed, runErr := s.executeRule(ctx, rule)
	duration := s.now().Sub(started)

	status := domain.ExecutionSuccess
	errMsg := ""
	if runErr != nil {
		status = domain.ExecutionFailed
		if processed > 0 {
			status = domain.ExecutionPartial
		}
		errMsg = describeRunError(runErr)
		logger.Error("[Sweep] Rule %d failed after %d item(s): %v", rule.ID, processed, runErr)
	}

	entry := &domain.ExecutionLogEntry{
		ID:             uuid.NewString(),
		RuleID:         rule.ID,
		OwnerID:        rule.OwnerID,
		ExecutedAt:     started,
		ItemsProcessed: processed,
		ActionTaken:    rule.TargetAction,
		Status:         status,
		ErrorMessage:   errMsg,
		DurationMs:     duration.Milliseconds(),
	}
	if err := s.execLog.Append(ctx, entry); err != nil {
		logger.Error("[Sweep] Failed to append execution log for rule %d: %v", rule.ID, err)
	}

	// The next run is computed from the current time, never from the last
	// run, so a skipped or late tick cannot accumulate drift. It advances
	// whether or not this run succeeded.
	next := s.nextRun(rule)
	if err := s.schedules.RecordRun(ctx, rule.ID, started, next, processed); err != nil {
		logger.Error("[Sweep] Failed to record run for rule %d: %v", rule.ID, err)
	}

	report := &out.SweepReport{
		RuleID:         rule.ID,
		ItemsProcessed: processed,
		Action:         rule.TargetAction,
		DurationMs:     duration.Milliseconds(),
		NextRunAt:      next,
		Status:         status,
		ErrorMessage:   errMsg,
	}
	if err := s.notifier.Notify(ctx, rule.OwnerID, report); err != nil {
		// Notifier failures never propagate and never block the schedule.
		logger.Warn("[Sweep] Notifier failed for rule %d: %v", rule.ID, err)
	}
}

// executeRule performs the fetch/classify/filter/execute steps and returns
// how many items were mutated.
func (s *Service) executeRule(ctx context.Context, rule *domain.ScheduleRule) (int, error) {
	cred, err := s.credentials.GetToken(ctx, rule.OwnerID)
	if err != nil {
		return 0, out.NewGatewayError("credentials", out.GatewayErrAuthExpired,
			"no usable mail credential for owner", err, false)
	}

	cred, refreshed, err := s.gateway.RefreshCredential(ctx, cred)
	if err != nil {
		return 0, fmt.Errorf("refresh mail credential: %w", err)
	}
	if refreshed {
		// The gateway already holds the fresh token for this run; losing
		// the write only means the next run refreshes again.
		if err := s.credentials.SaveToken(ctx, rule.OwnerID, cred); err != nil {
			logger.Warn("[Sweep] Failed to persist refreshed credential for owner %s: %v", rule.OwnerID, err)
		}
	}

	messages, err := s.gateway.ListRecent(ctx, cred, s.cfg.FetchLimit)
	if err != nil {
		return 0, fmt.Errorf("list recent messages: %w", err)
	}
	// An empty inbox is a successful run with zero items processed.
	if len(messages) == 0 {
		return 0, nil
	}

	recs, err := s.engine.Classify(ctx, rule.OwnerID, messages)
	if err != nil {
		return 0, fmt.Errorf("classify messages: %w", err)
	}

	targets := s.filterRecommendations(rule, recs)
	if len(targets) == 0 {
		return 0, nil
	}

	mutation := mutationFor(rule.TargetAction)
	processed := 0
	for start := 0; start < len(targets); start += s.cfg.BatchSize {
		if start > 0 && s.cfg.BatchDelay > 0 {
			select {
			case <-ctx.Done():
				return processed, ctx.Err()
			case <-time.After(s.cfg.BatchDelay):
			}
		}

		end := start + s.cfg.BatchSize
		if end > len(targets) {
			end = len(targets)
		}
		batch := targets[start:end]
		if err := s.gateway.Mutate(ctx, cred, batch, mutation); err != nil {
			return processed, fmt.Errorf("mutate batch: %w", err)
		}
		processed += len(batch)
	}

	return processed, nil
}

// filterRecommendations applies the rule's policy: drop anything unsafe,
// keep only recommendations whose action equals the rule's target action,
// whose confidence satisfies the rule's threshold, and whose category
// passes the rule's filter.
func (s *Service) filterRecommendations(rule *domain.ScheduleRule, recs []domain.Recommendation) []string {
	minBucket := rule.ConfidenceThreshold.MinBucket()
	var ids []string
	for _, rec := range recs {
		if !rec.Safety.IsSafe {
			continue
		}
		if !actionMatches(rec.Action, rule.TargetAction) {
			continue
		}
		if !rec.Confidence.AtLeast(minBucket) {
			continue
		}
		if !rule.MatchesCategory(string(rec.Category)) {
			continue
		}
		ids = append(ids, rec.ItemID)
	}
	return ids
}

func actionMatches(rec domain.RecommendedAction, target domain.SweepAction) bool {
	switch target {
	case domain.SweepActionArchive:
		return rec == domain.ActionArchive
	case domain.SweepActionDelete:
		return rec == domain.ActionDelete
	default:
		return false
	}
}

// mutationFor maps the rule action to a gateway mutation: archive removes
// the inbox label, delete moves to trash.
func mutationFor(action domain.SweepAction) out.Mutation {
	if action == domain.SweepActionDelete {
		return out.Mutation{Trash: true}
	}
	return out.Mutation{RemoveLabels: []string{"INBOX"}}
}

// nextRun computes the strictly-future next occurrence. A malformed
// recurrence cannot stall the schedule: the fallback is one day out.
func (s *Service) nextRun(rule *domain.ScheduleRule) time.Time {
	next, err := rule.Recurrence.NextAfter(s.now())
	if err != nil {
		logger.Error("[Sweep] Failed to compute next run for rule %d: %v", rule.ID, err)
		return s.now().Add(24 * time.Hour)
	}
	return next
}

// describeRunError renders a run failure for the log entry and the
// notification, flagging expired credentials explicitly so the owner knows
// re-authentication is required.
func describeRunError(err error) string {
	if out.IsAuthExpired(err) {
		return fmt.Sprintf("mailbox credential expired, re-authentication required: %v", err)
	}
	if ge, ok := out.AsGatewayError(err); ok && ge.Retryable {
		return fmt.Sprintf("transient mail gateway error, will recover on next scheduled run: %v", err)
	}
	return err.Error()
}
