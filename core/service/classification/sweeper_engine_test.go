package classification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"sweeper_server/core/domain"
)

// fakeProfileRepo is an in-memory sender profile store.
type fakeProfileRepo struct {
	profiles  map[string]*domain.SenderProfile
	upsertErr error
}

func newFakeProfileRepo() *fakeProfileRepo {
	return &fakeProfileRepo{profiles: make(map[string]*domain.SenderProfile)}
}

func (f *fakeProfileRepo) GetByEmail(_ context.Context, _ uuid.UUID, email string) (*domain.SenderProfile, error) {
	return f.profiles[email], nil
}

func (f *fakeProfileRepo) ListByOwner(_ context.Context, _ uuid.UUID, _, _ int) ([]*domain.SenderProfile, error) {
	return nil, nil
}

func (f *fakeProfileRepo) Create(_ context.Context, p *domain.SenderProfile) error {
	f.profiles[p.Email] = p
	return nil
}

func (f *fakeProfileRepo) Update(_ context.Context, p *domain.SenderProfile) error {
	f.profiles[p.Email] = p
	return nil
}

func (f *fakeProfileRepo) Upsert(_ context.Context, p *domain.SenderProfile) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.profiles[p.Email] = p
	return nil
}

var engineNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func makeMsg(id, sender, subject, snippet string, ageDays int, unread, replied bool) domain.MessageMetadata {
	return domain.MessageMetadata{
		ID:      id,
		Sender:  sender,
		Subject: subject,
		Snippet: snippet,
		Date:    engineNow.AddDate(0, 0, -ageDays),
		Unread:  unread,
		Replied: replied,
	}
}

func newTestEngine(repo domain.SenderProfileRepository) *Engine {
	e := NewEngine(repo)
	e.SetClock(func() time.Time { return engineNow })
	return e
}

// TestClassify covers the scoring and safety gate paths message by message.
func TestClassify(t *testing.T) {
	ownerID := uuid.New()

	tests := []struct {
		name           string
		msg            domain.MessageMetadata
		wantAction     domain.RecommendedAction
		wantConfidence domain.ConfidenceBucket
		wantSafe       bool
		wantFailed     domain.SafetyCheckTag
	}{
		{
			name: "very old unread promo is delete eligible",
			msg: makeMsg("m1", "deals@shop.example", "Mega sale ends tonight",
				"Everything must go. Unsubscribe here.", 100, true, false),
			wantAction:     domain.ActionDelete,
			wantConfidence: domain.ConfidenceVeryHigh,
			wantSafe:       true,
		},
		{
			name: "recent read newsletter scores medium",
			msg: makeMsg("m2", "newsletter@example.com", "Weekly roundup",
				"You can manage preferences anytime.", 10, false, false),
			wantAction:     domain.ActionArchive,
			wantConfidence: domain.ConfidenceMedium,
			wantSafe:       true,
		},
		{
			name: "month old read newsletter scores high",
			msg: makeMsg("m3", "newsletter@example.com", "Weekly roundup",
				"You can manage preferences anytime.", 35, false, false),
			wantAction:     domain.ActionArchive,
			wantConfidence: domain.ConfidenceHigh,
			wantSafe:       true,
		},
		{
			name: "replied message is never actionable",
			msg: makeMsg("m4", "offers@shop.example", "Mega sale ends tonight",
				"Unsubscribe here.", 100, true, true),
			wantAction:     domain.ActionKeep,
			wantSafe:       false,
			wantFailed:     domain.SafetyReplied,
		},
		{
			name: "importance keyword blocks any action",
			msg: makeMsg("m5", "noreply@billing.example", "Your invoice is ready",
				"View the attached statement.", 40, true, false),
			wantAction:     domain.ActionKeep,
			wantConfidence: domain.ConfidenceLow,
			wantSafe:       false,
			wantFailed:     domain.SafetyImportanceKeyword,
		},
		{
			name: "human looking sender blocks any action",
			msg: makeMsg("m6", "jane@gmail.com", "catching up",
				"long time no see", 40, true, false),
			wantAction: domain.ActionKeep,
			wantSafe:   false,
			wantFailed: domain.SafetyHumanSender,
		},
		{
			name: "message younger than a week blocks any action",
			msg: makeMsg("m7", "alerts@svc.example", "Mega sale ends tonight",
				"Unsubscribe here.", 2, true, false),
			wantAction: domain.ActionKeep,
			wantSafe:   false,
			wantFailed: domain.SafetyTooRecent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newTestEngine(newFakeProfileRepo())
			recs, err := engine.Classify(context.Background(), ownerID, []domain.MessageMetadata{tt.msg})
			if err != nil {
				t.Fatalf("Classify() error: %v", err)
			}
			if len(recs) != 1 {
				t.Fatalf("Classify() returned %d recommendations, want 1", len(recs))
			}

			rec := recs[0]
			if rec.Action != tt.wantAction {
				t.Errorf("Action = %s, want %s (score %.0f)", rec.Action, tt.wantAction, rec.Score)
			}
			if tt.wantConfidence != "" && rec.Confidence != tt.wantConfidence {
				t.Errorf("Confidence = %s, want %s (score %.0f)", rec.Confidence, tt.wantConfidence, rec.Score)
			}
			if rec.Safety.IsSafe != tt.wantSafe {
				t.Errorf("Safety.IsSafe = %v, want %v", rec.Safety.IsSafe, tt.wantSafe)
			}
			if !tt.wantSafe && rec.Safety.FailedCheck != tt.wantFailed {
				t.Errorf("FailedCheck = %s, want %s", rec.Safety.FailedCheck, tt.wantFailed)
			}
		})
	}
}

func TestClassifyProtectedSender(t *testing.T) {
	ownerID := uuid.New()
	repo := newFakeProfileRepo()

	protected := domain.NewSenderProfile(ownerID, "updates@store.example", engineNow.AddDate(0, -6, 0))
	protected.MarkProtected()
	repo.profiles[protected.Email] = protected

	engine := newTestEngine(repo)
	msg := makeMsg("m1", "updates@store.example", "Mega sale ends tonight",
		"Unsubscribe here.", 100, true, false)

	recs, err := engine.Classify(context.Background(), ownerID, []domain.MessageMetadata{msg})
	if err != nil {
		t.Fatalf("Classify() error: %v", err)
	}

	rec := recs[0]
	if rec.Safety.IsSafe {
		t.Error("protected sender should fail the safety gate")
	}
	if rec.Safety.FailedCheck != domain.SafetyProtectedSender {
		t.Errorf("FailedCheck = %s, want %s", rec.Safety.FailedCheck, domain.SafetyProtectedSender)
	}
	if rec.Action != domain.ActionKeep {
		t.Errorf("Action = %s, want keep", rec.Action)
	}
}

func TestClassifyEngagedSenderCountsAsHuman(t *testing.T) {
	ownerID := uuid.New()
	repo := newFakeProfileRepo()

	// Machine-shaped address, but the owner has replied to it before.
	engaged := domain.NewSenderProfile(ownerID, "deals@shop.example", engineNow.AddDate(0, -6, 0))
	engaged.RecordSighting(true, engineNow.AddDate(0, 0, -120))
	repo.profiles[engaged.Email] = engaged

	engine := newTestEngine(repo)
	msg := makeMsg("m1", "deals@shop.example", "Mega sale ends tonight",
		"Unsubscribe here.", 100, true, false)

	recs, err := engine.Classify(context.Background(), ownerID, []domain.MessageMetadata{msg})
	if err != nil {
		t.Fatalf("Classify() error: %v", err)
	}

	rec := recs[0]
	if rec.Safety.IsSafe {
		t.Error("engaged sender should fail the safety gate")
	}
	if rec.Safety.FailedCheck != domain.SafetyHumanSender {
		t.Errorf("FailedCheck = %s, want %s", rec.Safety.FailedCheck, domain.SafetyHumanSender)
	}
}

func TestClassifyLearnsSenderProfile(t *testing.T) {
	ownerID := uuid.New()
	repo := newFakeProfileRepo()
	engine := newTestEngine(repo)

	msg := makeMsg("m1", "deals@shop.example", "Mega sale ends tonight",
		"Unsubscribe here.", 100, true, false)
	if _, err := engine.Classify(context.Background(), ownerID, []domain.MessageMetadata{msg}); err != nil {
		t.Fatalf("Classify() error: %v", err)
	}

	p := repo.profiles["deals@shop.example"]
	if p == nil {
		t.Fatal("classification should create the sender profile")
	}
	if p.TotalSeen != 1 {
		t.Errorf("TotalSeen = %d, want 1", p.TotalSeen)
	}
	if p.Category != domain.SenderCategoryPromotion {
		t.Errorf("Category = %s, want promotion", p.Category)
	}
}

func TestClassifySurvivesProfileStoreFailure(t *testing.T) {
	repo := newFakeProfileRepo()
	repo.upsertErr = errors.New("connection reset")
	engine := newTestEngine(repo)

	msg := makeMsg("m1", "deals@shop.example", "Mega sale ends tonight",
		"Unsubscribe here.", 100, true, false)
	recs, err := engine.Classify(context.Background(), uuid.New(), []domain.MessageMetadata{msg})
	if err != nil {
		t.Fatalf("Classify() should tolerate profile store failures, got: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("Classify() returned %d recommendations, want 1", len(recs))
	}
}

// =============================================================================
// Grouping
// =============================================================================

func makeRec(id, senderDomain string, category domain.SenderCategory, score float64, ageDays int, unread, safe, unsubscribable bool) domain.Recommendation {
	rec := domain.Recommendation{
		ItemID:       id,
		SenderDomain: senderDomain,
		Category:     category,
		AgeDays:      ageDays,
		Unread:       unread,
		Score:        score,
		Confidence:   domain.ScoreToBucket(score),
		Safety:       domain.Safe(),
	}
	if !safe {
		rec.Safety = domain.Unsafe(domain.SafetyReplied)
	}
	if unsubscribable {
		rec.Factors = append(rec.Factors, domain.FactorHit{Factor: domain.FactorUnsubscribeText, Weight: 15})
	}
	return rec
}

func hasAction(actions []domain.RecommendedAction, want domain.RecommendedAction) bool {
	for _, a := range actions {
		if a == want {
			return true
		}
	}
	return false
}

func TestBuildGroupsVeryHighGroup(t *testing.T) {
	engine := newTestEngine(newFakeProfileRepo())
	recs := []domain.Recommendation{
		makeRec("a", "shop.example", domain.SenderCategoryPromotion, 100, 100, true, true, true),
		makeRec("b", "shop.example", domain.SenderCategoryPromotion, 100, 120, true, true, true),
		makeRec("c", "shop.example", domain.SenderCategoryPromotion, 95, 95, true, true, true),
	}

	groups := engine.BuildGroups(recs)
	if len(groups) != 1 {
		t.Fatalf("BuildGroups() returned %d groups, want 1", len(groups))
	}

	g := groups[0]
	if g.Confidence != domain.ConfidenceVeryHigh {
		t.Errorf("Confidence = %s, want VERY_HIGH", g.Confidence)
	}
	if !g.Safety.IsSafe {
		t.Error("all-safe group should be safe")
	}
	for _, want := range []domain.RecommendedAction{domain.ActionArchive, domain.ActionDelete, domain.ActionUnsubscribe} {
		if !hasAction(g.SuggestedActions, want) {
			t.Errorf("SuggestedActions = %v, missing %s", g.SuggestedActions, want)
		}
	}
}

func TestBuildGroupsVeryHighRequiresAllUnread(t *testing.T) {
	engine := newTestEngine(newFakeProfileRepo())
	recs := []domain.Recommendation{
		makeRec("a", "shop.example", domain.SenderCategoryPromotion, 100, 100, true, true, true),
		makeRec("b", "shop.example", domain.SenderCategoryPromotion, 100, 120, true, true, true),
		// one opened message disqualifies delete for the whole group
		makeRec("c", "shop.example", domain.SenderCategoryPromotion, 95, 95, false, true, true),
	}

	groups := engine.BuildGroups(recs)
	g := groups[0]
	if g.Confidence != domain.ConfidenceHigh {
		t.Errorf("Confidence = %s, want downgrade to HIGH", g.Confidence)
	}
	if hasAction(g.SuggestedActions, domain.ActionDelete) {
		t.Errorf("SuggestedActions = %v, delete should not be offered", g.SuggestedActions)
	}
	if !hasAction(g.SuggestedActions, domain.ActionArchive) {
		t.Errorf("SuggestedActions = %v, archive should still be offered", g.SuggestedActions)
	}
}

func TestBuildGroupsUnsafeMemberBlocksActions(t *testing.T) {
	engine := newTestEngine(newFakeProfileRepo())
	recs := []domain.Recommendation{
		makeRec("a", "shop.example", domain.SenderCategoryPromotion, 100, 100, true, true, true),
		makeRec("b", "shop.example", domain.SenderCategoryPromotion, 100, 120, true, false, true),
		makeRec("c", "shop.example", domain.SenderCategoryPromotion, 95, 95, true, true, true),
	}

	groups := engine.BuildGroups(recs)
	g := groups[0]
	if len(g.SuggestedActions) != 0 {
		t.Errorf("SuggestedActions = %v, want none with an unsafe member", g.SuggestedActions)
	}
	if g.Safety.UnsafeCount != 1 {
		t.Errorf("UnsafeCount = %d, want 1", g.Safety.UnsafeCount)
	}
	if len(g.Members) != 3 {
		t.Errorf("Members = %d, group should stay visible in full", len(g.Members))
	}
}

func TestBuildGroupsSmallGroupNotActionable(t *testing.T) {
	engine := newTestEngine(newFakeProfileRepo())
	recs := []domain.Recommendation{
		makeRec("a", "shop.example", domain.SenderCategoryPromotion, 100, 100, true, true, true),
		makeRec("b", "shop.example", domain.SenderCategoryPromotion, 100, 120, true, true, true),
	}

	groups := engine.BuildGroups(recs)
	if len(groups[0].SuggestedActions) != 0 {
		t.Errorf("SuggestedActions = %v, want none below minimum group size", groups[0].SuggestedActions)
	}
}

func TestBuildGroupsSortsByConfidence(t *testing.T) {
	engine := newTestEngine(newFakeProfileRepo())
	recs := []domain.Recommendation{
		makeRec("a", "news.example", domain.SenderCategoryNewsletter, 70, 10, false, true, true),
		makeRec("b", "news.example", domain.SenderCategoryNewsletter, 70, 12, false, true, true),
		makeRec("c", "news.example", domain.SenderCategoryNewsletter, 70, 14, false, true, true),
		makeRec("d", "shop.example", domain.SenderCategoryPromotion, 100, 100, true, true, true),
		makeRec("e", "shop.example", domain.SenderCategoryPromotion, 100, 120, true, true, true),
		makeRec("f", "shop.example", domain.SenderCategoryPromotion, 100, 95, true, true, true),
	}

	groups := engine.BuildGroups(recs)
	if len(groups) != 2 {
		t.Fatalf("BuildGroups() returned %d groups, want 2", len(groups))
	}
	if groups[0].Key.SenderDomain != "shop.example" {
		t.Errorf("first group = %s, want the VERY_HIGH shop.example group", groups[0].Key)
	}
	if groups[1].Key.SenderDomain != "news.example" {
		t.Errorf("second group = %s, want news.example", groups[1].Key)
	}
}

func TestBuildGroupsSplitsByDomainAndCategory(t *testing.T) {
	engine := newTestEngine(newFakeProfileRepo())
	recs := []domain.Recommendation{
		makeRec("a", "shop.example", domain.SenderCategoryPromotion, 100, 100, true, true, true),
		makeRec("b", "shop.example", domain.SenderCategoryNewsletter, 100, 100, true, true, true),
		makeRec("c", "other.example", domain.SenderCategoryPromotion, 100, 100, true, true, true),
	}

	groups := engine.BuildGroups(recs)
	if len(groups) != 3 {
		t.Errorf("BuildGroups() returned %d groups, want 3 distinct (domain, category) buckets", len(groups))
	}
}
