package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestDomainOf(t *testing.T) {
	tests := []struct {
		email string
		want  string
	}{
		{"user@example.com", "example.com"},
		{"User@Example.COM", "example.com"},
		{"first.last@sub.shop.example", "sub.shop.example"},
		{"nodomain", ""},
		{"trailing@", ""},
	}

	for _, tt := range tests {
		if got := DomainOf(tt.email); got != tt.want {
			t.Errorf("DomainOf(%q) = %q, want %q", tt.email, got, tt.want)
		}
	}
}

func TestNewSenderProfile(t *testing.T) {
	ownerID := uuid.New()
	seen := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	p := NewSenderProfile(ownerID, "Deals@Shop.Example", seen)

	if p.Email != "deals@shop.example" {
		t.Errorf("Email = %q, want lowercased", p.Email)
	}
	if p.Domain != "shop.example" {
		t.Errorf("Domain = %q, want shop.example", p.Domain)
	}
	if p.Category != SenderCategoryUnknown {
		t.Errorf("Category = %s, want unknown", p.Category)
	}
	if !p.FirstSeenAt.Equal(seen) {
		t.Errorf("FirstSeenAt = %v, want %v", p.FirstSeenAt, seen)
	}
}

func TestRecordSighting(t *testing.T) {
	p := NewSenderProfile(uuid.New(), "a@b.example", time.Now())

	p.RecordSighting(false, time.Now())
	p.RecordSighting(true, time.Now())

	if p.TotalSeen != 2 {
		t.Errorf("TotalSeen = %d, want 2", p.TotalSeen)
	}
	if p.RepliedCount != 1 {
		t.Errorf("RepliedCount = %d, want 1", p.RepliedCount)
	}
	if p.ReplyRate != 0.5 {
		t.Errorf("ReplyRate = %f, want 0.5", p.ReplyRate)
	}
	if p.LastInteractionAt == nil {
		t.Error("reply should set LastInteractionAt")
	}
}

func TestRecordFeedback(t *testing.T) {
	p := NewSenderProfile(uuid.New(), "a@b.example", time.Now())
	p.TotalSeen = 10

	p.RecordFeedback(FeedbackOpened, time.Now())
	p.RecordFeedback(FeedbackSpamMarked, time.Now())

	if p.OpenedCount != 1 || p.SpamMarkedCount != 1 {
		t.Errorf("counters = opened %d, spam %d, want 1 and 1", p.OpenedCount, p.SpamMarkedCount)
	}
	if p.OpenRate != 0.1 {
		t.Errorf("OpenRate = %f, want 0.1", p.OpenRate)
	}
	if p.SpamScore != 0.1 {
		t.Errorf("SpamScore = %f, want 0.1", p.SpamScore)
	}
}

func TestRecomputeImportance(t *testing.T) {
	t.Run("protected sender is pinned near max", func(t *testing.T) {
		p := NewSenderProfile(uuid.New(), "boss@corp.example", time.Now())
		p.MarkProtected()

		if p.Category != SenderCategoryVIP {
			t.Errorf("Category = %s, want vip", p.Category)
		}
		if p.ImportanceScore != 0.98 {
			t.Errorf("ImportanceScore = %f, want 0.98", p.ImportanceScore)
		}
	})

	t.Run("engagement raises the score", func(t *testing.T) {
		engaged := NewSenderProfile(uuid.New(), "friend@mail.example", time.Now())
		engaged.TotalSeen = 10
		engaged.RepliedCount = 5
		engaged.OpenedCount = 9
		engaged.RecomputeImportance()

		ignored := NewSenderProfile(uuid.New(), "promo@shop.example", time.Now())
		ignored.TotalSeen = 10
		ignored.Category = SenderCategoryPromotion
		ignored.RecomputeImportance()

		if engaged.ImportanceScore <= ignored.ImportanceScore {
			t.Errorf("engaged sender (%f) should outrank ignored promo sender (%f)",
				engaged.ImportanceScore, ignored.ImportanceScore)
		}
	})

	t.Run("spam markings drag the score down", func(t *testing.T) {
		p := NewSenderProfile(uuid.New(), "spam@junk.example", time.Now())
		p.TotalSeen = 10
		p.SpamMarkedCount = 8
		p.Category = SenderCategorySpam
		p.RecomputeImportance()

		if p.ImportanceScore != 0 {
			t.Errorf("ImportanceScore = %f, want clamped to 0", p.ImportanceScore)
		}
	})

	t.Run("unprotected score is capped below protected", func(t *testing.T) {
		p := NewSenderProfile(uuid.New(), "vip@corp.example", time.Now())
		p.TotalSeen = 10
		p.RepliedCount = 10
		p.OpenedCount = 10
		p.Category = SenderCategoryVIP
		now := time.Now()
		p.LastInteractionAt = &now
		p.RecomputeImportance()

		if p.ImportanceScore > 0.95 {
			t.Errorf("ImportanceScore = %f, want <= 0.95", p.ImportanceScore)
		}
	})
}

func TestAppearsHuman(t *testing.T) {
	p := NewSenderProfile(uuid.New(), "a@b.example", time.Now())
	if p.AppearsHuman() {
		t.Error("fresh unknown sender should not appear human")
	}

	p.TotalSeen = 4
	p.RepliedCount = 1
	p.RecomputeImportance()
	if !p.AppearsHuman() {
		t.Error("sender the owner replies to should appear human")
	}

	q := NewSenderProfile(uuid.New(), "c@d.example", time.Now())
	q.Category = SenderCategoryPersonal
	if !q.AppearsHuman() {
		t.Error("personal sender should appear human")
	}
}
