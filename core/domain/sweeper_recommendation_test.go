package domain

import "testing"

func TestScoreToBucket(t *testing.T) {
	tests := []struct {
		score float64
		want  ConfidenceBucket
	}{
		{0, ConfidenceLow},
		{50, ConfidenceLow},
		{59.9, ConfidenceLow},
		{60, ConfidenceMedium},
		{70, ConfidenceMedium},
		{79.9, ConfidenceMedium},
		{80, ConfidenceHigh},
		{90, ConfidenceHigh},
		{95, ConfidenceVeryHigh},
		{100, ConfidenceVeryHigh},
	}

	for _, tt := range tests {
		if got := ScoreToBucket(tt.score); got != tt.want {
			t.Errorf("ScoreToBucket(%.1f) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestConfidenceBucketAtLeast(t *testing.T) {
	tests := []struct {
		bucket ConfidenceBucket
		min    ConfidenceBucket
		want   bool
	}{
		{ConfidenceVeryHigh, ConfidenceLow, true},
		{ConfidenceVeryHigh, ConfidenceVeryHigh, true},
		{ConfidenceHigh, ConfidenceMedium, true},
		{ConfidenceHigh, ConfidenceVeryHigh, false},
		{ConfidenceMedium, ConfidenceHigh, false},
		{ConfidenceLow, ConfidenceLow, true},
		{ConfidenceLow, ConfidenceMedium, false},
	}

	for _, tt := range tests {
		if got := tt.bucket.AtLeast(tt.min); got != tt.want {
			t.Errorf("%s.AtLeast(%s) = %v, want %v", tt.bucket, tt.min, got, tt.want)
		}
	}
}

func TestSafetyCheckTagDescribe(t *testing.T) {
	tags := []SafetyCheckTag{
		SafetyReplied,
		SafetyHumanSender,
		SafetyImportanceKeyword,
		SafetyTooRecent,
		SafetyProtectedSender,
	}
	for _, tag := range tags {
		if Unsafe(tag).Reason == "" {
			t.Errorf("tag %s has no description", tag)
		}
	}
	if !Safe().IsSafe {
		t.Error("Safe() should pass")
	}
}
