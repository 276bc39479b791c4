package domain

import "testing"

func TestClassifyBoundaries(t *testing.T) {
	thresholds := DefaultTierThresholds()

	tests := []struct {
		name   string
		points int64
		want   Tier
	}{
		{name: "zero balance is bronze", points: 0, want: TierBronze},
		{name: "just below silver stays bronze", points: 199, want: TierBronze},
		{name: "silver boundary is inclusive", points: 200, want: TierSilver},
		{name: "just below gold stays silver", points: 549, want: TierSilver},
		{name: "gold boundary is inclusive", points: 550, want: TierGold},
		{name: "far above gold stays gold", points: 1_000_000, want: TierGold},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := thresholds.Classify(tt.points)
			if got != tt.want {
				t.Fatalf("expected tier=%s, got %s", tt.want, got)
			}
		})
	}
}

func TestClassifyIsMonotonic(t *testing.T) {
	thresholds := TierThresholds{Silver: 150, Gold: 400}

	prev := thresholds.Classify(0)
	for p := int64(1); p <= 500; p++ {
		got := thresholds.Classify(p)
		if prev.Outranks(got) {
			t.Fatalf("classification regressed from %s to %s at points=%d", prev, got, p)
		}
		prev = got
	}
}

func TestFloorRoundTripsThroughClassify(t *testing.T) {
	thresholds := DefaultTierThresholds()

	for _, tier := range []Tier{TierBronze, TierSilver, TierGold} {
		floor := thresholds.FloorFor(tier)
		if got := thresholds.Classify(floor); got != tier {
			t.Fatalf("expected Classify(FloorFor(%s))=%s, got %s", tier, tier, got)
		}
	}
}

func TestOrDefaultRejectsMalformedThresholds(t *testing.T) {
	tests := []struct {
		name string
		in   TierThresholds
		want TierThresholds
	}{
		{
			name: "valid thresholds pass through",
			in:   TierThresholds{Silver: 100, Gold: 300},
			want: TierThresholds{Silver: 100, Gold: 300},
		},
		{
			name: "zero value falls back to defaults",
			in:   TierThresholds{},
			want: DefaultTierThresholds(),
		},
		{
			name: "gold below silver falls back to defaults",
			in:   TierThresholds{Silver: 500, Gold: 400},
			want: DefaultTierThresholds(),
		},
		{
			name: "gold equal to silver falls back to defaults",
			in:   TierThresholds{Silver: 300, Gold: 300},
			want: DefaultTierThresholds(),
		},
		{
			name: "non-positive silver falls back to defaults",
			in:   TierThresholds{Silver: 0, Gold: 550},
			want: DefaultTierThresholds(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.OrDefault()
			if got != tt.want {
				t.Fatalf("expected thresholds=%+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestParseTier(t *testing.T) {
	if _, ok := ParseTier("platinum"); ok {
		t.Fatalf("expected unknown tier to be rejected")
	}
	tier, ok := ParseTier("silver")
	if !ok || tier != TierSilver {
		t.Fatalf("expected silver to parse, got %q ok=%t", tier, ok)
	}
}

func TestNextTierAt(t *testing.T) {
	thresholds := DefaultTierThresholds()
	if got := thresholds.NextTierAt(TierBronze); got != 200 {
		t.Fatalf("expected next tier for bronze at 200, got %d", got)
	}
	if got := thresholds.NextTierAt(TierSilver); got != 550 {
		t.Fatalf("expected next tier for silver at 550, got %d", got)
	}
	if got := thresholds.NextTierAt(TierGold); got != 0 {
		t.Fatalf("expected no next tier for gold, got %d", got)
	}
}
