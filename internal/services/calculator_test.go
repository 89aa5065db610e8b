package services

import (
	"errors"
	"testing"

	"tablet-tracker/internal/models"
)

func TestCalculateTotal(t *testing.T) {
	product := &models.Product{Name: "IBU-24", PackagesPerDisplay: intPtr(6), TabletsPerPackage: intPtr(12)}
	params := models.CalcParams{CardsPerTurn: 4}

	tests := []struct {
		name      string
		sub       models.Submission
		turns     *int
		total     *int
		wantTotal int
		wantTurns int
		wantCards int
	}{
		{
			name:      "packaged displays packs and loose",
			sub:       models.Submission{SubmissionType: models.SubmissionPackaged, DisplaysMade: 2, PacksRemaining: 3, LooseTablets: 5},
			wantTotal: 2*6*12 + 3*12 + 5,
		},
		{
			name:      "bag count is the loose count",
			sub:       models.Submission{SubmissionType: models.SubmissionBagCount, LooseTablets: 40},
			wantTotal: 40,
		},
		{
			name:      "machine from turns",
			sub:       models.Submission{SubmissionType: models.SubmissionMachine},
			turns:     intPtr(10),
			wantTotal: 480,
			wantTurns: 10,
			wantCards: 40,
		},
		{
			name:      "machine total only back-derives turns",
			sub:       models.Submission{SubmissionType: models.SubmissionMachine},
			total:     intPtr(500),
			wantTotal: 500,
			wantTurns: 10,
			wantCards: 40,
		},
		{
			name:      "machine turns and matching total",
			sub:       models.Submission{SubmissionType: models.SubmissionMachine},
			turns:     intPtr(2),
			total:     intPtr(96),
			wantTotal: 96,
			wantTurns: 2,
			wantCards: 8,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tt.sub
			if err := CalculateTotal(&s, product, params, tt.turns, tt.total); err != nil {
				t.Fatalf("CalculateTotal: %v", err)
			}
			if s.CalculatedTotal != tt.wantTotal {
				t.Errorf("total = %d, want %d", s.CalculatedTotal, tt.wantTotal)
			}
			if s.MachineTurns != tt.wantTurns || s.MachineCards != tt.wantCards {
				t.Errorf("turns/cards = %d/%d, want %d/%d", s.MachineTurns, s.MachineCards, tt.wantTurns, tt.wantCards)
			}
		})
	}
}

func TestCalculateTotalRejects(t *testing.T) {
	configured := &models.Product{PackagesPerDisplay: intPtr(6), TabletsPerPackage: intPtr(12)}
	bare := &models.Product{}

	tests := []struct {
		name    string
		sub     models.Submission
		product *models.Product
		params  models.CalcParams
		turns   *int
		total   *int
	}{
		{"packs without tablets per package", models.Submission{SubmissionType: models.SubmissionPackaged, PacksRemaining: 1}, bare, models.CalcParams{CardsPerTurn: 4}, nil, nil},
		{"machine without inputs", models.Submission{SubmissionType: models.SubmissionMachine}, configured, models.CalcParams{CardsPerTurn: 4}, nil, nil},
		{"machine with zero cards per turn", models.Submission{SubmissionType: models.SubmissionMachine}, configured, models.CalcParams{}, intPtr(3), nil},
		{"machine total disagrees with turns", models.Submission{SubmissionType: models.SubmissionMachine}, configured, models.CalcParams{CardsPerTurn: 4}, intPtr(2), intPtr(100)},
		{"unknown type", models.Submission{SubmissionType: "sorted"}, configured, models.CalcParams{CardsPerTurn: 4}, nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tt.sub
			err := CalculateTotal(&s, tt.product, tt.params, tt.turns, tt.total)
			var ve *models.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestPackagedLooseOnlyNeedsNoFactors(t *testing.T) {
	s := models.Submission{SubmissionType: models.SubmissionPackaged, LooseTablets: 17, DamagedTablets: 2}
	if err := CalculateTotal(&s, &models.Product{}, models.CalcParams{}, nil, nil); err != nil {
		t.Fatalf("CalculateTotal: %v", err)
	}
	c := ContributionOf(&s)
	if c.Good != 17 || c.Damaged != 2 {
		t.Fatalf("contribution = %+v, want good 17 damaged 2", c)
	}
}
