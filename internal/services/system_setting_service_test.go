package services

import (
	"errors"
	"testing"

	"tablet-tracker/internal/models"
	"tablet-tracker/internal/store"
)

func TestCardsPerTurnSetting(t *testing.T) {
	f := newFixture(t)

	err := f.settings.UpdateSetting(f.ctx, models.SettingCardsPerTurn, "0", "admin")
	var ve *models.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("zero cards_per_turn: expected ValidationError, got %v", err)
	}

	res, err := f.submissions.RecordSubmission(f.ctx, &models.CreateSubmissionRequest{
		EmployeeName:   "sam",
		ProductName:    f.product.Name,
		SubmissionType: models.SubmissionMachine,
		MachineTurns:   intPtr(10),
	})
	if err != nil {
		t.Fatalf("RecordSubmission: %v", err)
	}
	sub, _ := f.submissions.GetSubmission(f.ctx, res.SubmissionID)
	if sub.MachineCards != 40 || sub.CalculatedTotal != 480 {
		t.Fatalf("default cards/total = %d/%d, want 40/480", sub.MachineCards, sub.CalculatedTotal)
	}

	if err := f.settings.UpdateSetting(f.ctx, models.SettingCardsPerTurn, "6", "admin"); err != nil {
		t.Fatalf("UpdateSetting: %v", err)
	}
	res, err = f.submissions.RecordSubmission(f.ctx, &models.CreateSubmissionRequest{
		EmployeeName:   "sam",
		ProductName:    f.product.Name,
		SubmissionType: models.SubmissionMachine,
		MachineTurns:   intPtr(10),
	})
	if err != nil {
		t.Fatalf("RecordSubmission: %v", err)
	}
	sub, _ = f.submissions.GetSubmission(f.ctx, res.SubmissionID)
	if sub.MachineCards != 60 || sub.CalculatedTotal != 720 {
		t.Fatalf("configured cards/total = %d/%d, want 60/720", sub.MachineCards, sub.CalculatedTotal)
	}

	setting, err := f.settings.GetSetting(f.ctx, models.SettingCardsPerTurn)
	if err != nil {
		t.Fatalf("GetSetting: %v", err)
	}
	if setting.SettingValue != "6" || setting.UpdatedBy != "admin" {
		t.Fatalf("setting = %+v", setting)
	}
}

func TestMalformedSettingFallsBackToDefault(t *testing.T) {
	f := newFixture(t)
	err := f.store.RunInTx(f.ctx, func(tx store.Tx) error {
		return tx.UpsertSetting(f.ctx, models.SettingCardsPerTurn, "many", "", "import")
	})
	if err != nil {
		t.Fatalf("UpsertSetting: %v", err)
	}

	var params models.CalcParams
	err = f.store.View(f.ctx, func(tx store.Tx) error {
		var err error
		params, err = f.settings.ResolveCalcParams(f.ctx, tx)
		return err
	})
	if err != nil {
		t.Fatalf("ResolveCalcParams: %v", err)
	}
	if params.CardsPerTurn != 4 {
		t.Fatalf("cards per turn = %d, want default 4", params.CardsPerTurn)
	}
}
