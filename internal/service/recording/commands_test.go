package recording

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/broiler/internal/apperror"
	"github.com/mamadbah2/broiler/internal/domain/models"
)

type stubReporting struct {
	cycleID int64
}

func (s *stubReporting) CycleSummary(_ context.Context, cycleID int64) (string, error) {
	s.cycleID = cycleID
	return "summary", nil
}

func TestBuildDailyLog(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    DailyLogInput
		wantErr bool
	}{
		{name: "required only", text: "/log 3 150", want: DailyLogInput{MortalityCount: 3, FeedKg: 150}},
		{
			name: "all readings",
			text: "/log 3 150.5 300 820",
			want: DailyLogInput{MortalityCount: 3, FeedKg: 150.5, WaterLiters: 300, SampledWeightGrams: 820},
		},
		{
			name: "feed source after water",
			text: "/log 0 90 250 starter feed",
			want: DailyLogInput{FeedKg: 90, WaterLiters: 250, FeedSource: "starter feed"},
		},
		{name: "feed source only", text: "/log 1 90 grower", want: DailyLogInput{MortalityCount: 1, FeedKg: 90, FeedSource: "grower"}},
		{name: "missing feed", text: "/log 3", wantErr: true},
		{name: "bad mortality", text: "/log many 150", wantErr: true},
		{name: "bad feed", text: "/log 3 lots", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildDailyLog(models.ParseCommand(tt.text))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidArguments)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildHealth(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    HealthInput
		wantErr bool
	}{
		{name: "with cost", text: "/health vaccine newcastle b1 45", want: HealthInput{Kind: models.HealthVaccine, Name: "newcastle b1", Cost: 45}},
		{name: "without cost", text: "/health medicine amoxicillin", want: HealthInput{Kind: models.HealthMedicine, Name: "amoxicillin"}},
		{name: "numeric name kept", text: "/health vaccine 42", want: HealthInput{Kind: models.HealthVaccine, Name: "42"}},
		{name: "bad kind", text: "/health spray x 10", wantErr: true},
		{name: "missing name", text: "/health vaccine", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildHealth(models.ParseCommand(tt.text))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidArguments)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildTransaction(t *testing.T) {
	got, err := buildTransaction(models.ParseCommand("/expense 250 vet visit"), models.TransactionExpense)
	require.NoError(t, err)
	assert.Equal(t, TransactionInput{Type: models.TransactionExpense, Amount: 250, Description: "vet visit"}, got)

	got, err = buildTransaction(models.ParseCommand("/sale 8000"), models.TransactionIncome)
	require.NoError(t, err)
	assert.Equal(t, "", got.Description)

	for _, text := range []string{"/sale", "/sale -5", "/sale 0", "/sale lots"} {
		_, err := buildTransaction(models.ParseCommand(text), models.TransactionIncome)
		assert.ErrorIs(t, err, ErrInvalidArguments, text)
	}
}

func TestHandleCommand(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reporting := &stubReporting{}
	f.svc.reporting = reporting

	_, err := f.svc.HandleCommand(ctx, models.ParseCommand("/log 2 100"), "+966500000000")
	assert.ErrorIs(t, err, apperror.ErrCycleNotFound)

	_, err = f.svc.HandleCommand(ctx, models.ParseCommand("hello"), "+966500000000")
	assert.ErrorIs(t, err, ErrUnsupportedCommand)

	cycle := f.cycle(t)

	reply, err := f.svc.HandleCommand(ctx, models.ParseCommand("/log 2 100 200 640"), "+966500000000")
	require.NoError(t, err)
	assert.Equal(t, "Day 10 logged for House A: 2 dead, 100.00 kg feed. Weight 640 g.", reply)

	reply, err = f.svc.HandleCommand(ctx, models.ParseCommand("/health vaccine gumboro 80"), "+966500000000")
	require.NoError(t, err)
	assert.Equal(t, "vaccine gumboro recorded on 2026-03-15 (cost 80.00).", reply)

	reply, err = f.svc.HandleCommand(ctx, models.ParseCommand("/sale 8000"), "+966500000000")
	require.NoError(t, err)
	assert.Equal(t, "Sale of 8000.00 recorded for House A.", reply)

	reply, err = f.svc.HandleCommand(ctx, models.ParseCommand("/expense 120 vet"), "+966500000000")
	require.NoError(t, err)
	assert.Equal(t, "Expense of 120.00 logged on 2026-03-15. vet.", reply)

	reply, err = f.svc.HandleCommand(ctx, models.ParseCommand("/report"), "+966500000000")
	require.NoError(t, err)
	assert.Equal(t, "summary", reply)
	assert.Equal(t, cycle.ID, reporting.cycleID)

	_, err = f.svc.HandleCommand(ctx, models.ParseCommand("/log x"), "+966500000000")
	assert.ErrorIs(t, err, ErrInvalidArguments)

	got, err := f.svc.GetCycle(ctx, cycle.ID)
	require.NoError(t, err)
	assert.Equal(t, 998, got.CurrentBirdCount)

	txns, err := f.svc.ListTransactions(ctx, cycle.ID)
	require.NoError(t, err)
	assert.Len(t, txns, 2)
}

func TestHandleReportWithoutReporting(t *testing.T) {
	f := newFixture(t)
	f.cycle(t)

	_, err := f.svc.HandleCommand(context.Background(), models.ParseCommand("/report"), "x")
	assert.ErrorIs(t, err, ErrUnsupportedCommand)
}
