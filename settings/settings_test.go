package settings_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elimu/school-engine/school"
	"github.com/elimu/school-engine/settings"
	"github.com/elimu/school-engine/store/sqlite"
)

var testNow = time.Date(2026, time.March, 15, 10, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*settings.Service, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return settings.New(store, school.FixedClock{T: testNow}), store
}

func TestDefaults_WhenUnset(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	year, err := svc.CurrentAcademicYear(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2026", year, "academic year defaults to the clock year")

	maxLevel, err := svc.MaxGradeLevel(ctx)
	require.NoError(t, err)
	assert.Equal(t, 12, maxLevel)

	auto, err := svc.AutoGraduateEnabled(ctx)
	require.NoError(t, err)
	assert.True(t, auto)

	gated, err := svc.TermPolicyEnabled(ctx)
	require.NoError(t, err)
	assert.False(t, gated)

	term, err := svc.ActiveTerm(ctx)
	require.NoError(t, err)
	assert.Equal(t, school.Term("TERM ONE 2026"), term, "March falls in the first term")
}

func TestSet_RoundTrips(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, school.KeyCurrentAcademicYear, "2027", school.SettingString, "academic year"))
	require.NoError(t, svc.Set(ctx, school.KeyMaxGradeLevel, "8", school.SettingInteger, "terminal level"))
	require.NoError(t, svc.Set(ctx, school.KeyAutoGraduate, "false", school.SettingBoolean, ""))
	require.NoError(t, svc.Set(ctx, school.KeyActiveTerm, "TERM TWO 2027", school.SettingString, ""))

	year, err := svc.CurrentAcademicYear(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2027", year)

	maxLevel, err := svc.MaxGradeLevel(ctx)
	require.NoError(t, err)
	assert.Equal(t, 8, maxLevel)

	auto, err := svc.AutoGraduateEnabled(ctx)
	require.NoError(t, err)
	assert.False(t, auto)

	term, err := svc.ActiveTerm(ctx)
	require.NoError(t, err)
	assert.Equal(t, school.Term("TERM TWO 2027"), term, "explicit setting overrides the calendar default")
}

func TestSet_StampsClockAndOverwrites(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, school.KeyMaxGradeLevel, "6", school.SettingInteger, "old"))
	require.NoError(t, svc.Set(ctx, school.KeyMaxGradeLevel, "9", school.SettingInteger, "new"))

	setting, err := store.GetSetting(ctx, school.KeyMaxGradeLevel)
	require.NoError(t, err)
	assert.Equal(t, "9", setting.Value)
	assert.Equal(t, "new", setting.Description)
	assert.True(t, setting.UpdatedAt.Equal(testNow))
}

func TestGetInt_MalformedValueFallsBack(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, school.KeyMaxGradeLevel, "twelve", school.SettingString, ""))

	maxLevel, err := svc.MaxGradeLevel(ctx)
	require.NoError(t, err)
	assert.Equal(t, 12, maxLevel, "non-numeric value yields the default, not an error")
}

func TestGetJSON(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	var out map[string]int
	found, err := svc.GetJSON(ctx, "fee_discounts", &out)
	require.NoError(t, err)
	assert.False(t, found, "unset json key reports absence")

	require.NoError(t, svc.SetJSON(ctx, "fee_discounts", map[string]int{"sibling": 10}, ""))

	found, err = svc.GetJSON(ctx, "fee_discounts", &out)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 10, out["sibling"])

	// A key of a different declared type is refused rather than coerced.
	require.NoError(t, svc.Set(ctx, school.KeyActiveTerm, "TERM ONE 2026", school.SettingString, ""))
	_, err = svc.GetJSON(ctx, school.KeyActiveTerm, &out)
	assert.True(t, school.IsValidation(err))
}

func TestSetIn_WritesThroughTransaction(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	clock := school.FixedClock{T: testNow}

	err := store.WithTx(ctx, func(tx school.Store) error {
		return settings.SetIn(ctx, tx, clock, school.KeyTermPolicyEnabled, "true", school.SettingBoolean, "")
	})
	require.NoError(t, err)

	gated, err := svc.TermPolicyEnabled(ctx)
	require.NoError(t, err)
	assert.True(t, gated)
}
