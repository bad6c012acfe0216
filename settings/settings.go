/*
Package settings provides typed access to the system configuration store.

PURPOSE:
  Global configuration (current academic year, maximum grade level, the
  auto-graduate toggle, the active billing term) lives in a key/value
  table with a declared type per row. This package coerces values on read
  and writes them back typed, and supplies the defaults the engines rely
  on when a key has never been set.

READ/WRITE MODEL:
  Settings are read-mostly. Writes are rare, explicit, and - when a
  promotion depends on the new value - wrapped in the same store
  transaction as the promotion itself (the progression engine passes its
  transactional store into SetIn).

TYPES:
  string | integer | boolean | json. A value stored as one type and read
  as another falls back to the caller's default rather than guessing.
*/
package settings

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/elimu/school-engine/school"
)

// Service reads and writes typed settings through a store.
type Service struct {
	store school.Store
	clock school.Clock
}

func New(store school.Store, clock school.Clock) *Service {
	if clock == nil {
		clock = school.SystemClock{}
	}
	return &Service{store: store, clock: clock}
}

// =============================================================================
// TYPED READS
// =============================================================================

// GetString returns the string value for key, or def when unset.
func (s *Service) GetString(ctx context.Context, key, def string) (string, error) {
	return getString(ctx, s.store, key, def)
}

// GetInt returns the integer value for key, or def when unset or not an
// integer setting.
func (s *Service) GetInt(ctx context.Context, key string, def int) (int, error) {
	return getInt(ctx, s.store, key, def)
}

// GetBool returns the boolean value for key, or def when unset.
func (s *Service) GetBool(ctx context.Context, key string, def bool) (bool, error) {
	return getBool(ctx, s.store, key, def)
}

// GetJSON unmarshals a json-typed setting into out. Returns false when
// the key is unset.
func (s *Service) GetJSON(ctx context.Context, key string, out any) (bool, error) {
	setting, err := s.store.GetSetting(ctx, key)
	if err != nil {
		if school.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	if setting.Type != school.SettingJSON {
		return false, &school.ValidationError{Field: key, Message: "setting is not json-typed"}
	}
	return true, json.Unmarshal([]byte(setting.Value), out)
}

// =============================================================================
// WRITES
// =============================================================================

// Set writes a typed setting through the service's own store.
func (s *Service) Set(ctx context.Context, key, value string, typ school.SettingType, description string) error {
	return SetIn(ctx, s.store, s.clock, key, value, typ, description)
}

// SetJSON marshals v and stores it as a json setting.
func (s *Service) SetJSON(ctx context.Context, key string, v any, description string) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.Set(ctx, key, string(raw), school.SettingJSON, description)
}

// SetIn writes a setting through an explicit store, so callers holding a
// transaction can persist the setting atomically with their other writes.
func SetIn(ctx context.Context, store school.Store, clock school.Clock, key, value string, typ school.SettingType, description string) error {
	return store.PutSetting(ctx, school.Setting{
		Key:         key,
		Value:       value,
		Type:        typ,
		Description: description,
		UpdatedAt:   clock.Now(),
	})
}

// =============================================================================
// ENGINE ACCESSORS - Known keys with their defaults
// =============================================================================

// CurrentAcademicYear defaults to the wall-clock year when unset.
func (s *Service) CurrentAcademicYear(ctx context.Context) (string, error) {
	return CurrentAcademicYearIn(ctx, s.store, s.clock)
}

// MaxGradeLevel defaults to 12.
func (s *Service) MaxGradeLevel(ctx context.Context) (int, error) {
	return getInt(ctx, s.store, school.KeyMaxGradeLevel, 12)
}

// AutoGraduateEnabled defaults to true.
func (s *Service) AutoGraduateEnabled(ctx context.Context) (bool, error) {
	return getBool(ctx, s.store, school.KeyAutoGraduate, true)
}

// TermPolicyEnabled gates the "payments only against the active term"
// rule. Defaults to false.
func (s *Service) TermPolicyEnabled(ctx context.Context) (bool, error) {
	return getBool(ctx, s.store, school.KeyTermPolicyEnabled, false)
}

// ActiveTerm returns the explicitly configured term, or the calendar
// default for the current academic year when unset.
func (s *Service) ActiveTerm(ctx context.Context) (school.Term, error) {
	return ActiveTermIn(ctx, s.store, s.clock)
}

// Transaction-scoped variants used by the engines, which must read
// configuration through the same store transaction as their writes.

func CurrentAcademicYearIn(ctx context.Context, store school.Store, clock school.Clock) (string, error) {
	return getString(ctx, store, school.KeyCurrentAcademicYear, strconv.Itoa(clock.Now().Year()))
}

func MaxGradeLevelIn(ctx context.Context, store school.Store) (int, error) {
	return getInt(ctx, store, school.KeyMaxGradeLevel, 12)
}

func AutoGraduateEnabledIn(ctx context.Context, store school.Store) (bool, error) {
	return getBool(ctx, store, school.KeyAutoGraduate, true)
}

func TermPolicyEnabledIn(ctx context.Context, store school.Store) (bool, error) {
	return getBool(ctx, store, school.KeyTermPolicyEnabled, false)
}

func ActiveTermIn(ctx context.Context, store school.Store, clock school.Clock) (school.Term, error) {
	year, err := CurrentAcademicYearIn(ctx, store, clock)
	if err != nil {
		return "", err
	}
	label, err := getString(ctx, store, school.KeyActiveTerm, "")
	if err != nil {
		return "", err
	}
	if label == "" {
		return school.TermForDate(clock.Now(), year), nil
	}
	return school.Term(label), nil
}

// =============================================================================
// COERCION HELPERS
// =============================================================================

func getString(ctx context.Context, store school.Store, key, def string) (string, error) {
	setting, err := store.GetSetting(ctx, key)
	if err != nil {
		if school.IsNotFound(err) {
			return def, nil
		}
		return def, err
	}
	return setting.Value, nil
}

func getInt(ctx context.Context, store school.Store, key string, def int) (int, error) {
	setting, err := store.GetSetting(ctx, key)
	if err != nil {
		if school.IsNotFound(err) {
			return def, nil
		}
		return def, err
	}
	n, convErr := strconv.Atoi(setting.Value)
	if convErr != nil {
		return def, nil
	}
	return n, nil
}

func getBool(ctx context.Context, store school.Store, key string, def bool) (bool, error) {
	setting, err := store.GetSetting(ctx, key)
	if err != nil {
		if school.IsNotFound(err) {
			return def, nil
		}
		return def, err
	}
	b, convErr := strconv.ParseBool(setting.Value)
	if convErr != nil {
		return def, nil
	}
	return b, nil
}
