package domain

import (
	"errors"
	"math"
	"time"
)

var ErrInvalidHealthRecord = errors.New("invalid health record")

// HealthRecord is one self-reported measurement set.
type HealthRecord struct {
	ID                     int64
	UserID                 int64
	Height                 float64 // cm
	Weight                 float64 // kg
	HeartRate              int     // bpm
	BloodPressureSystolic  int     // mmHg
	BloodPressureDiastolic int     // mmHg
	Symptoms               string
	CreatedAt              time.Time
}

// HealthRecordPatch holds the optional fields of a partial update.
type HealthRecordPatch struct {
	Height                 *float64
	Weight                 *float64
	HeartRate              *int
	BloodPressureSystolic  *int
	BloodPressureDiastolic *int
	Symptoms               *string
}

// Validate checks the measurement ranges.
func (r HealthRecord) Validate() error {
	switch {
	case !positive(r.Height):
		return fieldError("height must be a positive number")
	case !positive(r.Weight):
		return fieldError("weight must be a positive number")
	case r.HeartRate <= 0:
		return fieldError("heart rate must be positive")
	case r.BloodPressureSystolic <= 0:
		return fieldError("systolic blood pressure must be positive")
	case r.BloodPressureDiastolic <= 0:
		return fieldError("diastolic blood pressure must be positive")
	case r.BloodPressureDiastolic >= r.BloodPressureSystolic:
		return fieldError("diastolic should be less than systolic")
	}
	return nil
}

// Apply returns r with every non-nil field of p applied.
func (r HealthRecord) Apply(p HealthRecordPatch) HealthRecord {
	if p.Height != nil {
		r.Height = *p.Height
	}
	if p.Weight != nil {
		r.Weight = *p.Weight
	}
	if p.HeartRate != nil {
		r.HeartRate = *p.HeartRate
	}
	if p.BloodPressureSystolic != nil {
		r.BloodPressureSystolic = *p.BloodPressureSystolic
	}
	if p.BloodPressureDiastolic != nil {
		r.BloodPressureDiastolic = *p.BloodPressureDiastolic
	}
	if p.Symptoms != nil {
		r.Symptoms = *p.Symptoms
	}
	return r
}

// BMI returns the body mass index, or 0 when height is unknown.
func (r HealthRecord) BMI() float64 {
	if r.Height <= 0 {
		return 0
	}
	m := r.Height / 100
	return r.Weight / (m * m)
}

type validationError struct{ msg string }

func (e *validationError) Error() string { return e.msg }
func (e *validationError) Unwrap() error { return ErrInvalidHealthRecord }

// positive rejects NaN along with infinities and values <= 0.
func positive(f float64) bool {
	return f > 0 && !math.IsInf(f, 1)
}

func fieldError(msg string) error { return &validationError{msg: msg} }
