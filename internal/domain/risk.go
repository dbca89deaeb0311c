package domain

// RiskLevel buckets a health record by its most severe abnormal reading.
type RiskLevel string

const (
	RiskNormal       RiskLevel = "normal"
	RiskMild         RiskLevel = "mild"
	RiskModerate     RiskLevel = "moderate"
	RiskSevere       RiskLevel = "severe"
	RiskUnclassified RiskLevel = "unclassified"
)

// RiskLevels lists the reported buckets from least to most severe.
var RiskLevels = []RiskLevel{RiskNormal, RiskMild, RiskModerate, RiskSevere}

// ClassifyRisk assigns r to the most severe bucket any of its readings falls
// into. A record with no elevated reading is normal only when every reading is
// inside the normal range; otherwise it is unclassified.
func ClassifyRisk(r HealthRecord) RiskLevel {
	hr := r.HeartRate
	sys := r.BloodPressureSystolic
	dia := r.BloodPressureDiastolic
	bmi := int(r.BMI())

	switch {
	case hr < 40 || hr > 120 || sys >= 180 || dia >= 110 || bmi >= 35:
		return RiskSevere
	case between(hr, 40, 49) || between(hr, 111, 120) ||
		between(sys, 160, 179) || between(dia, 100, 109) || between(bmi, 30, 34):
		return RiskModerate
	case between(hr, 50, 59) || between(hr, 101, 110) ||
		between(sys, 140, 159) || between(dia, 90, 99) || between(bmi, 25, 29):
		return RiskMild
	case between(hr, 60, 100) && between(sys, 90, 139) && between(dia, 60, 89) && between(bmi, 18, 24):
		return RiskNormal
	}
	return RiskUnclassified
}

func between(v, lo, hi int) bool { return v >= lo && v <= hi }
