package cyclone

// RiskLevel is a presentation bucket for a gust speed.
type RiskLevel struct {
	Label string `json:"level"`
	Tier  string `json:"tier"`
}

type riskBucket struct {
	min     float64
	level   RiskLevel
	message string
}

// Ordered from most to least severe.
var riskBuckets = []riskBucket{
	{120, RiskLevel{"Cyclone Detected", "danger"},
		"Extreme gusts detected. Cyclonic formation confirmed. Major risk to structures and shipping."},
	{90, RiskLevel{"Cyclone Alert", "warning"},
		"Very strong gusts observed. Pre-cyclonic conditions likely. Maximum caution advised."},
	{70, RiskLevel{"Heightened Vigilance", "caution"},
		"Significant gusts. Close weather monitoring required. Avoid outdoor activities."},
	{50, RiskLevel{"Surveillance", "normal"},
		"Moderate gusts detected. Unstable weather conditions. Vigilance advised."},
}

var calmBucket = riskBucket{
	level:   RiskLevel{"Normal", "safe"},
	message: "Light gusts. Stable weather conditions in the analysed area.",
}

func bucketFor(gustKMH float64) riskBucket {
	for _, b := range riskBuckets {
		if gustKMH >= b.min {
			return b
		}
	}
	return calmBucket
}

// RiskLevelFromGusts buckets a gust speed in km/h:
// <50 Normal, 50-69 Surveillance, 70-89 Heightened Vigilance,
// 90-119 Cyclone Alert, >=120 Cyclone Detected.
func RiskLevelFromGusts(gustKMH float64) RiskLevel {
	return bucketFor(gustKMH).level
}

// RiskMessageFromGusts returns the advisory text for the same buckets.
func RiskMessageFromGusts(gustKMH float64) string {
	return bucketFor(gustKMH).message
}
