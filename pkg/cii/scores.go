package cii

// staticScores is the boot-time conflict/instability index. Values are
// on an open 0-100 scale; higher is worse. The table is a point-in-time
// snapshot, not a live feed, and is expected to be corrected through
// overrides or the runtime update endpoint.
var staticScores = map[string]float64{
	// Active conflict / severe instability.
	"AF": 85.0,
	"SY": 88.2,
	"YE": 81.4,
	"SO": 82.7,
	"SD": 79.3,
	"KP": 90.1,
	"UA": 74.6,
	"RU": 72.8,
	"MM": 76.5,
	"LY": 73.9,
	"ML": 66.2,
	"IQ": 68.4,
	"IR": 67.1,
	"HT": 71.8,

	// Elevated tension.
	"PK": 56.3,
	"NG": 49.7,
	"ET": 52.9,
	"LB": 58.6,
	"BY": 57.2,
	"VE": 51.4,
	"CO": 41.8,
	"EG": 44.5,
	"IL": 47.9,
	"TR": 38.7,
	"CN": 42.3,
	"SA": 36.1,
	"ZA": 35.4,

	// Baseline.
	"MX": 34.0,
	"IN": 33.2,
	"BR": 28.6,
	"ID": 26.9,
	"TH": 24.1,
	"KR": 22.1,
	"US": 18.3,
	"GB": 15.2,
	"FR": 16.7,
	"PL": 14.8,
	"IT": 13.9,
	"ES": 12.6,
	"DE": 11.4,
	"CA": 10.2,
	"AU": 10.8,
	"NL": 9.3,
	"JP": 8.1,
	"SE": 7.4,
	"NO": 6.2,
	"SG": 5.8,
	"CH": 4.9,
}
