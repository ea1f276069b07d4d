package geo

// ccTLDTable maps hostname suffixes to ISO country codes. Compound
// suffixes (co.uk, com.cn) sit alongside their bare ccTLD so the
// longest-suffix rule picks the most specific entry.
var ccTLDTable = map[string]string{
	"af":     "AF",
	"ar":     "AR",
	"au":     "AU",
	"com.au": "AU",
	"br":     "BR",
	"com.br": "BR",
	"by":     "BY",
	"ca":     "CA",
	"ch":     "CH",
	"cn":     "CN",
	"com.cn": "CN",
	"co":     "CO",
	"de":     "DE",
	"eg":     "EG",
	"es":     "ES",
	"fr":     "FR",
	"id":     "ID",
	"il":     "IL",
	"in":     "IN",
	"iq":     "IQ",
	"ir":     "IR",
	"it":     "IT",
	"jp":     "JP",
	"co.jp":  "JP",
	"kp":     "KP",
	"kr":     "KR",
	"co.kr":  "KR",
	"lb":     "LB",
	"ly":     "LY",
	"mm":     "MM",
	"mx":     "MX",
	"my":     "MY",
	"ng":     "NG",
	"nl":     "NL",
	"no":     "NO",
	"pk":     "PK",
	"pl":     "PL",
	"ru":     "RU",
	"com.ru": "RU",
	"sa":     "SA",
	"sd":     "SD",
	"se":     "SE",
	"sg":     "SG",
	"so":     "SO",
	"sy":     "SY",
	"th":     "TH",
	"tr":     "TR",
	"com.tr": "TR",
	"tw":     "TW",
	"ua":     "UA",
	"uk":     "GB",
	"co.uk":  "GB",
	"us":     "US",
	"ve":     "VE",
	"vn":     "VN",
	"ye":     "YE",
	"za":     "ZA",
	"co.za":  "ZA",
}
