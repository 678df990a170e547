package phone

// callingCodes maps ITU calling codes to ISO 3166-1 alpha-2 country codes.
// Shared codes (e.g. NANP "1") resolve to the primary member.
var callingCodes = map[string]string{
	"1":   "US",
	"7":   "RU",
	"20":  "EG",
	"27":  "ZA",
	"30":  "GR",
	"31":  "NL",
	"32":  "BE",
	"33":  "FR",
	"34":  "ES",
	"36":  "HU",
	"39":  "IT",
	"40":  "RO",
	"41":  "CH",
	"43":  "AT",
	"44":  "GB",
	"45":  "DK",
	"46":  "SE",
	"47":  "NO",
	"48":  "PL",
	"49":  "DE",
	"51":  "PE",
	"52":  "MX",
	"54":  "AR",
	"55":  "BR",
	"56":  "CL",
	"57":  "CO",
	"60":  "MY",
	"61":  "AU",
	"62":  "ID",
	"63":  "PH",
	"64":  "NZ",
	"65":  "SG",
	"66":  "TH",
	"81":  "JP",
	"82":  "KR",
	"84":  "VN",
	"86":  "CN",
	"90":  "TR",
	"91":  "IN",
	"92":  "PK",
	"93":  "AF",
	"94":  "LK",
	"95":  "MM",
	"98":  "IR",
	"212": "MA",
	"213": "DZ",
	"216": "TN",
	"233": "GH",
	"234": "NG",
	"254": "KE",
	"255": "TZ",
	"256": "UG",
	"351": "PT",
	"352": "LU",
	"353": "IE",
	"354": "IS",
	"358": "FI",
	"370": "LT",
	"371": "LV",
	"372": "EE",
	"380": "UA",
	"385": "HR",
	"420": "CZ",
	"421": "SK",
	"852": "HK",
	"853": "MO",
	"855": "KH",
	"880": "BD",
	"886": "TW",
	"960": "MV",
	"961": "LB",
	"962": "JO",
	"963": "SY",
	"964": "IQ",
	"965": "KW",
	"966": "SA",
	"971": "AE",
	"972": "IL",
	"974": "QA",
	"977": "NP",
}

// countryForDigits resolves the longest calling-code prefix of digits.
func countryForDigits(digits string) (string, bool) {
	for l := 3; l >= 1; l-- {
		if len(digits) < l {
			continue
		}
		if iso, ok := callingCodes[digits[:l]]; ok {
			return iso, true
		}
	}
	return "", false
}
