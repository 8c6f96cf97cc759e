package model

import "strings"

// countryNames maps ISO-3166 alpha-2 codes to display names for the
// jurisdictions the pipeline is routinely used with. Unknown codes fall
// back to the code itself.
var countryNames = map[string]string{
	"US": "United States",
	"BR": "Brazil",
	"DE": "Germany",
	"FR": "France",
	"GB": "United Kingdom",
	"IT": "Italy",
	"ES": "Spain",
	"PT": "Portugal",
	"NL": "Netherlands",
	"BE": "Belgium",
	"AT": "Austria",
	"CH": "Switzerland",
	"PL": "Poland",
	"CZ": "Czech Republic",
	"SE": "Sweden",
	"NO": "Norway",
	"DK": "Denmark",
	"FI": "Finland",
	"IE": "Ireland",
	"AU": "Australia",
	"NZ": "New Zealand",
	"CA": "Canada",
	"MX": "Mexico",
	"AR": "Argentina",
	"CL": "Chile",
	"CO": "Colombia",
	"PE": "Peru",
	"JP": "Japan",
	"KR": "South Korea",
	"CN": "China",
	"IN": "India",
	"SG": "Singapore",
	"HK": "Hong Kong",
	"AE": "United Arab Emirates",
	"SA": "Saudi Arabia",
	"ZA": "South Africa",
	"NG": "Nigeria",
	"EG": "Egypt",
	"IL": "Israel",
	"TR": "Turkey",
	"RU": "Russia",
	"UA": "Ukraine",
}

// officialLanguages maps country codes to the primary official language,
// used by the confidence synthesizer to flag language mismatches.
var officialLanguages = map[string]string{
	"US": "en", "GB": "en", "IE": "en", "AU": "en", "NZ": "en", "CA": "en",
	"IN": "en", "SG": "en", "ZA": "en", "NG": "en",
	"BR": "pt", "PT": "pt",
	"DE": "de", "AT": "de", "CH": "de",
	"FR": "fr",
	"IT": "it",
	"ES": "es", "MX": "es", "AR": "es", "CL": "es", "CO": "es", "PE": "es",
	"NL": "nl", "BE": "nl",
	"PL": "pl", "CZ": "cs", "SE": "sv", "NO": "no", "DK": "da", "FI": "fi",
	"JP": "ja", "KR": "ko", "CN": "zh", "HK": "zh",
	"AE": "ar", "SA": "ar", "EG": "ar",
	"IL": "he", "TR": "tr", "RU": "ru", "UA": "uk",
}

// CountryName returns the display name for an ISO country code, or the
// (uppercased) code itself when unknown.
func CountryName(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if name, ok := countryNames[code]; ok {
		return name
	}
	return code
}

// OfficialLanguage returns the primary official language code for a
// country, or "" when unknown.
func OfficialLanguage(code string) string {
	return officialLanguages[strings.ToUpper(strings.TrimSpace(code))]
}
