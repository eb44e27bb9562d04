package model

// DefaultPlaces is the gazetteer of recognized place names for the default service area
func DefaultPlaces() []string {
	return []string{
		"lucknow", "kanpur", "agra", "varanasi", "meerut", "allahabad", "prayagraj",
		"bareilly", "ghaziabad", "noida", "aligarh", "gorakhpur", "saharanpur",
		"muzaffarnagar", "mathura", "firozabad", "jhansi", "unnao", "sitapur", "etawah",
		"orai", "hardoi", "fatehpur", "ayodhya", "faizabad", "sultanpur", "azamgarh",
		"bulandshahr", "hapur", "sambhal", "amroha", "rampur", "moradabad",
		"shahjahanpur", "farrukhabad", "etah", "mainpuri", "budaun", "pilibhit",
		"lakhimpur", "kheri",
	}
}

// GrievanceKeywords marks text that describes a civic problem
var GrievanceKeywords = []string{
	"problem", "issue", "complaint", "grievance", "trouble", "difficulty",
	"water", "electricity", "road", "pothole", "drainage", "sewage", "garbage",
	"street light", "corruption", "bribery", "harassment", "police", "hospital",
	"school", "transport", "bus", "broken", "damaged",
}

// SpamIndicators are greeting and test words typical of non-grievance calls
var SpamIndicators = []string{
	"test", "testing", "check", "hello", "hi", "namaste",
	"just checking", "time pass", "मजाक", "टेस्ट",
}

// MeaningfulMarkers are alternate signs of a real request for help
var MeaningfulMarkers = []string{
	"issue", "problem", "help", "complaint", "fix", "repair", "broken", "not working",
	"समस्या", "परेशानी", "मदद", "ठीक", "काम नहीं", "खराब",
}
