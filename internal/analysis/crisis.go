package analysis

import "strings"

// crisisPhrases are scanned as case-insensitive substrings. The list is
// deliberately recall-biased: there is no negation handling or context
// window, so "I would never harm myself" still flags. False positives are
// preferred over missed signals here.
var crisisPhrases = []string{
	"suicide",
	"kill myself",
	"end it all",
	"want to die",
	"no point living",
	"harm myself",
	"better off dead",
	"ending my life",
	"can't go on",
	"nothing matters",
}

// DetectCrisis reports whether the transcript contains crisis language.
// Short-circuits on the first matching phrase.
func DetectCrisis(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range crisisPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
