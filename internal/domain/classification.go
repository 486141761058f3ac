package domain

// Classification is a category label with a confidence in [0, 1].
type Classification struct {
	NewsType   string
	Confidence float64
}

// FallbackOutcome is the result of an external classification attempt.
// The zero value is Unavailable.
type FallbackOutcome struct {
	classification Classification
	available      bool
}

// Classified wraps a usable external result.
func Classified(newsType string, confidence float64) FallbackOutcome {
	return FallbackOutcome{
		classification: Classification{NewsType: newsType, Confidence: confidence},
		available:      true,
	}
}

// Unavailable signals that the capability produced nothing usable.
func Unavailable() FallbackOutcome {
	return FallbackOutcome{}
}

// Get returns the classification and whether it is present.
func (o FallbackOutcome) Get() (Classification, bool) {
	return o.classification, o.available
}
