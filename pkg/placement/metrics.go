package placement

import "github.com/uber-go/tally"

// Metrics holds the tally instruments emitted by the placement controller.
type Metrics struct {
	PlaceSuccess tally.Counter
	PlaceReject  tally.Counter
	PlaceFail    tally.Counter

	TrialsPerPlacement tally.Gauge
	PlaceDuration      tally.Timer
}

// NewMetrics returns a Metrics rooted below the given tally scope.
func NewMetrics(scope tally.Scope) *Metrics {
	placeScope := scope.SubScope("place")
	return &Metrics{
		PlaceSuccess: placeScope.Tagged(map[string]string{"result": "success"}).Counter("total"),
		PlaceReject:  placeScope.Tagged(map[string]string{"result": "reject"}).Counter("total"),
		PlaceFail:    placeScope.Tagged(map[string]string{"result": "fail"}).Counter("total"),

		TrialsPerPlacement: placeScope.Gauge("trials"),
		PlaceDuration:      placeScope.Timer("duration"),
	}
}
