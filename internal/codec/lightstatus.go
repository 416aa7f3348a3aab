// Package codec implements the exterior-light status table and the
// CORECONF/CBOR wire encoding shared by every protocol under test.
package codec

import (
	"errors"
	"fmt"
	"math/rand"
)

// LightStatus identifies one of the eight exterior light states an
// on-board unit can report. The integer value is the wire code.
type LightStatus int

const (
	LowBeamHeadlightsOn LightStatus = iota
	HighBeamHeadlightsOn
	LeftTurnSignalOn
	RightTurnSignalOn
	DaytimeRunningLightsOn
	ReverseLightOn
	FogLightOn
	ParkingLightsOn

	numStatuses = iota
)

// ErrUnknownStatus is returned when a status name is not in the table.
var ErrUnknownStatus = errors.New("unknown light status")

// statusNames maps code to name. statusByName is the precomputed
// reverse index; both are fixed at init and never written afterwards.
var statusNames = [numStatuses]string{
	LowBeamHeadlightsOn:    "lowBeamHeadlightsOn",
	HighBeamHeadlightsOn:   "highBeamHeadlightsOn",
	LeftTurnSignalOn:       "leftTurnSignalOn",
	RightTurnSignalOn:      "rightTurnSignalOn",
	DaytimeRunningLightsOn: "daytimeRunningLightsOn",
	ReverseLightOn:         "reverseLightOn",
	FogLightOn:             "fogLightOn",
	ParkingLightsOn:        "parkingLightsOn",
}

var statusByName = make(map[string]LightStatus, numStatuses)

func init() {
	for code, name := range statusNames {
		statusByName[name] = LightStatus(code)
	}
}

// Valid reports whether s is one of the eight table entries.
func (s LightStatus) Valid() bool {
	return s >= 0 && int(s) < numStatuses
}

func (s LightStatus) String() string {
	if !s.Valid() {
		return fmt.Sprintf("LightStatus(%d)", int(s))
	}
	return statusNames[s]
}

// StatusFromName resolves a status name to its code.
func StatusFromName(name string) (LightStatus, error) {
	s, ok := statusByName[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownStatus, name)
	}
	return s, nil
}

// RandomStatus draws a uniformly random status, used by the stub
// servers and tests to vary responses the way the real unit does.
func RandomStatus(rng *rand.Rand) LightStatus {
	return LightStatus(rng.Intn(numStatuses))
}

// Envelope is the canonical application-level message: a vehicle name
// paired with its current light status. All three protocol variants
// carry this logical payload, whatever their wire shape.
type Envelope struct {
	Name   string
	Status LightStatus
}
