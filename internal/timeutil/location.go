package timeutil

import (
	"log"
	"time"
)

// Local is the plant's time zone.
var Local = time.UTC

// SetLocation switches Local to the named zone, keeping the previous one if
// the name cannot be loaded.
func SetLocation(name string) {
	if name == "" {
		return
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.Printf("[Time] unknown timezone %q, staying on %s", name, Local)
		return
	}
	Local = loc
}

// Now returns the current time in the plant's zone
func Now() time.Time {
	return time.Now().In(Local)
}
