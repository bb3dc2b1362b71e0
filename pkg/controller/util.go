package controller

import (
	"fmt"
	"math/rand/v2"
)

// randSuffix generates a short, low-collision-risk suffix for
// controller-created object names, in the same spirit as the teacher's
// use of math/rand/v2 for scheduling choices rather than crypto/rand —
// these are naming collisions to avoid, not a security boundary.
func randSuffix() string {
	return fmt.Sprintf("%05d", rand.IntN(100000))
}
