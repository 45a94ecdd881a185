// Package scheduler derives the future calendar dates at which a
// simulated order becomes eligible to advance.
package scheduler

import (
	"math"
	"math/rand"
	"time"
)

// Fraction bounds of the quoted lead time. Transit starts early in the
// window, delivery lands near the end of it.
const (
	transitFractionMin   = 0.15
	transitFractionMax   = 0.60
	deliveredFractionMin = 0.80
	deliveredFractionMax = 1.00
)

type TriggerDates struct {
	InTransit     time.Time
	ToBeDelivered time.Time
	Delivered     time.Time
}

// Compute draws two independent fractions of the total lead time and
// turns them into trigger dates counted from the creation date.
// trigger_to_be_delivered equals trigger_delivered by construction; the
// quota controller is the only writer that later separates the late
// path's pacing from it.
func Compute(createdAt, estimatedDelivery time.Time, rnd *rand.Rand) TriggerDates {
	created := dateOf(createdAt)
	estimated := dateOf(estimatedDelivery)

	leadDays := int(estimated.Sub(created).Hours() / 24)
	if leadDays < 1 {
		leadDays = 1
	}

	fTransit := transitFractionMin + rnd.Float64()*(transitFractionMax-transitFractionMin)
	fDelivered := deliveredFractionMin + rnd.Float64()*(deliveredFractionMax-deliveredFractionMin)

	offsetTransit := int(math.Ceil(float64(leadDays) * fTransit))
	offsetDelivered := int(math.Ceil(float64(leadDays) * fDelivered))

	delivered := created.AddDate(0, 0, offsetDelivered)
	return TriggerDates{
		InTransit:     created.AddDate(0, 0, offsetTransit),
		ToBeDelivered: delivered,
		Delivered:     delivered,
	}
}

// dateOf strips the time component, keeping the calendar date as seen in
// the timestamp's own location.
func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
