/*
Package reminder sends the day-before notices for upcoming reservations.

PURPOSE:
  For a target date (today + DaysAhead in the configured zone):
    - one reservation.reminder per reservation whose contact is a valid email
    - one reservation.digest to staff listing the reservations that got a
      reminder, when there is at least one and one valid staff address

  The package only reads the reservation store. Delivery is the notifier's
  job; see package notify.

SEE ALSO:
  - scheduler.go: periodic trigger
  - cmd/remind: one-shot trigger for cron
*/
package reminder

import (
	"fmt"
	"strings"
	"time"

	"github.com/warp/booking-engine/booking"
)

// Plan builds the notifications for target. Reservations with unparseable
// dates never match. Staff addresses are checked and de-duplicated.
func Plan(reservations []booking.Reservation, target booking.Date, staff []string, now time.Time) []booking.Notification {
	var reachable []booking.Reservation
	for _, r := range reservations {
		if d, ok := r.Day(); ok && d == target && booking.ValidEmail(r.Contact) {
			reachable = append(reachable, r)
		}
	}

	var out []booking.Notification
	for i := range reachable {
		r := reachable[i]
		out = append(out, booking.Notification{
			Kind:        booking.KindReservationReminder,
			Recipients:  []string{r.Contact},
			Reservation: &r,
			TargetDate:  target.String(),
			RequestedAt: now,
		})
	}

	recipients := staffAddresses(staff)
	if len(reachable) > 0 && len(recipients) > 0 {
		out = append(out, booking.Notification{
			Kind:         booking.KindStaffDigest,
			Recipients:   recipients,
			TargetDate:   target.String(),
			Reservations: reachable,
			RequestedAt:  now,
		})
	}
	return out
}

// staffAddresses trims, drops malformed addresses and keeps the first of
// case-insensitive repeats.
func staffAddresses(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, a := range in {
		a = strings.TrimSpace(a)
		key := strings.ToLower(a)
		if seen[key] || !booking.ValidEmail(a) {
			continue
		}
		seen[key] = true
		out = append(out, a)
	}
	return out
}

// deliveryKey identifies one planned notification across runs for a target.
func deliveryKey(n booking.Notification) string {
	if n.Reservation != nil {
		return fmt.Sprintf("%s/%d", n.Kind, n.Reservation.ID)
	}
	return string(n.Kind)
}
