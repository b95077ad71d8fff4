package lifecycle

import "time"

// Display is the render-time view of a reservation status. It depends on now and must not
// be cached.
type Display struct {
	Status Status `json:"status"`
	IsPast bool   `json:"isPast"`
	Text   string `json:"text"`
	Color  string `json:"color"`
}

// Describe derives the display status. Only approved reservations become past; the other
// statuses keep their own label after the reservation time.
func Describe(status Status, reservationTime, now time.Time) Display {
	d := Display{Status: status}
	switch status {
	case StatusPending:
		d.Text, d.Color = "Onay Bekliyor", "#F5A623"
	case StatusApproved:
		if !reservationTime.After(now) {
			d.IsPast = true
			d.Text, d.Color = "Tamamlandı", "#9B9B9B"
		} else {
			d.Text, d.Color = "Onaylandı", "#4CAF50"
		}
	case StatusRejected:
		d.Text, d.Color = "Reddedildi", "#E53935"
	case StatusCancelled:
		d.Text, d.Color = "İptal Edildi", "#757575"
	default:
		d.Text, d.Color = "Bilinmiyor", "#9B9B9B"
	}
	return d
}

// Describe is a shorthand for Describe(r.Status, r.ReservationTime, now).
func (r Reservation) Describe(now time.Time) Display {
	return Describe(r.Status, r.ReservationTime, now)
}
