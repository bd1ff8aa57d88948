package bookings

import (
	"math"
	"strconv"
	"strings"
	"time"

	"tailtribe/internal/domain/caregivers"
)

// Split reparte amountCents entre la comisión de la plataforma y el pago al cuidador.
// La comisión se redondea al céntimo (half-up) y payout = amount - commission,
// así que commission + payout == amount siempre.
func Split(amountCents int64, percent float64) (commission, payout int64) {
	if amountCents <= 0 || percent <= 0 {
		return 0, amountCents
	}
	if percent >= 100 {
		return amountCents, 0
	}

	// percent en puntos básicos para no arrastrar error de float (15.5% -> 1550).
	bp := int64(math.Round(percent * 100))
	commission = (amountCents*bp + 5000) / 10000
	return commission, amountCents - commission
}

// FormatEUR formatea céntimos al estilo belga/neerlandés: "€1.234,50".
func FormatEUR(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}

	euros := strconv.FormatInt(cents/100, 10)
	frac := cents % 100

	var b strings.Builder
	for i, r := range euros {
		if i > 0 && (len(euros)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}

	fracStr := strconv.FormatInt(frac, 10)
	if frac < 10 {
		fracStr = "0" + fracStr
	}
	return sign + "€" + b.String() + "," + fracStr
}

// Quote calcula el precio de [start, end) para una tarifa.
//   - hour: minutos redondeados hacia arriba, prorrateado al céntimo (half-up)
//   - day: días (24h) redondeados hacia arriba
//   - visit: una vez la tarifa
func Quote(offer caregivers.Offer, start, end time.Time) int64 {
	d := end.Sub(start)
	if d <= 0 || offer.RateCents <= 0 {
		return 0
	}

	switch offer.Unit() {
	case caregivers.UnitHour:
		minutes := int64(math.Ceil(d.Minutes()))
		return (offer.RateCents*minutes + 30) / 60
	case caregivers.UnitDay:
		days := int64(math.Ceil(d.Hours() / 24))
		return offer.RateCents * days
	default:
		return offer.RateCents
	}
}
