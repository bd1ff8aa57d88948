package caregivers

import "time"

// ServiceType es el tipo de servicio que ofrece un cuidador.
// @Enum dog_walking, pet_sitting, boarding, drop_in, grooming
type ServiceType string

const (
	ServiceDogWalking ServiceType = "dog_walking"
	ServicePetSitting ServiceType = "pet_sitting"
	ServiceBoarding   ServiceType = "boarding"
	ServiceDropIn     ServiceType = "drop_in"
	ServiceGrooming   ServiceType = "grooming"
)

// Unit es la unidad en la que se cobra la tarifa.
// @Enum hour, day, visit
type Unit string

const (
	UnitHour  Unit = "hour"
	UnitDay   Unit = "day"
	UnitVisit Unit = "visit"
)

// UnitOf devuelve la unidad de cobro del servicio; "" si el tipo no existe.
func UnitOf(t ServiceType) Unit {
	switch t {
	case ServiceDogWalking, ServicePetSitting:
		return UnitHour
	case ServiceBoarding:
		return UnitDay
	case ServiceDropIn, ServiceGrooming:
		return UnitVisit
	default:
		return ""
	}
}

func (t ServiceType) Valid() bool { return UnitOf(t) != "" }

// Offer: servicio + tarifa en céntimos por unidad.
type Offer struct {
	Type      ServiceType
	RateCents int64
}

func (o Offer) Unit() Unit { return UnitOf(o.Type) }

type Profile struct {
	UserID string

	Bio        string
	City       string
	PostalCode string
	Country    string

	Services        []Offer
	AcceptedSpecies []string

	MaxPets         int
	ExperienceYears int
	Verified        bool

	// PayoutAccountID es la cuenta Stripe Connect (acct_...) que recibe el pago.
	PayoutAccountID string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Offer busca la tarifa del servicio dado.
func (p Profile) Offer(t ServiceType) (Offer, bool) {
	for _, o := range p.Services {
		if o.Type == t {
			return o, true
		}
	}
	return Offer{}, false
}

func (p Profile) AcceptsSpecies(species string) bool {
	for _, s := range p.AcceptedSpecies {
		if s == species {
			return true
		}
	}
	return false
}

// SearchFilter: campos vacíos no filtran.
type SearchFilter struct {
	City    string
	Country string
	Service ServiceType
	Species string
}
