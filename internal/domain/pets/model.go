package pets

import "time"

// Species define las especies que aceptan los cuidadores.
// @Enum dog, cat, rabbit, bird, other
type Species string

const (
	SpeciesDog    Species = "dog"
	SpeciesCat    Species = "cat"
	SpeciesRabbit Species = "rabbit"
	SpeciesBird   Species = "bird"
	SpeciesOther  Species = "other"
)

func (s Species) Valid() bool {
	switch s {
	case SpeciesDog, SpeciesCat, SpeciesRabbit, SpeciesBird, SpeciesOther:
		return true
	default:
		return false
	}
}

// Sex define el sexo de la mascota.
// @Enum male, female, unknown
type Sex string

const (
	SexMale    Sex = "male"
	SexFemale  Sex = "female"
	SexUnknown Sex = "unknown"
)

func (s Sex) Valid() bool {
	return s == SexMale || s == SexFemale || s == SexUnknown
}

// Pet es el perfil de una mascota de un owner. Borrarla no afecta bookings pasados.
type Pet struct {
	ID          string
	OwnerUserID string

	Name    string
	Species Species
	Breed   string
	Sex     Sex

	BirthDate *time.Time
	WeightKg  float64
	Microchip string

	Notes string

	CreatedAt time.Time
	UpdatedAt time.Time
}
