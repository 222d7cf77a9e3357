package identity

import (
	"time"

	"github.com/google/uuid"
)

// Patient maps to the patients table. The NIC (national identity card number)
// is the stable external key every other table references.
type Patient struct {
	ID        uuid.UUID `db:"id" json:"id"`
	NIC       string    `db:"nic" json:"nic"`
	Name      string    `db:"name" json:"name"`
	Age       *int      `db:"age" json:"age,omitempty"`
	Allergies *string   `db:"allergies" json:"allergies,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Doctor maps to the doctors table, keyed by SLMC registration number.
type Doctor struct {
	ID         uuid.UUID `db:"id" json:"id"`
	SLMCNumber string    `db:"slmc_number" json:"slmc_number"`
	Name       string    `db:"name" json:"name"`
	Specialty  *string   `db:"specialty" json:"specialty,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// Pharmacy maps to the pharmacies table, keyed by license number.
type Pharmacy struct {
	ID            uuid.UUID `db:"id" json:"id"`
	LicenseNumber string    `db:"license_number" json:"license_number"`
	Name          string    `db:"name" json:"name"`
	Address       *string   `db:"address" json:"address,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}
