package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medqueue/medqueue/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

func conn(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return pool
}

// -- Patients --

type patientRepoPG struct{ pool *pgxpool.Pool }

func NewPatientRepoPG(pool *pgxpool.Pool) PatientRepository {
	return &patientRepoPG{pool: pool}
}

const patientCols = `id, nic, name, age, allergies, created_at, updated_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.NIC, &p.Name, &p.Age, &p.Allergies, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &p, err
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO patients (id, nic, name, age, allergies)
		VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.NIC, p.Name, p.Age, p.Allergies)
	return err
}

func (r *patientRepoPG) GetByNIC(ctx context.Context, nic string) (*Patient, error) {
	return scanPatient(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patients WHERE nic = $1`, nic))
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE patients SET name=$2, age=$3, allergies=$4, updated_at=NOW()
		WHERE nic = $1`,
		p.NIC, p.Name, p.Age, p.Allergies)
	return err
}

// -- Doctors --

type doctorRepoPG struct{ pool *pgxpool.Pool }

func NewDoctorRepoPG(pool *pgxpool.Pool) DoctorRepository {
	return &doctorRepoPG{pool: pool}
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(&d.ID, &d.SLMCNumber, &d.Name, &d.Specialty, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &d, err
}

func (r *doctorRepoPG) Create(ctx context.Context, d *Doctor) error {
	d.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO doctors (id, slmc_number, name, specialty)
		VALUES ($1, $2, $3, $4)`,
		d.ID, d.SLMCNumber, d.Name, d.Specialty)
	return err
}

func (r *doctorRepoPG) GetBySLMC(ctx context.Context, slmc string) (*Doctor, error) {
	return scanDoctor(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT id, slmc_number, name, specialty, created_at, updated_at
		 FROM doctors WHERE slmc_number = $1`, slmc))
}

// -- Pharmacies --

type pharmacyRepoPG struct{ pool *pgxpool.Pool }

func NewPharmacyRepoPG(pool *pgxpool.Pool) PharmacyRepository {
	return &pharmacyRepoPG{pool: pool}
}

func scanPharmacy(row pgx.Row) (*Pharmacy, error) {
	var ph Pharmacy
	err := row.Scan(&ph.ID, &ph.LicenseNumber, &ph.Name, &ph.Address, &ph.CreatedAt, &ph.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &ph, err
}

func (r *pharmacyRepoPG) Create(ctx context.Context, ph *Pharmacy) error {
	ph.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO pharmacies (id, license_number, name, address)
		VALUES ($1, $2, $3, $4)`,
		ph.ID, ph.LicenseNumber, ph.Name, ph.Address)
	return err
}

func (r *pharmacyRepoPG) GetByLicense(ctx context.Context, license string) (*Pharmacy, error) {
	return scanPharmacy(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT id, license_number, name, address, created_at, updated_at
		 FROM pharmacies WHERE license_number = $1`, license))
}
