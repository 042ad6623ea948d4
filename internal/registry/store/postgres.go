package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"deedbook/internal/registry/models"
	id "deedbook/pkg/domain"
	"deedbook/pkg/platform/sentinel"
	"deedbook/pkg/platform/tx"
)

// Postgres implements Store on PostgreSQL. The id counter lives in a
// single-row table updated inside the same transaction as the property
// insert, so registration is failure-atomic and ids stay dense.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed registry store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// querier is the subset of *sql.DB and *sql.Tx the single-statement
// operations need.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// q returns the ambient transaction when the context carries one, so
// single-statement operations join it. Multi-write operations always manage
// their own transaction.
func (s *Postgres) q(ctx context.Context) querier {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return s.db
}

// Open connects to the given postgres URL and verifies the connection.
func Open(url string) (*sql.DB, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the registry tables when they do not exist yet.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS registry_counter (
	id      INT PRIMARY KEY CHECK (id = 1),
	last_id BIGINT NOT NULL
);
INSERT INTO registry_counter (id, last_id) VALUES (1, 0) ON CONFLICT (id) DO NOTHING;

CREATE TABLE IF NOT EXISTS properties (
	id          BIGINT PRIMARY KEY,
	owner       TEXT NOT NULL,
	description TEXT NOT NULL,
	transferred BOOLEAN NOT NULL DEFAULT FALSE,
	created_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS property_attributes (
	property_id        BIGINT PRIMARY KEY REFERENCES properties (id),
	category           TEXT,
	location           TEXT,
	value              BIGINT,
	tax_amount         BIGINT,
	insured            BOOLEAN,
	insurance_provider TEXT,
	occupied           BOOLEAN,
	zoning             TEXT,
	construction_year  INT,
	listed             BOOLEAN
);

CREATE TABLE IF NOT EXISTS maintenance_log (
	property_id BIGINT NOT NULL REFERENCES properties (id),
	seq         BIGINT NOT NULL,
	description TEXT NOT NULL,
	date        TEXT NOT NULL,
	PRIMARY KEY (property_id, seq)
);

CREATE TABLE IF NOT EXISTS appraisals (
	property_id  BIGINT NOT NULL REFERENCES properties (id),
	appraised_at BIGINT NOT NULL,
	value        BIGINT NOT NULL,
	PRIMARY KEY (property_id, appraised_at)
);

CREATE TABLE IF NOT EXISTS transfer_approvals (
	property_id BIGINT NOT NULL REFERENCES properties (id),
	candidate   TEXT NOT NULL,
	approved    BOOLEAN NOT NULL,
	PRIMARY KEY (property_id, candidate)
);
`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure registry schema: %w", err)
	}
	return nil
}

func (s *Postgres) LastID(ctx context.Context) (id.PropertyID, error) {
	var last uint64
	err := s.q(ctx).QueryRowContext(ctx, `SELECT last_id FROM registry_counter WHERE id = 1`).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("read id counter: %w", err)
	}
	return id.PropertyID(last), nil
}

func (s *Postgres) CreateProperty(ctx context.Context, owner id.Address, description string, now time.Time) (*models.Property, error) {
	properties, err := s.CreateProperties(ctx, owner, []string{description}, now)
	if err != nil {
		return nil, err
	}
	return properties[0], nil
}

func (s *Postgres) CreateProperties(ctx context.Context, owner id.Address, descriptions []string, now time.Time) ([]*models.Property, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin registration: %w", err)
	}
	defer tx.Rollback()

	// The counter row lock serializes registrations; ids stay dense even
	// under concurrent batches.
	var last uint64
	err = tx.QueryRowContext(ctx, `SELECT last_id FROM registry_counter WHERE id = 1 FOR UPDATE`).Scan(&last)
	if err != nil {
		return nil, fmt.Errorf("lock id counter: %w", err)
	}

	created := make([]*models.Property, 0, len(descriptions))
	for _, description := range descriptions {
		last++
		p, err := models.NewProperty(id.PropertyID(last), owner, description, now)
		if err != nil {
			return nil, err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO properties (id, owner, description, transferred, created_at) VALUES ($1, $2, $3, FALSE, $4)`,
			uint64(p.ID), p.Owner.String(), p.Description, p.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("insert property: %w", err)
		}
		created = append(created, p)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE registry_counter SET last_id = $1 WHERE id = 1`, last); err != nil {
		return nil, fmt.Errorf("advance id counter: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit registration: %w", err)
	}
	return created, nil
}

func (s *Postgres) FindProperty(ctx context.Context, propertyID id.PropertyID) (*models.Property, error) {
	return scanProperty(s.q(ctx).QueryRowContext(ctx,
		`SELECT id, owner, description, transferred, created_at FROM properties WHERE id = $1`,
		uint64(propertyID),
	))
}

func (s *Postgres) ExecuteProperty(ctx context.Context, propertyID id.PropertyID,
	validate func(*models.Property) error,
	mutate func(*models.Property)) (*models.Property, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin property mutation: %w", err)
	}
	defer tx.Rollback()

	// FOR UPDATE holds the row lock across validation and mutation.
	p, err := scanProperty(tx.QueryRowContext(ctx,
		`SELECT id, owner, description, transferred, created_at FROM properties WHERE id = $1 FOR UPDATE`,
		uint64(propertyID),
	))
	if err != nil {
		return nil, err
	}
	if err := validate(p); err != nil {
		return nil, err
	}
	mutate(p)

	_, err = tx.ExecContext(ctx,
		`UPDATE properties SET owner = $2, transferred = $3 WHERE id = $1`,
		uint64(p.ID), p.Owner.String(), p.Transferred,
	)
	if err != nil {
		return nil, fmt.Errorf("update property: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit property mutation: %w", err)
	}
	return p, nil
}

func (s *Postgres) Attributes(ctx context.Context, propertyID id.PropertyID) (*models.Attributes, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT category, location, value, tax_amount, insured, insurance_provider,
		       occupied, zoning, construction_year, listed
		FROM property_attributes WHERE property_id = $1`,
		uint64(propertyID),
	)

	var (
		category, location, zoning, provider sql.NullString
		value, taxAmount, year               sql.NullInt64
		insured, occupied, listed            sql.NullBool
	)
	err := row.Scan(&category, &location, &value, &taxAmount, &insured, &provider,
		&occupied, &zoning, &year, &listed)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.Attributes{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read attributes: %w", err)
	}

	attrs := &models.Attributes{
		Category:         nullString(category),
		Location:         nullString(location),
		Value:            nullUint64(value),
		TaxAmount:        nullUint64(taxAmount),
		Occupied:         nullBool(occupied),
		Zoning:           nullString(zoning),
		ConstructionYear: nullUint16(year),
		Listed:           nullBool(listed),
	}
	if insured.Valid {
		attrs.Insurance = &models.Insurance{Insured: insured.Bool, Provider: provider.String}
	}
	return attrs, nil
}

func (s *Postgres) UpdateAttributes(ctx context.Context, propertyID id.PropertyID, mutate func(*models.Attributes)) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin attribute update: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO property_attributes (property_id) VALUES ($1) ON CONFLICT (property_id) DO NOTHING`,
		uint64(propertyID),
	)
	if err != nil {
		return fmt.Errorf("seed attribute row: %w", err)
	}

	row := tx.QueryRowContext(ctx, `
		SELECT category, location, value, tax_amount, insured, insurance_provider,
		       occupied, zoning, construction_year, listed
		FROM property_attributes WHERE property_id = $1 FOR UPDATE`,
		uint64(propertyID),
	)
	var (
		category, location, zoning, provider sql.NullString
		value, taxAmount, year               sql.NullInt64
		insured, occupied, listed            sql.NullBool
	)
	if err := row.Scan(&category, &location, &value, &taxAmount, &insured, &provider,
		&occupied, &zoning, &year, &listed); err != nil {
		return fmt.Errorf("lock attribute row: %w", err)
	}

	attrs := &models.Attributes{
		Category:         nullString(category),
		Location:         nullString(location),
		Value:            nullUint64(value),
		TaxAmount:        nullUint64(taxAmount),
		Occupied:         nullBool(occupied),
		Zoning:           nullString(zoning),
		ConstructionYear: nullUint16(year),
		Listed:           nullBool(listed),
	}
	if insured.Valid {
		attrs.Insurance = &models.Insurance{Insured: insured.Bool, Provider: provider.String}
	}

	mutate(attrs)

	var (
		insuredOut  sql.NullBool
		providerOut sql.NullString
	)
	if attrs.Insurance != nil {
		insuredOut = sql.NullBool{Bool: attrs.Insurance.Insured, Valid: true}
		providerOut = sql.NullString{String: attrs.Insurance.Provider, Valid: true}
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE property_attributes SET
			category = $2, location = $3, value = $4, tax_amount = $5,
			insured = $6, insurance_provider = $7, occupied = $8,
			zoning = $9, construction_year = $10, listed = $11
		WHERE property_id = $1`,
		uint64(propertyID),
		toNullString(attrs.Category), toNullString(attrs.Location),
		toNullInt64FromUint64(attrs.Value), toNullInt64FromUint64(attrs.TaxAmount),
		insuredOut, providerOut, toNullBool(attrs.Occupied),
		toNullString(attrs.Zoning), toNullInt64FromUint16(attrs.ConstructionYear),
		toNullBool(attrs.Listed),
	)
	if err != nil {
		return fmt.Errorf("write attributes: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit attribute update: %w", err)
	}
	return nil
}

func (s *Postgres) UpsertMaintenance(ctx context.Context, propertyID id.PropertyID, rec models.MaintenanceRecord) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO maintenance_log (property_id, seq, description, date)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (property_id, seq) DO UPDATE SET
			description = EXCLUDED.description,
			date = EXCLUDED.date`,
		uint64(propertyID), rec.Seq, rec.Description, rec.Date,
	)
	if err != nil {
		return fmt.Errorf("upsert maintenance entry: %w", err)
	}
	return nil
}

func (s *Postgres) MaintenanceLog(ctx context.Context, propertyID id.PropertyID) ([]models.MaintenanceRecord, error) {
	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT seq, description, date FROM maintenance_log WHERE property_id = $1 ORDER BY seq`,
		uint64(propertyID),
	)
	if err != nil {
		return nil, fmt.Errorf("list maintenance log: %w", err)
	}
	defer rows.Close()

	out := []models.MaintenanceRecord{}
	for rows.Next() {
		var rec models.MaintenanceRecord
		if err := rows.Scan(&rec.Seq, &rec.Description, &rec.Date); err != nil {
			return nil, fmt.Errorf("scan maintenance entry: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Postgres) UpsertAppraisal(ctx context.Context, propertyID id.PropertyID, rec models.Appraisal) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO appraisals (property_id, appraised_at, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (property_id, appraised_at) DO UPDATE SET
			value = EXCLUDED.value`,
		uint64(propertyID), rec.Timestamp, rec.Value,
	)
	if err != nil {
		return fmt.Errorf("upsert appraisal: %w", err)
	}
	return nil
}

func (s *Postgres) Appraisals(ctx context.Context, propertyID id.PropertyID) ([]models.Appraisal, error) {
	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT appraised_at, value FROM appraisals WHERE property_id = $1 ORDER BY appraised_at`,
		uint64(propertyID),
	)
	if err != nil {
		return nil, fmt.Errorf("list appraisals: %w", err)
	}
	defer rows.Close()

	out := []models.Appraisal{}
	for rows.Next() {
		var rec models.Appraisal
		if err := rows.Scan(&rec.Timestamp, &rec.Value); err != nil {
			return nil, fmt.Errorf("scan appraisal: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Postgres) SetTransferApproval(ctx context.Context, propertyID id.PropertyID, candidate id.Address, approved bool) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO transfer_approvals (property_id, candidate, approved)
		VALUES ($1, $2, $3)
		ON CONFLICT (property_id, candidate) DO UPDATE SET
			approved = EXCLUDED.approved`,
		uint64(propertyID), candidate.String(), approved,
	)
	if err != nil {
		return fmt.Errorf("set transfer approval: %w", err)
	}
	return nil
}

func (s *Postgres) TransferApproval(ctx context.Context, propertyID id.PropertyID, candidate id.Address) (bool, error) {
	var approved bool
	err := s.q(ctx).QueryRowContext(ctx,
		`SELECT approved FROM transfer_approvals WHERE property_id = $1 AND candidate = $2`,
		uint64(propertyID), candidate.String(),
	).Scan(&approved)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read transfer approval: %w", err)
	}
	return approved, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProperty(row rowScanner) (*models.Property, error) {
	var (
		p     models.Property
		rawID uint64
		owner string
	)
	err := row.Scan(&rawID, &owner, &p.Description, &p.Transferred, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan property: %w", err)
	}
	p.ID = id.PropertyID(rawID)
	p.Owner = id.Address(owner)
	return &p, nil
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullBool(v sql.NullBool) *bool {
	if !v.Valid {
		return nil
	}
	b := v.Bool
	return &b
}

func nullUint64(v sql.NullInt64) *uint64 {
	if !v.Valid {
		return nil
	}
	u := uint64(v.Int64)
	return &u
}

func nullUint16(v sql.NullInt64) *uint16 {
	if !v.Valid {
		return nil
	}
	u := uint16(v.Int64)
	return &u
}

func toNullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func toNullBool(v *bool) sql.NullBool {
	if v == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *v, Valid: true}
}

func toNullInt64FromUint64(v *uint64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func toNullInt64FromUint16(v *uint16) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
