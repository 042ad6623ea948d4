package models

import dErrors "deedbook/pkg/domain-errors"

// Attributes holds the optional descriptive fields of a property. Each
// field is independent and absent (nil) until its setter first runs; the
// ownership ledger, not this record, decides who may set them.
type Attributes struct {
	Category         *string    `json:"category,omitempty"`
	Location         *string    `json:"location,omitempty"`
	Value            *uint64    `json:"value,omitempty"`
	TaxAmount        *uint64    `json:"tax_amount,omitempty"`
	Insurance        *Insurance `json:"insurance,omitempty"`
	Occupied         *bool      `json:"occupied,omitempty"`
	Zoning           *string    `json:"zoning,omitempty"`
	ConstructionYear *uint16    `json:"construction_year,omitempty"`
	Listed           *bool      `json:"listed,omitempty"`
}

// Insurance records coverage state and the provider it comes from.
type Insurance struct {
	Insured  bool   `json:"insured"`
	Provider string `json:"provider"`
}

// MaintenanceRecord is one entry of the append-style maintenance log,
// keyed by an externally supplied sequence number.
type MaintenanceRecord struct {
	Seq         uint64 `json:"seq"`
	Description string `json:"description"`
	Date        string `json:"date"`
}

// Appraisal is one entry of the append-style appraisal log, keyed by an
// externally supplied timestamp.
type Appraisal struct {
	Timestamp uint64 `json:"timestamp"`
	Value     uint64 `json:"value"`
}

// ValidateText enforces the minimum-length constraint shared by all
// textual attribute fields.
func ValidateText(field, value string) error {
	if value == "" {
		return dErrors.Newf(dErrors.CodeInvalidInput, "%s must not be empty", field)
	}
	return nil
}

// Validate checks a maintenance record before it enters the log.
func (m MaintenanceRecord) Validate() error {
	if err := ValidateText("maintenance description", m.Description); err != nil {
		return err
	}
	return ValidateText("maintenance date", m.Date)
}
