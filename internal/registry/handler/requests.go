package handler

import (
	"deedbook/internal/registry/models"
	dErrors "deedbook/pkg/domain-errors"
)

type registerRequest struct {
	Description string `json:"description"`
}

type bulkRegisterRequest struct {
	Descriptions []string `json:"descriptions"`
}

type transferRequest struct {
	Recipient string `json:"recipient"`
}

type categoryRequest struct {
	Category string `json:"category"`
}

type locationRequest struct {
	Location string `json:"location"`
}

type valueRequest struct {
	Value uint64 `json:"value"`
}

type taxRequest struct {
	Amount uint64 `json:"amount"`
}

type insuranceRequest struct {
	Insured  bool   `json:"insured"`
	Provider string `json:"provider"`
}

type occupancyRequest struct {
	Occupied bool `json:"occupied"`
}

type zoningRequest struct {
	Zoning string `json:"zoning"`
}

type constructionYearRequest struct {
	Year uint16 `json:"year"`
}

type maintenanceRequest struct {
	Seq         uint64 `json:"seq"`
	Description string `json:"description"`
	Date        string `json:"date"`
}

func (m maintenanceRequest) record() models.MaintenanceRecord {
	return models.MaintenanceRecord{Seq: m.Seq, Description: m.Description, Date: m.Date}
}

type appraisalRequest struct {
	Timestamp uint64 `json:"timestamp"`
	Value     uint64 `json:"value"`
}

type approvalRequest struct {
	Candidate string `json:"candidate"`
}

type mintTokenRequest struct {
	Address    string `json:"address"`
	TTLSeconds int    `json:"ttl_seconds"`
}

// Validate is run by DecodeAndPrepare before the handler sees the request.
func (m *mintTokenRequest) Validate() error {
	if m.Address == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "address is required")
	}
	if m.TTLSeconds < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "ttl_seconds must not be negative")
	}
	return nil
}
