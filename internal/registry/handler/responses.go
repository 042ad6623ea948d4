package handler

import (
	"time"

	"deedbook/internal/registry/models"
	id "deedbook/pkg/domain"
)

type propertyResponse struct {
	ID          id.PropertyID `json:"id"`
	Owner       string        `json:"owner"`
	Description string        `json:"description"`
	Transferred bool          `json:"transferred"`
	CreatedAt   time.Time     `json:"created_at"`
}

func fromProperty(p *models.Property) propertyResponse {
	return propertyResponse{
		ID:          p.ID,
		Owner:       p.Owner.String(),
		Description: p.Description,
		Transferred: p.Transferred,
		CreatedAt:   p.CreatedAt,
	}
}

type bulkRegisterResponse struct {
	Properties []propertyResponse `json:"properties"`
}

type statsResponse struct {
	Count  uint64        `json:"count"`
	LastID id.PropertyID `json:"last_id"`
	NextID id.PropertyID `json:"next_id"`
}

type rangeResponse struct {
	Valid bool `json:"valid"`
}

type approvalResponse struct {
	Approved bool `json:"approved"`
}

type tokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
}
