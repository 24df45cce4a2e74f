package payment

import (
	"context"

	"student-portal/models"
)

// Provider starts payments and reports their status. Both calls return the
// raw response body so the alias lists can be applied uniformly.
type Provider interface {
	Name() string
	Initiate(ctx context.Context, req models.PaymentInitRequest) (map[string]interface{}, error)
	Status(ctx context.Context, applicationID string) (map[string]interface{}, error)
}

// PortalAPI is the slice of the portal client the portal provider needs.
type PortalAPI interface {
	InitiatePayment(ctx context.Context, req models.PaymentInitRequest) (map[string]interface{}, error)
	PaymentStatus(ctx context.Context, applicationID string) (map[string]interface{}, error)
}

// PortalProvider lets the university backend talk to the gateway.
type PortalProvider struct {
	api PortalAPI
}

func NewPortalProvider(api PortalAPI) *PortalProvider {
	return &PortalProvider{api: api}
}

func (p *PortalProvider) Name() string { return "portal" }

func (p *PortalProvider) Initiate(ctx context.Context, req models.PaymentInitRequest) (map[string]interface{}, error) {
	return p.api.InitiatePayment(ctx, req)
}

func (p *PortalProvider) Status(ctx context.Context, applicationID string) (map[string]interface{}, error) {
	return p.api.PaymentStatus(ctx, applicationID)
}

// GatewayDirectory lists the gateways available for discovery.
type GatewayDirectory interface {
	Gateways(ctx context.Context) ([]models.Gateway, error)
}
