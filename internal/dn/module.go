package dn

import (
	"fmt"

	"dn_tracker_backend/internal/dn/handler"
	"dn_tracker_backend/internal/dn/service"
	"dn_tracker_backend/internal/dn/transport"
	apphttp "dn_tracker_backend/internal/http"
	"dn_tracker_backend/platform/validator"
)

// Module is the DN bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates the DN module and registers its validation tags on val.
func NewModule(svc *service.Service, val *validator.Validator, maxPhotoSize int64) (*Module, error) {
	if err := transport.RegisterValidations(val); err != nil {
		return nil, fmt.Errorf("register dn validations: %w", err)
	}
	return &Module{handler: handler.New(svc, val, maxPhotoSize), service: svc}, nil
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "dn"
}

// Service returns the service layer for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts DN routes under /api/v1/dn.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	public := ctx.V1.Group("/dn", ctx.PublicRateLimiter.RateLimit())
	m.handler.RegisterPublicRoutes(public)

	admin := ctx.Admin.Group("/dn")
	m.handler.RegisterAdminRoutes(admin, ctx.SyncRateLimiter.RateLimit())
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
