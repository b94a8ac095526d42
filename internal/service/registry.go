// Package service provides provider registration and tool dispatch.
package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/codeforge/execd/internal/types"
)

// Provider interface for service implementations
type Provider interface {
	Definition() types.Service
	Execute(ctx context.Context, toolID string, params map[string]interface{}, opCtx *types.Context) (*types.Result, error)
}

// Registry manages service discovery and execution
type Registry struct {
	services sync.Map
}

// NewRegistry creates a new service registry
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a service provider
func (r *Registry) Register(provider Provider) error {
	def := provider.Definition()
	if def.ID == "" {
		return fmt.Errorf("service ID cannot be empty")
	}

	r.services.Store(def.ID, provider)
	return nil
}

// Get retrieves a service by ID
func (r *Registry) Get(serviceID string) (Provider, bool) {
	val, ok := r.services.Load(serviceID)
	if !ok {
		return nil, false
	}
	return val.(Provider), true
}

// List returns all registered service definitions
func (r *Registry) List() []types.Service {
	var services []types.Service
	r.services.Range(func(_, value interface{}) bool {
		services = append(services, value.(Provider).Definition())
		return true
	})
	return services
}

// Execute dispatches a tool call to the provider owning its service prefix.
// Tool ids are "<service>.<tool>".
func (r *Registry) Execute(ctx context.Context, toolID string, params map[string]interface{}, opCtx *types.Context) (*types.Result, error) {
	parts := strings.SplitN(toolID, ".", 2)
	if len(parts) < 2 {
		msg := fmt.Sprintf("invalid tool ID format: %s", toolID)
		return &types.Result{Success: false, Error: &msg}, fmt.Errorf("invalid tool ID format: %s", toolID)
	}

	provider, ok := r.Get(parts[0])
	if !ok {
		msg := fmt.Sprintf("service not found: %s", parts[0])
		return &types.Result{Success: false, Error: &msg}, fmt.Errorf("service not found: %s", parts[0])
	}

	return provider.Execute(ctx, toolID, params, opCtx)
}

// Stats returns registry statistics
func (r *Registry) Stats() map[string]interface{} {
	var total, totalTools int
	categories := make(map[string]int)

	r.services.Range(func(_, value interface{}) bool {
		def := value.(Provider).Definition()
		total++
		totalTools += len(def.Tools)
		categories[string(def.Category)]++
		return true
	})

	return map[string]interface{}{
		"total_services": total,
		"total_tools":    totalTools,
		"categories":     categories,
	}
}
