// Package registry resolves node kinds to their executable handlers and
// validates node configurations against per-kind schemas.
package registry

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/nodeloom/loom/pkg/models"
	"github.com/nodeloom/loom/pkg/nodes/httpcall"
	"github.com/nodeloom/loom/pkg/nodes/ingress"
	"github.com/nodeloom/loom/pkg/nodes/passthrough"
	"github.com/nodeloom/loom/pkg/nodes/query"
	"github.com/nodeloom/loom/pkg/nodes/transform"
	"github.com/nodeloom/loom/pkg/nodes/visualize"
	"github.com/nodeloom/loom/pkg/protocol"
	"github.com/xeipuuv/gojsonschema"
)

// Registry builds node handlers. Dispatch is a closed switch over
// models.NodeKind: an unknown kind is a configuration error, not a lookup
// miss in some mutable map.
type Registry struct {
	logger *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger.With("module", "registry")}
}

// HandlerFor constructs the handler for a node. The node's config must
// already have passed ValidateConfig.
func (r *Registry) HandlerFor(node *models.Node) (protocol.NodeHandler, error) {
	config := node.Config
	if config == nil {
		config = map[string]any{}
	}

	switch node.Kind {
	case models.NodeKindIngress:
		return ingress.New(config)
	case models.NodeKindTransform:
		return transform.New(config)
	case models.NodeKindVisualize:
		return visualize.New(config)
	case models.NodeKindQuery:
		return query.New(config)
	case models.NodeKindHTTPCall:
		return httpcall.New(config)
	case models.NodeKindPassthrough:
		return passthrough.New(config)
	default:
		return nil, fmt.Errorf("node kind %q not registered", node.Kind)
	}
}

// SchemaFor returns the JSON schema describing valid configuration for a
// node kind.
func SchemaFor(kind models.NodeKind) (map[string]any, error) {
	switch kind {
	case models.NodeKindIngress:
		return ingress.Schema(), nil
	case models.NodeKindTransform:
		return transform.Schema(), nil
	case models.NodeKindVisualize:
		return visualize.Schema(), nil
	case models.NodeKindQuery:
		return query.Schema(), nil
	case models.NodeKindHTTPCall:
		return httpcall.Schema(), nil
	case models.NodeKindPassthrough:
		return passthrough.Schema(), nil
	default:
		return nil, fmt.Errorf("node kind %q not registered", kind)
	}
}

// ValidateConfig checks a node's configuration against its kind's schema.
func (r *Registry) ValidateConfig(node *models.Node) error {
	schema, err := SchemaFor(node.Kind)
	if err != nil {
		return err
	}

	config := node.Config
	if config == nil {
		config = map[string]any{}
	}

	schemaLoader := gojsonschema.NewGoLoader(schema)
	configLoader := gojsonschema.NewGoLoader(config)

	result, err := gojsonschema.Validate(schemaLoader, configLoader)
	if err != nil {
		return fmt.Errorf("failed to validate config for node %s: %w", node.ID, err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}

		return fmt.Errorf("invalid config for node %s: %s", node.ID, strings.Join(details, "; "))
	}

	return nil
}

// HealthCheck reports the registry's readiness and the kinds it serves.
func (r *Registry) HealthCheck() (map[string]any, bool) {
	kinds := models.Kinds()
	names := make([]string, len(kinds))

	for i, k := range kinds {
		names[i] = string(k)
	}

	return map[string]any{"node_kinds": names}, true
}
