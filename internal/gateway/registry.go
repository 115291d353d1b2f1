package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/CS3219-AY2526Sem1/cs3219-ay2526s1-project-g12/internal/config"
)

// Route declares one operation for the gateway's router, with the role
// list the gateway enforces before proxying.
type Route struct {
	Method string
	Path   string
	Roles  []string
}

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

type registration struct {
	ServiceName string                 `json:"service_name"`
	InstanceID  string                 `json:"instance_id"`
	Address     string                 `json:"address"`
	OpenAPI     map[string]interface{} `json:"openapi"`
}

type heartbeat struct {
	ServiceName string `json:"service_name"`
	InstanceID  string `json:"instance_id"`
}

// RegistryClient registers this instance with the gateway and keeps it
// alive with periodic heartbeats.
type RegistryClient struct {
	cfg         *config.Config
	serviceName string
	instanceID  string
	routes      []Route
	httpClient  *http.Client
	logger      *zap.Logger
}

func NewRegistryClient(cfg *config.Config, serviceName string, routes []Route, logger *zap.Logger) *RegistryClient {
	return &RegistryClient{
		cfg:         cfg,
		serviceName: serviceName,
		instanceID:  uuid.New().String(),
		routes:      routes,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		logger:      logger,
	}
}

func (c *RegistryClient) InstanceID() string { return c.instanceID }

// Register announces the instance and its routes to the gateway.
func (c *RegistryClient) Register(ctx context.Context) error {
	body := registration{
		ServiceName: c.serviceName,
		InstanceID:  c.instanceID,
		Address:     c.cfg.HostURL,
		OpenAPI:     c.openAPIDoc(),
	}
	return c.post(ctx, c.cfg.APIGatewayURL+c.cfg.RegistryPath, body)
}

// RunHeartbeat posts liveness to the gateway every heartbeat period
// until the context is cancelled. Failures are logged and retried on the
// next tick; the gateway evicts silent instances on its own schedule.
func (c *RegistryClient) RunHeartbeat(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.HeartbeatPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			body := heartbeat{ServiceName: c.serviceName, InstanceID: c.instanceID}
			if err := c.post(ctx, c.cfg.APIGatewayURL+c.cfg.HeartbeatPath, body); err != nil {
				c.logger.Warn("registry heartbeat failed", zap.Error(err))
			}
		}
	}
}

func (c *RegistryClient) post(ctx context.Context, url string, body interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}
	return nil
}

// openAPIDoc builds the minimal document the gateway needs: one path
// item per route with the x-roles annotation its authorizer reads.
func (c *RegistryClient) openAPIDoc() map[string]interface{} {
	paths := make(map[string]interface{})
	for _, r := range c.routes {
		item, _ := paths[r.Path].(map[string]interface{})
		if item == nil {
			item = make(map[string]interface{})
		}
		item[httpMethodKey(r.Method)] = map[string]interface{}{
			"x-roles": r.Roles,
			"responses": map[string]interface{}{
				"200": map[string]interface{}{"description": "success"},
			},
		}
		paths[r.Path] = item
	}

	return map[string]interface{}{
		"openapi": "3.1.0",
		"info": map[string]interface{}{
			"title":   c.serviceName,
			"version": "1.0.0",
		},
		"paths": paths,
	}
}

func httpMethodKey(method string) string {
	switch method {
	case http.MethodGet:
		return "get"
	case http.MethodPost:
		return "post"
	case http.MethodPut:
		return "put"
	case http.MethodDelete:
		return "delete"
	default:
		return "get"
	}
}
