package model

import (
	"reflect"
	"time"
)

// CloudProviderType identifies a supported cloud platform.
type CloudProviderType string

const (
	ProviderAWS          CloudProviderType = "aws"
	ProviderAzure        CloudProviderType = "azure"
	ProviderGCP          CloudProviderType = "gcp"
	ProviderDigitalOcean CloudProviderType = "digitalocean"
	ProviderLinode       CloudProviderType = "linode"
	ProviderVultr        CloudProviderType = "vultr"
	ProviderOnPremise    CloudProviderType = "on_premise"
)

func (p CloudProviderType) Valid() bool {
	switch p {
	case ProviderAWS, ProviderAzure, ProviderGCP, ProviderDigitalOcean,
		ProviderLinode, ProviderVultr, ProviderOnPremise:
		return true
	}
	return false
}

// ResourceStatus is the lifecycle state of a single cloud resource.
type ResourceStatus string

const (
	ResourceCreating    ResourceStatus = "creating"
	ResourceRunning     ResourceStatus = "running"
	ResourceStopped     ResourceStatus = "stopped"
	ResourceStopping    ResourceStatus = "stopping"
	ResourceStarting    ResourceStatus = "starting"
	ResourceTerminated  ResourceStatus = "terminated"
	ResourceTerminating ResourceStatus = "terminating"
	ResourceError       ResourceStatus = "error"
	ResourceUnknown     ResourceStatus = "unknown"
)

func (s ResourceStatus) Valid() bool {
	switch s {
	case ResourceCreating, ResourceRunning, ResourceStopped, ResourceStopping,
		ResourceStarting, ResourceTerminated, ResourceTerminating,
		ResourceError, ResourceUnknown:
		return true
	}
	return false
}

// InfrastructureStatus is the lifecycle state of a deployment unit.
type InfrastructureStatus string

const (
	InfraPlanning      InfrastructureStatus = "planning"
	InfraProvisioning  InfrastructureStatus = "provisioning"
	InfraActive        InfrastructureStatus = "active"
	InfraUpdating      InfrastructureStatus = "updating"
	InfraDestroying    InfrastructureStatus = "destroying"
	InfraDestroyed     InfrastructureStatus = "destroyed"
	InfraError         InfrastructureStatus = "error"
	InfraDriftDetected InfrastructureStatus = "drift_detected"
)

func (s InfrastructureStatus) Valid() bool {
	switch s {
	case InfraPlanning, InfraProvisioning, InfraActive, InfraUpdating,
		InfraDestroying, InfraDestroyed, InfraError, InfraDriftDetected:
		return true
	}
	return false
}

// CloudProvider is a configured connection to one cloud platform.
// Unique per (name, provider type).
type CloudProvider struct {
	Named
	ProviderType     CloudProviderType `json:"provider_type"`
	Region           string            `json:"region,omitempty"`
	Credentials      map[string]any    `json:"credentials,omitempty"`
	Configuration    map[string]any    `json:"configuration,omitempty"`
	IsActive         bool              `json:"is_active"`
	LastConnectedAt  *time.Time        `json:"last_connected_at,omitempty"`
	ConnectionStatus string            `json:"connection_status"`
}

// ResourceType is a catalog entry describing one kind of cloud resource.
type ResourceType struct {
	Named
	ProviderType         CloudProviderType `json:"provider_type"`
	ResourceCategory     string            `json:"resource_category"`
	TerraformType        string            `json:"terraform_type,omitempty"`
	APIVersion           string            `json:"api_version,omitempty"`
	SchemaDefinition     map[string]any    `json:"schema_definition,omitempty"`
	DefaultConfiguration map[string]any    `json:"default_configuration,omitempty"`
	CostModel            map[string]any    `json:"cost_model,omitempty"`
	MonitoringConfig     map[string]any    `json:"monitoring_config,omitempty"`
}

// Infrastructure is a deployment unit owned by one cloud provider.
type Infrastructure struct {
	Named
	CloudProviderID  string               `json:"cloud_provider_id"`
	TemplateID       string               `json:"template_id,omitempty"`
	Environment      string               `json:"environment"`
	Status           InfrastructureStatus `json:"infrastructure_status"`
	TerraformState   map[string]any       `json:"terraform_state,omitempty"`
	Configuration    map[string]any       `json:"configuration,omitempty"`
	Variables        map[string]string    `json:"variables,omitempty"`
	Outputs          map[string]any       `json:"outputs,omitempty"`
	CostEstimate     float64              `json:"cost_estimate,omitempty"`
	ActualCost       float64              `json:"actual_cost,omitempty"`
	LastAppliedAt    *time.Time           `json:"last_applied_at,omitempty"`
	LastDriftCheckAt *time.Time           `json:"last_drift_check_at,omitempty"`
	DriftDetected    bool                 `json:"drift_detected"`
	AutoApply        bool                 `json:"auto_apply"`
}

// InfrastructureResource is one concrete cloud resource, optionally under a
// parent Infrastructure.
type InfrastructureResource struct {
	Named
	InfrastructureID     string         `json:"infrastructure_id,omitempty"`
	CloudProviderID      string         `json:"cloud_provider_id"`
	ResourceTypeID       string         `json:"resource_type_id"`
	ExternalID           string         `json:"external_id,omitempty"`
	Region               string         `json:"region,omitempty"`
	AvailabilityZone     string         `json:"availability_zone,omitempty"`
	Status               ResourceStatus `json:"resource_status"`
	Configuration        map[string]any `json:"configuration,omitempty"`
	DesiredConfiguration map[string]any `json:"desired_configuration,omitempty"`
	ActualConfiguration  map[string]any `json:"actual_configuration,omitempty"`
	CostPerHour          float64        `json:"cost_per_hour,omitempty"`
	MonthlyCostEstimate  float64        `json:"monthly_cost_estimate,omitempty"`
	LastSyncedAt         *time.Time     `json:"last_synced_at,omitempty"`
	SyncError            string         `json:"sync_error,omitempty"`
}

// HasDrift reports whether the resource's observed configuration diverges
// from its desired configuration. Comparison is per key; values decoded
// from jsonb can be nested maps, so equality must be deep.
func (r *InfrastructureResource) HasDrift() bool {
	if len(r.DesiredConfiguration) == 0 || len(r.ActualConfiguration) == 0 {
		return false
	}
	for k, want := range r.DesiredConfiguration {
		got, ok := r.ActualConfiguration[k]
		if !ok || !reflect.DeepEqual(got, want) {
			return true
		}
	}
	return false
}

// InfrastructureTemplate is a reusable Terraform bundle with a variables
// schema and a many-to-many link to resource types.
type InfrastructureTemplate struct {
	Named
	TemplateVersion  string            `json:"version"`
	ProviderType     CloudProviderType `json:"provider_type"`
	Category         string            `json:"category"`
	TerraformCode    string            `json:"terraform_code"`
	VariablesSchema  map[string]any    `json:"variables_schema,omitempty"`
	DefaultVariables map[string]string `json:"default_variables,omitempty"`
	CostEstimate     float64           `json:"cost_estimate,omitempty"`
	IsPublic         bool              `json:"is_public"`
	UsageCount       int               `json:"usage_count"`
	ResourceTypeIDs  []string          `json:"resource_type_ids,omitempty"`
}
