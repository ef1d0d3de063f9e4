package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"cloudops.org/internal/apperr"
	"cloudops.org/internal/infra"
	"cloudops.org/internal/model"
)

const providerCols = `
	id, created_at, updated_at, deleted_at, metadata, version, created_by, updated_by,
	name, description, provider_type, region, credentials, configuration,
	is_active, last_connected_at, connection_status`

func (s *Store) CreateProvider(ctx context.Context, p *model.CloudProvider) error {
	meta, err := jsonArg(p.Metadata)
	if err != nil {
		return err
	}
	creds, err := jsonArg(p.Credentials)
	if err != nil {
		return err
	}
	conf, err := jsonArg(p.Configuration)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		insert into cloud_providers(
			id, created_at, updated_at, metadata, version, created_by,
			name, description, provider_type, region, credentials, configuration,
			is_active, connection_status)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`, p.ID, p.CreatedAt, p.UpdatedAt, meta, p.Version, nullStr(p.CreatedBy),
		p.Name, nullStr(p.Description), string(p.ProviderType), nullStr(p.Region),
		creds, conf, p.IsActive, p.ConnectionStatus)
	return err
}

func (s *Store) GetProvider(ctx context.Context, id string) (model.CloudProvider, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+providerCols+`
		from cloud_providers
		where id=$1 and deleted_at is null
	`, id)
	p, err := scanProvider(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.CloudProvider{}, apperr.NotFound("cloud provider", id)
	}
	return p, err
}

func (s *Store) ListProviders(ctx context.Context, limit, offset int) ([]model.CloudProvider, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+providerCols+`
		from cloud_providers
		where deleted_at is null
		order by created_at desc
		limit $1 offset $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.CloudProvider
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) UpdateProvider(ctx context.Context, p *model.CloudProvider) error {
	creds, err := jsonArg(p.Credentials)
	if err != nil {
		return err
	}
	conf, err := jsonArg(p.Configuration)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		update cloud_providers
		set name=$2, description=$3, region=$4, credentials=$5, configuration=$6,
		    is_active=$7, connection_status=$8, updated_at=$9, updated_by=$10, version=$11
		where id=$1 and deleted_at is null
	`, p.ID, p.Name, nullStr(p.Description), nullStr(p.Region), creds, conf,
		p.IsActive, p.ConnectionStatus, p.UpdatedAt, nullStr(p.UpdatedBy), p.Version)
	if err != nil {
		return err
	}
	return mustAffect(res, "cloud provider", p.ID)
}

func (s *Store) DeleteProvider(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		update cloud_providers set deleted_at=$2, updated_at=$2
		where id=$1 and deleted_at is null
	`, id, at)
	if err != nil {
		return err
	}
	return mustAffect(res, "cloud provider", id)
}

const resourceCols = `
	id, created_at, updated_at, deleted_at, metadata, version, created_by, updated_by,
	name, description, infrastructure_id, cloud_provider_id, resource_type_id,
	external_id, region, availability_zone, resource_status,
	configuration, desired_configuration, actual_configuration,
	cost_per_hour, monthly_cost_estimate, last_synced_at, sync_error`

func (s *Store) CreateResource(ctx context.Context, r *model.InfrastructureResource) error {
	meta, err := jsonArg(r.Metadata)
	if err != nil {
		return err
	}
	conf, err := jsonArg(r.Configuration)
	if err != nil {
		return err
	}
	desired, err := jsonArg(r.DesiredConfiguration)
	if err != nil {
		return err
	}
	actual, err := jsonArg(r.ActualConfiguration)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		insert into infrastructure_resources(
			id, created_at, updated_at, metadata, version, created_by,
			name, description, infrastructure_id, cloud_provider_id, resource_type_id,
			external_id, region, availability_zone, resource_status,
			configuration, desired_configuration, actual_configuration,
			cost_per_hour, monthly_cost_estimate, last_synced_at, sync_error)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)
	`, r.ID, r.CreatedAt, r.UpdatedAt, meta, r.Version, nullStr(r.CreatedBy),
		r.Name, nullStr(r.Description), nullStr(r.InfrastructureID), r.CloudProviderID,
		nullStr(r.ResourceTypeID), nullStr(r.ExternalID), nullStr(r.Region),
		nullStr(r.AvailabilityZone), string(r.Status), conf, desired, actual,
		r.CostPerHour, r.MonthlyCostEstimate, nullTime(r.LastSyncedAt), nullStr(r.SyncError))
	return err
}

func (s *Store) GetResource(ctx context.Context, id string) (model.InfrastructureResource, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+resourceCols+`
		from infrastructure_resources
		where id=$1 and deleted_at is null
	`, id)
	r, err := scanResource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.InfrastructureResource{}, apperr.NotFound("infrastructure resource", id)
	}
	return r, err
}

func (s *Store) ListResources(ctx context.Context, f infra.ResourceFilter) ([]model.InfrastructureResource, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+resourceCols+`
		from infrastructure_resources r
		where r.deleted_at is null
		  and ($1 = '' or exists (
		      select 1 from cloud_providers cp
		      where cp.id = r.cloud_provider_id and cp.provider_type = $1))
		  and ($2 = '' or r.resource_status = $2)
		  and ($3 = '' or exists (
		      select 1 from resource_types rt
		      where rt.id = r.resource_type_id and rt.resource_category = $3))
		order by r.created_at desc
		limit $4 offset $5
	`, f.CloudProvider, f.Status, f.ResourceType, f.Limit, f.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.InfrastructureResource
	for rows.Next() {
		r, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) UpdateResource(ctx context.Context, r *model.InfrastructureResource) error {
	conf, err := jsonArg(r.Configuration)
	if err != nil {
		return err
	}
	desired, err := jsonArg(r.DesiredConfiguration)
	if err != nil {
		return err
	}
	actual, err := jsonArg(r.ActualConfiguration)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		update infrastructure_resources
		set name=$2, resource_status=$3, region=$4,
		    configuration=$5, desired_configuration=$6, actual_configuration=$7,
		    cost_per_hour=$8, monthly_cost_estimate=$9,
		    last_synced_at=$10, sync_error=$11,
		    updated_at=$12, updated_by=$13, version=$14
		where id=$1 and deleted_at is null
	`, r.ID, r.Name, string(r.Status), nullStr(r.Region), conf, desired, actual,
		r.CostPerHour, r.MonthlyCostEstimate, nullTime(r.LastSyncedAt),
		nullStr(r.SyncError), r.UpdatedAt, nullStr(r.UpdatedBy), r.Version)
	if err != nil {
		return err
	}
	return mustAffect(res, "infrastructure resource", r.ID)
}

func (s *Store) DeleteResource(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		update infrastructure_resources set deleted_at=$2, updated_at=$2
		where id=$1 and deleted_at is null
	`, id, at)
	if err != nil {
		return err
	}
	return mustAffect(res, "infrastructure resource", id)
}

// --- scanners ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProvider(row rowScanner) (model.CloudProvider, error) {
	var p model.CloudProvider
	var deleted, lastConnected sql.NullTime
	var meta, creds, conf []byte
	var desc, region, createdBy, updatedBy sql.NullString
	var ptype string
	err := row.Scan(
		&p.ID, &p.CreatedAt, &p.UpdatedAt, &deleted, &meta, &p.Version, &createdBy, &updatedBy,
		&p.Name, &desc, &ptype, &region, &creds, &conf,
		&p.IsActive, &lastConnected, &p.ConnectionStatus)
	if err != nil {
		return model.CloudProvider{}, err
	}
	p.DeletedAt = timePtr(deleted)
	p.LastConnectedAt = timePtr(lastConnected)
	p.Description = strVal(desc)
	p.Region = strVal(region)
	p.CreatedBy = strVal(createdBy)
	p.UpdatedBy = strVal(updatedBy)
	p.ProviderType = model.CloudProviderType(ptype)
	if err := scanJSON(meta, &p.Metadata); err != nil {
		return model.CloudProvider{}, err
	}
	if err := scanJSON(creds, &p.Credentials); err != nil {
		return model.CloudProvider{}, err
	}
	if err := scanJSON(conf, &p.Configuration); err != nil {
		return model.CloudProvider{}, err
	}
	return p, nil
}

func scanResource(row rowScanner) (model.InfrastructureResource, error) {
	var r model.InfrastructureResource
	var deleted, lastSynced sql.NullTime
	var meta, conf, desired, actual []byte
	var desc, infraID, rtypeID, extID, region, az, syncErr, createdBy, updatedBy sql.NullString
	var status string
	var costPerHour, monthly sql.NullFloat64
	err := row.Scan(
		&r.ID, &r.CreatedAt, &r.UpdatedAt, &deleted, &meta, &r.Version, &createdBy, &updatedBy,
		&r.Name, &desc, &infraID, &r.CloudProviderID, &rtypeID,
		&extID, &region, &az, &status,
		&conf, &desired, &actual,
		&costPerHour, &monthly, &lastSynced, &syncErr)
	if err != nil {
		return model.InfrastructureResource{}, err
	}
	r.DeletedAt = timePtr(deleted)
	r.LastSyncedAt = timePtr(lastSynced)
	r.Description = strVal(desc)
	r.InfrastructureID = strVal(infraID)
	r.ResourceTypeID = strVal(rtypeID)
	r.ExternalID = strVal(extID)
	r.Region = strVal(region)
	r.AvailabilityZone = strVal(az)
	r.SyncError = strVal(syncErr)
	r.CreatedBy = strVal(createdBy)
	r.UpdatedBy = strVal(updatedBy)
	r.Status = model.ResourceStatus(status)
	r.CostPerHour = floatVal(costPerHour)
	r.MonthlyCostEstimate = floatVal(monthly)
	if err := scanJSON(meta, &r.Metadata); err != nil {
		return model.InfrastructureResource{}, err
	}
	if err := scanJSON(conf, &r.Configuration); err != nil {
		return model.InfrastructureResource{}, err
	}
	if err := scanJSON(desired, &r.DesiredConfiguration); err != nil {
		return model.InfrastructureResource{}, err
	}
	if err := scanJSON(actual, &r.ActualConfiguration); err != nil {
		return model.InfrastructureResource{}, err
	}
	return r, nil
}

func mustAffect(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.NotFound(resource, id)
	}
	return nil
}
