package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"cloudops.org/internal/apperr"
	"cloudops.org/internal/model"
	"cloudops.org/internal/policy"
)

const policyCols = `
	id, created_at, updated_at, deleted_at, metadata, version, created_by, updated_by,
	name, description, policy_type, policy_status, severity, policy_version,
	policy_code, rule_engine, target_resources, target_environments, parameters,
	is_enforced, auto_remediate, notification_enabled, last_evaluated_at`

func (s *Store) CreatePolicy(ctx context.Context, p *model.Policy) error {
	meta, err := jsonArg(p.Metadata)
	if err != nil {
		return err
	}
	targets, err := jsonArg(p.TargetResources)
	if err != nil {
		return err
	}
	envs, err := jsonArg(p.TargetEnvironments)
	if err != nil {
		return err
	}
	params, err := jsonArg(p.Parameters)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		insert into policies(
			id, created_at, updated_at, metadata, version, created_by,
			name, description, policy_type, policy_status, severity, policy_version,
			policy_code, rule_engine, target_resources, target_environments, parameters,
			is_enforced, auto_remediate, notification_enabled)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
	`, p.ID, p.CreatedAt, p.UpdatedAt, meta, p.Version, nullStr(p.CreatedBy),
		p.Name, nullStr(p.Description), string(p.Type), string(p.Status),
		string(p.Severity), p.PolicyVersion, p.PolicyCode, string(p.RuleEngine),
		targets, envs, params, p.IsEnforced, p.AutoRemediate, p.NotificationEnabled)
	return err
}

func (s *Store) GetPolicy(ctx context.Context, id string) (model.Policy, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+policyCols+`
		from policies
		where id=$1 and deleted_at is null
	`, id)
	p, err := scanPolicy(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Policy{}, apperr.NotFound("policy", id)
	}
	return p, err
}

func (s *Store) ListPolicies(ctx context.Context, f policy.Filter) ([]model.Policy, error) {
	enforced := any(nil)
	if f.Enforced != nil {
		enforced = *f.Enforced
	}
	rows, err := s.db.QueryContext(ctx, `
		select `+policyCols+`
		from policies
		where deleted_at is null
		  and ($1 = '' or policy_type = $1)
		  and ($2 = '' or severity = $2)
		  and ($3::boolean is null or is_enforced = $3)
		order by created_at desc
		limit $4 offset $5
	`, f.Type, f.Severity, enforced, f.Limit, f.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Policy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) UpdatePolicy(ctx context.Context, p *model.Policy) error {
	targets, err := jsonArg(p.TargetResources)
	if err != nil {
		return err
	}
	envs, err := jsonArg(p.TargetEnvironments)
	if err != nil {
		return err
	}
	params, err := jsonArg(p.Parameters)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		update policies
		set name=$2, description=$3, policy_type=$4, policy_status=$5, severity=$6,
		    policy_code=$7, target_resources=$8, target_environments=$9, parameters=$10,
		    is_enforced=$11, last_evaluated_at=$12, updated_at=$13, updated_by=$14, version=$15
		where id=$1 and deleted_at is null
	`, p.ID, p.Name, nullStr(p.Description), string(p.Type), string(p.Status),
		string(p.Severity), p.PolicyCode, targets, envs, params,
		p.IsEnforced, nullTime(p.LastEvaluatedAt), p.UpdatedAt, nullStr(p.UpdatedBy), p.Version)
	if err != nil {
		return err
	}
	return mustAffect(res, "policy", p.ID)
}

func (s *Store) DeletePolicy(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		update policies set deleted_at=$2, updated_at=$2
		where id=$1 and deleted_at is null
	`, id, at)
	if err != nil {
		return err
	}
	return mustAffect(res, "policy", id)
}

func (s *Store) CountViolations(ctx context.Context, policyID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		select count(*) from policy_violations
		where policy_id=$1 and violation_status=$2 and deleted_at is null
	`, policyID, string(model.ViolationOpen)).Scan(&n)
	return n, err
}

const violationCols = `
	id, created_at, updated_at, deleted_at, metadata, version,
	name, description, policy_id, resource_id, resource_type, resource_identifier,
	violation_status, severity, violation_details, detected_at, last_seen_at,
	resolved_at, resolved_by, resolution_notes, suppressed_until, suppression_reason`

func (s *Store) CreateViolation(ctx context.Context, v *model.PolicyViolation) error {
	meta, err := jsonArg(v.Metadata)
	if err != nil {
		return err
	}
	details, err := jsonArg(v.ViolationDetails)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		insert into policy_violations(
			id, created_at, updated_at, metadata, version,
			name, description, policy_id, resource_id, resource_type, resource_identifier,
			violation_status, severity, violation_details, detected_at, last_seen_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
	`, v.ID, v.CreatedAt, v.UpdatedAt, meta, v.Version,
		v.Name, nullStr(v.Description), v.PolicyID, nullStr(v.ResourceID),
		v.ResourceType, v.ResourceIdentifier, string(v.Status), string(v.Severity),
		details, v.DetectedAt, v.LastSeenAt)
	return err
}

func (s *Store) GetViolation(ctx context.Context, id string) (model.PolicyViolation, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+violationCols+`
		from policy_violations
		where id=$1 and deleted_at is null
	`, id)
	v, err := scanViolation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.PolicyViolation{}, apperr.NotFound("policy violation", id)
	}
	return v, err
}

func (s *Store) ListViolations(ctx context.Context, f policy.ViolationFilter) ([]model.PolicyViolation, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+violationCols+`
		from policy_violations
		where deleted_at is null
		  and ($1 = '' or policy_id = $1)
		  and ($2 = '' or severity = $2)
		  and ($3 = '' or violation_status = $3)
		order by detected_at desc
		limit $4 offset $5
	`, f.PolicyID, f.Severity, f.Status, f.Limit, f.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.PolicyViolation
	for rows.Next() {
		v, err := scanViolation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *Store) UpdateViolation(ctx context.Context, v *model.PolicyViolation) error {
	details, err := jsonArg(v.ViolationDetails)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		update policy_violations
		set violation_status=$2, severity=$3, violation_details=$4, last_seen_at=$5,
		    resolved_at=$6, resolved_by=$7, resolution_notes=$8,
		    suppressed_until=$9, suppression_reason=$10,
		    updated_at=$11, version=$12
		where id=$1 and deleted_at is null
	`, v.ID, string(v.Status), string(v.Severity), details, v.LastSeenAt,
		nullTime(v.ResolvedAt), nullStr(v.ResolvedBy), nullStr(v.ResolutionNotes),
		nullTime(v.SuppressedUntil), nullStr(v.SuppressionReason),
		v.UpdatedAt, v.Version)
	if err != nil {
		return err
	}
	return mustAffect(res, "policy violation", v.ID)
}

func (s *Store) CreateExemption(ctx context.Context, e *model.PolicyExemption) error {
	meta, err := jsonArg(e.Metadata)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		insert into policy_exemptions(
			id, created_at, updated_at, metadata, version,
			name, description, policy_id, resource_pattern, exemption_reason,
			expires_at, granted_by, is_active)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, e.ID, e.CreatedAt, e.UpdatedAt, meta, e.Version,
		e.Name, nullStr(e.Description), e.PolicyID, e.ResourcePattern,
		e.ExemptionReason, nullTime(e.ExpiresAt), e.GrantedBy, e.IsActive)
	return err
}

func (s *Store) ListExemptions(ctx context.Context, policyID string, limit, offset int) ([]model.PolicyExemption, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, created_at, updated_at, deleted_at, metadata, version,
		       name, description, policy_id, resource_pattern, exemption_reason,
		       expires_at, granted_by, is_active
		from policy_exemptions
		where deleted_at is null and ($1 = '' or policy_id = $1)
		order by created_at desc
		limit $2 offset $3
	`, policyID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.PolicyExemption
	for rows.Next() {
		var e model.PolicyExemption
		var deleted, expires sql.NullTime
		var meta []byte
		var desc sql.NullString
		if err := rows.Scan(
			&e.ID, &e.CreatedAt, &e.UpdatedAt, &deleted, &meta, &e.Version,
			&e.Name, &desc, &e.PolicyID, &e.ResourcePattern, &e.ExemptionReason,
			&expires, &e.GrantedBy, &e.IsActive); err != nil {
			return nil, err
		}
		e.DeletedAt = timePtr(deleted)
		e.ExpiresAt = timePtr(expires)
		e.Description = strVal(desc)
		if err := scanJSON(meta, &e.Metadata); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// --- scanners ---

func scanPolicy(row rowScanner) (model.Policy, error) {
	var p model.Policy
	var deleted, lastEval sql.NullTime
	var meta, targets, envs, params []byte
	var desc, createdBy, updatedBy sql.NullString
	var ptype, pstatus, severity, engine string
	err := row.Scan(
		&p.ID, &p.CreatedAt, &p.UpdatedAt, &deleted, &meta, &p.Version, &createdBy, &updatedBy,
		&p.Name, &desc, &ptype, &pstatus, &severity, &p.PolicyVersion,
		&p.PolicyCode, &engine, &targets, &envs, &params,
		&p.IsEnforced, &p.AutoRemediate, &p.NotificationEnabled, &lastEval)
	if err != nil {
		return model.Policy{}, err
	}
	p.DeletedAt = timePtr(deleted)
	p.LastEvaluatedAt = timePtr(lastEval)
	p.Description = strVal(desc)
	p.CreatedBy = strVal(createdBy)
	p.UpdatedBy = strVal(updatedBy)
	p.Type = model.PolicyType(ptype)
	p.Status = model.PolicyStatus(pstatus)
	p.Severity = model.PolicySeverity(severity)
	p.RuleEngine = model.RuleEngine(engine)
	if err := scanJSON(meta, &p.Metadata); err != nil {
		return model.Policy{}, err
	}
	if err := scanJSON(targets, &p.TargetResources); err != nil {
		return model.Policy{}, err
	}
	if err := scanJSON(envs, &p.TargetEnvironments); err != nil {
		return model.Policy{}, err
	}
	if err := scanJSON(params, &p.Parameters); err != nil {
		return model.Policy{}, err
	}
	return p, nil
}

func scanViolation(row rowScanner) (model.PolicyViolation, error) {
	var v model.PolicyViolation
	var deleted, resolved, suppressed sql.NullTime
	var meta, details []byte
	var desc, resourceID, resolvedBy, notes, reason sql.NullString
	var status, severity string
	err := row.Scan(
		&v.ID, &v.CreatedAt, &v.UpdatedAt, &deleted, &meta, &v.Version,
		&v.Name, &desc, &v.PolicyID, &resourceID, &v.ResourceType, &v.ResourceIdentifier,
		&status, &severity, &details, &v.DetectedAt, &v.LastSeenAt,
		&resolved, &resolvedBy, &notes, &suppressed, &reason)
	if err != nil {
		return model.PolicyViolation{}, err
	}
	v.DeletedAt = timePtr(deleted)
	v.ResolvedAt = timePtr(resolved)
	v.SuppressedUntil = timePtr(suppressed)
	v.Description = strVal(desc)
	v.ResourceID = strVal(resourceID)
	v.ResolvedBy = strVal(resolvedBy)
	v.ResolutionNotes = strVal(notes)
	v.SuppressionReason = strVal(reason)
	v.Status = model.ViolationStatus(status)
	v.Severity = model.PolicySeverity(severity)
	if err := scanJSON(meta, &v.Metadata); err != nil {
		return model.PolicyViolation{}, err
	}
	if err := scanJSON(details, &v.ViolationDetails); err != nil {
		return model.PolicyViolation{}, err
	}
	return v, nil
}
