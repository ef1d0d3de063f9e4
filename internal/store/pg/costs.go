package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"cloudops.org/internal/apperr"
	"cloudops.org/internal/cost"
	"cloudops.org/internal/model"
)

func (s *Store) CreateRecord(ctx context.Context, r *model.CostRecord) error {
	meta, err := jsonArg(r.Metadata)
	if err != nil {
		return err
	}
	details, err := jsonArg(r.CostDetails)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		insert into cost_records(
			id, created_at, updated_at, metadata, version,
			resource_id, infrastructure_id, cloud_provider_id, service_name,
			resource_type, resource_identifier, region, cost_amount, currency,
			billing_period_start, billing_period_end, usage_quantity, usage_unit,
			cost_details, billing_account_id, project_id)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
	`, r.ID, r.CreatedAt, r.UpdatedAt, meta, r.Version,
		nullStr(r.ResourceID), nullStr(r.InfrastructureID), r.CloudProviderID,
		r.ServiceName, r.ResourceType, r.ResourceIdentifier, nullStr(r.Region),
		r.CostAmount, r.Currency, r.BillingPeriodStart, r.BillingPeriodEnd,
		r.UsageQuantity, nullStr(r.UsageUnit), details,
		nullStr(r.BillingAccountID), nullStr(r.ProjectID))
	return err
}

func (s *Store) ListRecords(ctx context.Context, f cost.RecordFilter) ([]model.CostRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		select r.id, r.created_at, r.updated_at, r.metadata, r.version,
		       r.resource_id, r.infrastructure_id, r.cloud_provider_id, r.service_name,
		       r.resource_type, r.resource_identifier, r.region, r.cost_amount, r.currency,
		       r.billing_period_start, r.billing_period_end, r.usage_quantity, r.usage_unit,
		       r.cost_details, r.billing_account_id, r.project_id
		from cost_records r
		where r.deleted_at is null
		  and ($1::timestamptz is null or r.billing_period_start >= $1)
		  and ($2::timestamptz is null or r.billing_period_end <= $2)
		  and ($3 = '' or exists (
		      select 1 from cloud_providers cp
		      where cp.id = r.cloud_provider_id and cp.provider_type = $3))
		  and ($4 = '' or r.service_name = $4)
		order by r.billing_period_start desc
		limit $5 offset $6
	`, nullTime(f.StartDate), nullTime(f.EndDate), f.CloudProvider, f.Service, f.Limit, f.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.CostRecord
	for rows.Next() {
		var r model.CostRecord
		var meta, details []byte
		var resID, infraID, region, unit, acct, proj sql.NullString
		var usage sql.NullFloat64
		if err := rows.Scan(
			&r.ID, &r.CreatedAt, &r.UpdatedAt, &meta, &r.Version,
			&resID, &infraID, &r.CloudProviderID, &r.ServiceName,
			&r.ResourceType, &r.ResourceIdentifier, &region, &r.CostAmount, &r.Currency,
			&r.BillingPeriodStart, &r.BillingPeriodEnd, &usage, &unit,
			&details, &acct, &proj); err != nil {
			return nil, err
		}
		r.ResourceID = strVal(resID)
		r.InfrastructureID = strVal(infraID)
		r.Region = strVal(region)
		r.UsageQuantity = floatVal(usage)
		r.UsageUnit = strVal(unit)
		r.BillingAccountID = strVal(acct)
		r.ProjectID = strVal(proj)
		if err := scanJSON(meta, &r.Metadata); err != nil {
			return nil, err
		}
		if err := scanJSON(details, &r.CostDetails); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const budgetCols = `
	id, created_at, updated_at, deleted_at, metadata, version,
	name, description, budget_amount, currency, period, budget_status,
	warning_threshold, critical_threshold, scope_filters, start_date, end_date,
	current_spend, forecasted_spend, last_updated_at, notification_emails`

func (s *Store) CreateBudget(ctx context.Context, b *model.CostBudget) error {
	meta, err := jsonArg(b.Metadata)
	if err != nil {
		return err
	}
	filters, err := jsonArg(b.ScopeFilters)
	if err != nil {
		return err
	}
	emails, err := jsonArg(b.NotificationEmails)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		insert into cost_budgets(
			id, created_at, updated_at, metadata, version,
			name, description, budget_amount, currency, period, budget_status,
			warning_threshold, critical_threshold, scope_filters, start_date, end_date,
			current_spend, forecasted_spend, last_updated_at, notification_emails)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
	`, b.ID, b.CreatedAt, b.UpdatedAt, meta, b.Version,
		b.Name, nullStr(b.Description), b.BudgetAmount, b.Currency,
		string(b.Period), string(b.Status), b.WarningThreshold, b.CriticalThreshold,
		filters, b.StartDate, nullTime(b.EndDate), b.CurrentSpend,
		b.ForecastedSpend, b.LastUpdatedAt, emails)
	return err
}

func (s *Store) GetBudget(ctx context.Context, id string) (model.CostBudget, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+budgetCols+`
		from cost_budgets
		where id=$1 and deleted_at is null
	`, id)
	b, err := scanBudget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.CostBudget{}, apperr.NotFound("cost budget", id)
	}
	return b, err
}

func (s *Store) ListBudgets(ctx context.Context, limit, offset int) ([]model.CostBudget, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+budgetCols+`
		from cost_budgets
		where deleted_at is null
		order by created_at desc
		limit $1 offset $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.CostBudget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) UpdateBudget(ctx context.Context, b *model.CostBudget) error {
	filters, err := jsonArg(b.ScopeFilters)
	if err != nil {
		return err
	}
	emails, err := jsonArg(b.NotificationEmails)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		update cost_budgets
		set name=$2, budget_amount=$3, budget_status=$4,
		    warning_threshold=$5, critical_threshold=$6, scope_filters=$7,
		    current_spend=$8, forecasted_spend=$9, last_updated_at=$10,
		    notification_emails=$11, updated_at=$12, version=$13
		where id=$1 and deleted_at is null
	`, b.ID, b.Name, b.BudgetAmount, string(b.Status),
		b.WarningThreshold, b.CriticalThreshold, filters,
		b.CurrentSpend, b.ForecastedSpend, b.LastUpdatedAt,
		emails, b.UpdatedAt, b.Version)
	if err != nil {
		return err
	}
	return mustAffect(res, "cost budget", b.ID)
}

// DeleteBudget soft-deletes a budget and cascades the marker to its alerts
// in one transaction.
func (s *Store) DeleteBudget(ctx context.Context, id string, at time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		update cost_budgets set deleted_at=$2, updated_at=$2
		where id=$1 and deleted_at is null
	`, id, at)
	if err != nil {
		return err
	}
	if err := mustAffect(res, "cost budget", id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		update cost_alerts set deleted_at=$2, updated_at=$2
		where budget_id=$1 and deleted_at is null
	`, id, at); err != nil {
		return err
	}
	return tx.Commit()
}

const alertCols = `
	id, created_at, updated_at, deleted_at, metadata, version,
	name, description, budget_id, alert_type, alert_status, severity,
	threshold_value, current_value, message, alert_details,
	triggered_at, resolved_at, resolved_by, notification_sent, notification_sent_at`

func (s *Store) CreateAlert(ctx context.Context, a *model.CostAlert) error {
	meta, err := jsonArg(a.Metadata)
	if err != nil {
		return err
	}
	details, err := jsonArg(a.AlertDetails)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		insert into cost_alerts(
			id, created_at, updated_at, metadata, version,
			name, description, budget_id, alert_type, alert_status, severity,
			threshold_value, current_value, message, alert_details,
			triggered_at, notification_sent)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
	`, a.ID, a.CreatedAt, a.UpdatedAt, meta, a.Version,
		a.Name, nullStr(a.Description), nullStr(a.BudgetID), string(a.Type),
		string(a.Status), a.Severity, a.ThresholdValue, a.CurrentValue,
		a.Message, details, a.TriggeredAt, a.NotificationSent)
	return err
}

func (s *Store) GetAlert(ctx context.Context, id string) (model.CostAlert, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+alertCols+`
		from cost_alerts
		where id=$1 and deleted_at is null
	`, id)
	a, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.CostAlert{}, apperr.NotFound("cost alert", id)
	}
	return a, err
}

func (s *Store) ListAlerts(ctx context.Context, budgetID string, limit, offset int) ([]model.CostAlert, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+alertCols+`
		from cost_alerts
		where deleted_at is null and ($1 = '' or budget_id = $1)
		order by triggered_at desc
		limit $2 offset $3
	`, budgetID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.CostAlert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) UpdateAlert(ctx context.Context, a *model.CostAlert) error {
	details, err := jsonArg(a.AlertDetails)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		update cost_alerts
		set alert_status=$2, severity=$3, message=$4, alert_details=$5,
		    resolved_at=$6, resolved_by=$7, notification_sent=$8, notification_sent_at=$9,
		    updated_at=$10, version=$11
		where id=$1 and deleted_at is null
	`, a.ID, string(a.Status), a.Severity, a.Message, details,
		nullTime(a.ResolvedAt), nullStr(a.ResolvedBy), a.NotificationSent,
		nullTime(a.NotificationSentAt), a.UpdatedAt, a.Version)
	if err != nil {
		return err
	}
	return mustAffect(res, "cost alert", a.ID)
}

// --- scanners ---

func scanBudget(row rowScanner) (model.CostBudget, error) {
	var b model.CostBudget
	var deleted, endDate sql.NullTime
	var meta, filters, emails []byte
	var desc sql.NullString
	var forecasted sql.NullFloat64
	var period, status string
	err := row.Scan(
		&b.ID, &b.CreatedAt, &b.UpdatedAt, &deleted, &meta, &b.Version,
		&b.Name, &desc, &b.BudgetAmount, &b.Currency, &period, &status,
		&b.WarningThreshold, &b.CriticalThreshold, &filters, &b.StartDate, &endDate,
		&b.CurrentSpend, &forecasted, &b.LastUpdatedAt, &emails)
	if err != nil {
		return model.CostBudget{}, err
	}
	b.DeletedAt = timePtr(deleted)
	b.EndDate = timePtr(endDate)
	b.Description = strVal(desc)
	b.ForecastedSpend = floatVal(forecasted)
	b.Period = model.CostPeriod(period)
	b.Status = model.BudgetStatus(status)
	if err := scanJSON(meta, &b.Metadata); err != nil {
		return model.CostBudget{}, err
	}
	if err := scanJSON(filters, &b.ScopeFilters); err != nil {
		return model.CostBudget{}, err
	}
	if err := scanJSON(emails, &b.NotificationEmails); err != nil {
		return model.CostBudget{}, err
	}
	return b, nil
}

func scanAlert(row rowScanner) (model.CostAlert, error) {
	var a model.CostAlert
	var deleted, resolved, sentAt sql.NullTime
	var meta, details []byte
	var desc, budgetID, resolvedBy sql.NullString
	var threshold, current sql.NullFloat64
	var atype, astatus string
	err := row.Scan(
		&a.ID, &a.CreatedAt, &a.UpdatedAt, &deleted, &meta, &a.Version,
		&a.Name, &desc, &budgetID, &atype, &astatus, &a.Severity,
		&threshold, &current, &a.Message, &details,
		&a.TriggeredAt, &resolved, &resolvedBy, &a.NotificationSent, &sentAt)
	if err != nil {
		return model.CostAlert{}, err
	}
	a.DeletedAt = timePtr(deleted)
	a.ResolvedAt = timePtr(resolved)
	a.NotificationSentAt = timePtr(sentAt)
	a.Description = strVal(desc)
	a.BudgetID = strVal(budgetID)
	a.ResolvedBy = strVal(resolvedBy)
	a.ThresholdValue = floatVal(threshold)
	a.CurrentValue = floatVal(current)
	a.Type = model.AlertType(atype)
	a.Status = model.AlertStatus(astatus)
	if err := scanJSON(meta, &a.Metadata); err != nil {
		return model.CostAlert{}, err
	}
	if err := scanJSON(details, &a.AlertDetails); err != nil {
		return model.CostAlert{}, err
	}
	return a, nil
}
