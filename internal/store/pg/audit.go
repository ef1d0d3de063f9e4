package pg

import (
	"context"
	"database/sql"

	"cloudops.org/internal/model"
)

func (s *Store) AppendLog(ctx context.Context, l *model.AuditLog) error {
	data, err := jsonArg(l.EventData)
	if err != nil {
		return err
	}
	before, err := jsonArg(l.BeforeState)
	if err != nil {
		return err
	}
	after, err := jsonArg(l.AfterState)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		insert into audit_logs(
			id, created_at, updated_at, version,
			event_type, severity, status, user_id, session_id,
			resource_type, resource_id, resource_identifier,
			action, description, event_data, before_state, after_state,
			ip_address, user_agent, api_endpoint, request_id, correlation_id,
			duration_ms, error_message, error_code)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25)
	`, l.ID, l.CreatedAt, l.UpdatedAt, l.Version,
		string(l.EventType), string(l.Severity), string(l.Status),
		nullStr(l.UserID), nullStr(l.SessionID),
		nullStr(l.ResourceType), nullStr(l.ResourceID), nullStr(l.ResourceIdentifier),
		l.Action, l.Description, data, before, after,
		nullStr(l.IPAddress), nullStr(l.UserAgent), nullStr(l.APIEndpoint),
		nullStr(l.RequestID), nullStr(l.CorrelationID),
		l.DurationMillis, nullStr(l.ErrorMessage), nullStr(l.ErrorCode))
	return err
}

func (s *Store) ListLogs(ctx context.Context, eventType string, limit, offset int) ([]model.AuditLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, created_at, updated_at, version,
		       event_type, severity, status, user_id, session_id,
		       resource_type, resource_id, resource_identifier,
		       action, description, event_data, before_state, after_state,
		       ip_address, user_agent, api_endpoint, request_id, correlation_id,
		       duration_ms, error_message, error_code
		from audit_logs
		where ($1 = '' or event_type = $1)
		order by created_at desc
		limit $2 offset $3
	`, eventType, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AuditLog
	for rows.Next() {
		var l model.AuditLog
		var data, before, after []byte
		var userID, sessionID, rtype, rid, rident, ip, ua, endpoint, reqID, corrID, errMsg, errCode sql.NullString
		var etype, severity, status string
		if err := rows.Scan(
			&l.ID, &l.CreatedAt, &l.UpdatedAt, &l.Version,
			&etype, &severity, &status, &userID, &sessionID,
			&rtype, &rid, &rident,
			&l.Action, &l.Description, &data, &before, &after,
			&ip, &ua, &endpoint, &reqID, &corrID,
			&l.DurationMillis, &errMsg, &errCode); err != nil {
			return nil, err
		}
		l.EventType = model.AuditEventType(etype)
		l.Severity = model.AuditSeverity(severity)
		l.Status = model.AuditStatus(status)
		l.UserID = strVal(userID)
		l.SessionID = strVal(sessionID)
		l.ResourceType = strVal(rtype)
		l.ResourceID = strVal(rid)
		l.ResourceIdentifier = strVal(rident)
		l.IPAddress = strVal(ip)
		l.UserAgent = strVal(ua)
		l.APIEndpoint = strVal(endpoint)
		l.RequestID = strVal(reqID)
		l.CorrelationID = strVal(corrID)
		l.ErrorMessage = strVal(errMsg)
		l.ErrorCode = strVal(errCode)
		if err := scanJSON(data, &l.EventData); err != nil {
			return nil, err
		}
		if err := scanJSON(before, &l.BeforeState); err != nil {
			return nil, err
		}
		if err := scanJSON(after, &l.AfterState); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
