package store

import (
	"context"
	"fmt"
)

const notificationColumns = `id, created, title, content, owner, is_read`

func scanNotification(r rowScanner) (Notification, error) {
	var item Notification
	err := r.Scan(&item.ID, &item.Created, &item.Title, &item.Content, &item.Owner, &item.Read)
	return item, err
}

func (q *Queries) GetNotification(ctx context.Context, id uint64) (Notification, error) {
	item, err := one(ctx, q, scanNotification, `SELECT `+notificationColumns+` FROM notifications WHERE id = ?`, id64(id))
	if err != nil {
		return Notification{}, fmt.Errorf("get notification: %w", err)
	}
	return item, nil
}

func (q *Queries) ListNotificationsByOwner(ctx context.Context, owner uint64) ([]Notification, error) {
	items, err := list(ctx, q, scanNotification,
		`SELECT `+notificationColumns+` FROM notifications WHERE owner = ? ORDER BY created DESC`, id64(owner))
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return items, nil
}

func (q *Queries) InsertNotification(ctx context.Context, item Notification) error {
	_, err := q.exec(ctx, `INSERT INTO notifications (id, created, title, content, owner, is_read) VALUES (?, ?, ?, ?, ?, ?)`,
		id64(item.ID), item.Created, item.Title, item.Content, id64(item.Owner), boolInt(item.Read))
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (q *Queries) UpdateNotificationRead(ctx context.Context, id uint64, read bool) error {
	if err := q.execOne(ctx, `UPDATE notifications SET is_read = ? WHERE id = ?`, boolInt(read), id64(id)); err != nil {
		return fmt.Errorf("update notification read: %w", err)
	}
	return nil
}

func (q *Queries) DeleteNotification(ctx context.Context, id uint64) error {
	if err := q.execOne(ctx, `DELETE FROM notifications WHERE id = ?`, id64(id)); err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	return nil
}

func (q *Queries) DeleteNotificationsByOwner(ctx context.Context, owner uint64) error {
	if _, err := q.exec(ctx, `DELETE FROM notifications WHERE owner = ?`, id64(owner)); err != nil {
		return fmt.Errorf("delete notifications: %w", err)
	}
	return nil
}

const reportColumns = `id, created, owner, content, asset, asset_type`

func scanReport(r rowScanner) (Report, error) {
	var item Report
	err := r.Scan(&item.ID, &item.Created, &item.Owner, &item.Content, &item.Asset, &item.AssetType)
	return item, err
}

func (q *Queries) GetReport(ctx context.Context, id uint64) (Report, error) {
	item, err := one(ctx, q, scanReport, `SELECT `+reportColumns+` FROM reports WHERE id = ?`, id64(id))
	if err != nil {
		return Report{}, fmt.Errorf("get report: %w", err)
	}
	return item, nil
}

func (q *Queries) ListReports(ctx context.Context, batch, number int) ([]Report, error) {
	limit, offset := page(batch, number)
	items, err := list(ctx, q, scanReport, `SELECT `+reportColumns+` FROM reports ORDER BY created DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	return items, nil
}

func (q *Queries) InsertReport(ctx context.Context, item Report) error {
	_, err := q.exec(ctx, `INSERT INTO reports (id, created, owner, content, asset, asset_type) VALUES (?, ?, ?, ?, ?, ?)`,
		id64(item.ID), item.Created, id64(item.Owner), item.Content, id64(item.Asset), string(item.AssetType))
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

func (q *Queries) DeleteReport(ctx context.Context, id uint64) error {
	if err := q.execOne(ctx, `DELETE FROM reports WHERE id = ?`, id64(id)); err != nil {
		return fmt.Errorf("delete report: %w", err)
	}
	return nil
}

const warningColumns = `id, created, receiver, moderator, content`

func scanWarning(r rowScanner) (Warning, error) {
	var item Warning
	err := r.Scan(&item.ID, &item.Created, &item.Receiver, &item.Moderator, &item.Content)
	return item, err
}

func (q *Queries) GetWarning(ctx context.Context, id uint64) (Warning, error) {
	item, err := one(ctx, q, scanWarning, `SELECT `+warningColumns+` FROM warnings WHERE id = ?`, id64(id))
	if err != nil {
		return Warning{}, fmt.Errorf("get warning: %w", err)
	}
	return item, nil
}

func (q *Queries) ListWarningsByReceiver(ctx context.Context, receiver uint64) ([]Warning, error) {
	items, err := list(ctx, q, scanWarning, `SELECT `+warningColumns+` FROM warnings WHERE receiver = ? ORDER BY created DESC`, id64(receiver))
	if err != nil {
		return nil, fmt.Errorf("list warnings: %w", err)
	}
	return items, nil
}

func (q *Queries) InsertWarning(ctx context.Context, item Warning) error {
	_, err := q.exec(ctx, `INSERT INTO warnings (id, created, receiver, moderator, content) VALUES (?, ?, ?, ?, ?)`,
		id64(item.ID), item.Created, id64(item.Receiver), id64(item.Moderator), item.Content)
	if err != nil {
		return fmt.Errorf("insert warning: %w", err)
	}
	return nil
}

func (q *Queries) DeleteWarning(ctx context.Context, id uint64) error {
	if err := q.execOne(ctx, `DELETE FROM warnings WHERE id = ?`, id64(id)); err != nil {
		return fmt.Errorf("delete warning: %w", err)
	}
	return nil
}

func (q *Queries) DeleteWarningsByReceiver(ctx context.Context, receiver uint64) error {
	if _, err := q.exec(ctx, `DELETE FROM warnings WHERE receiver = ?`, id64(receiver)); err != nil {
		return fmt.Errorf("delete warnings: %w", err)
	}
	return nil
}

const auditColumns = `id, created, moderator, content`

func scanAuditLogEntry(r rowScanner) (AuditLogEntry, error) {
	var item AuditLogEntry
	err := r.Scan(&item.ID, &item.Created, &item.Moderator, &item.Content)
	return item, err
}

func (q *Queries) GetAuditLogEntry(ctx context.Context, id uint64) (AuditLogEntry, error) {
	item, err := one(ctx, q, scanAuditLogEntry, `SELECT `+auditColumns+` FROM audit_log WHERE id = ?`, id64(id))
	if err != nil {
		return AuditLogEntry{}, fmt.Errorf("get audit log entry: %w", err)
	}
	return item, nil
}

func (q *Queries) ListAuditLog(ctx context.Context, batch, number int) ([]AuditLogEntry, error) {
	limit, offset := page(batch, number)
	items, err := list(ctx, q, scanAuditLogEntry, `SELECT `+auditColumns+` FROM audit_log ORDER BY created DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list audit log: %w", err)
	}
	return items, nil
}

func (q *Queries) InsertAuditLogEntry(ctx context.Context, item AuditLogEntry) error {
	_, err := q.exec(ctx, `INSERT INTO audit_log (id, created, moderator, content) VALUES (?, ?, ?, ?)`,
		id64(item.ID), item.Created, id64(item.Moderator), item.Content)
	if err != nil {
		return fmt.Errorf("insert audit log entry: %w", err)
	}
	return nil
}

func (q *Queries) DeleteAuditLogEntry(ctx context.Context, id uint64) error {
	if err := q.execOne(ctx, `DELETE FROM audit_log WHERE id = ?`, id64(id)); err != nil {
		return fmt.Errorf("delete audit log entry: %w", err)
	}
	return nil
}
