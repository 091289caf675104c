package storage

import (
	"context"
	"fmt"

	"newsbot/types"
)

// InsertDelivery appends a delivery record and returns its id
func (s *Store) InsertDelivery(ctx context.Context, rec *types.DeliveryRecord) (int64, error) {
	if rec == nil {
		return 0, fmt.Errorf("storage: insert delivery: nil record")
	}
	sent := rec.SentAt
	if sent.IsZero() {
		sent = s.now()
	}
	success := 0
	if rec.Success {
		success = 1
	}

	res, err := s.exec(ctx, `
		INSERT INTO delivery_log (article_id, channel, success, http_status, response_body, attempts, sent_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ArticleID, rec.Channel, success, rec.HTTPStatus, rec.ResponseBody, rec.Attempts, toMillis(sent),
	)
	if err != nil {
		return 0, fmt.Errorf("storage: insert delivery: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("storage: insert delivery id: %w", err)
	}
	rec.ID = id
	return id, nil
}

// DeliveriesForArticle lists the delivery attempts recorded for an article
func (s *Store) DeliveriesForArticle(ctx context.Context, articleID int64) ([]types.DeliveryRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, article_id, channel, success, http_status, response_body, attempts, sent_at
		FROM delivery_log WHERE article_id = ? ORDER BY id`, articleID)
	if err != nil {
		return nil, fmt.Errorf("storage: list deliveries: %w", err)
	}
	defer rows.Close()

	var out []types.DeliveryRecord
	for rows.Next() {
		var (
			rec     types.DeliveryRecord
			success int
			sent    int64
		)
		if err := rows.Scan(&rec.ID, &rec.ArticleID, &rec.Channel, &success, &rec.HTTPStatus, &rec.ResponseBody, &rec.Attempts, &sent); err != nil {
			return nil, fmt.Errorf("storage: scan delivery: %w", err)
		}
		rec.Success = success == 1
		rec.SentAt = fromMillis(sent)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// DeleteDeliveries removes the whole delivery log
func (s *Store) DeleteDeliveries(ctx context.Context) (int64, error) {
	res, err := s.exec(ctx, `DELETE FROM delivery_log`)
	if err != nil {
		return 0, fmt.Errorf("storage: delete deliveries: %w", err)
	}
	return res.RowsAffected()
}
