package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/vpn-panel/internal/models"
)

const offerColumns = `id, title, description, image_url, price, is_visible, priority, start_date,
	end_date, created_at, updated_at`

func scanOffer(row rowScanner) (*models.Offer, error) {
	var o models.Offer
	if err := row.Scan(&o.ID, &o.Title, &o.Description, &o.ImageURL, &o.Price, &o.IsVisible,
		&o.Priority, &o.StartDate, &o.EndDate, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	return &o, nil
}

// ListOffers возвращает предложения по убыванию приоритета. Если visibleAt задан,
// возвращаются только видимые предложения, действующие в этот момент.
func (s *Storage) ListOffers(ctx context.Context, visibleAt *time.Time) ([]*models.Offer, error) {
	const op = "storage.ListOffers"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT ` + offerColumns + ` FROM offers
			  WHERE $1::timestamptz IS NULL
			     OR (is_visible = TRUE
			         AND (start_date IS NULL OR start_date <= $1)
			         AND (end_date IS NULL OR end_date >= $1))
			  ORDER BY priority DESC, created_at DESC`
	var at sql.NullTime
	if visibleAt != nil {
		at = sql.NullTime{Time: *visibleAt, Valid: true}
	}
	rows, err := s.DB.QueryContext(ctx, query, at)
	if err != nil {
		return nil, mapErr(op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Offer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// CreateOffer добавляет предложение.
func (s *Storage) CreateOffer(ctx context.Context, o models.Offer) (*models.Offer, error) {
	const op = "storage.CreateOffer"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	created, err := scanOffer(s.DB.QueryRowContext(ctx,
		`INSERT INTO offers (id, title, description, image_url, price, is_visible, priority, start_date, end_date)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING `+offerColumns,
		o.ID, o.Title, o.Description, o.ImageURL, o.Price, o.IsVisible, o.Priority, o.StartDate, o.EndDate))
	if err != nil {
		return nil, mapErr(op, err)
	}
	return created, nil
}

// UpdateOffer полностью перезаписывает предложение.
func (s *Storage) UpdateOffer(ctx context.Context, o models.Offer) (*models.Offer, error) {
	const op = "storage.UpdateOffer"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	updated, err := scanOffer(s.DB.QueryRowContext(ctx,
		`UPDATE offers SET title = $2, description = $3, image_url = $4, price = $5, is_visible = $6,
			priority = $7, start_date = $8, end_date = $9, updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+offerColumns,
		o.ID, o.Title, o.Description, o.ImageURL, o.Price, o.IsVisible, o.Priority, o.StartDate, o.EndDate))
	if err != nil {
		return nil, mapErr(op, err)
	}
	return updated, nil
}

// DeleteOffer удаляет предложение.
func (s *Storage) DeleteOffer(ctx context.Context, id string) error {
	const op = "storage.DeleteOffer"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	res, err := s.DB.ExecContext(ctx, `DELETE FROM offers WHERE id = $1`, id)
	if err != nil {
		return mapErr(op, err)
	}
	return rowsAffectedOrNotFound(op, res)
}

// ListNews возвращает новости, свежие первыми.
func (s *Storage) ListNews(ctx context.Context, onlyPublished bool) ([]*models.News, error) {
	const op = "storage.ListNews"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, title, content, publish_date, is_published, created_at FROM news
		 WHERE $1 = FALSE OR is_published = TRUE
		 ORDER BY publish_date DESC`, onlyPublished)
	if err != nil {
		return nil, mapErr(op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.News
	for rows.Next() {
		var n models.News
		if err := rows.Scan(&n.ID, &n.Title, &n.Content, &n.PublishDate, &n.IsPublished, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// CreateNews добавляет новость.
func (s *Storage) CreateNews(ctx context.Context, n models.News) (*models.News, error) {
	const op = "storage.CreateNews"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	var created models.News
	err := s.DB.QueryRowContext(ctx,
		`INSERT INTO news (id, title, content, publish_date, is_published) VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, title, content, publish_date, is_published, created_at`,
		n.ID, n.Title, n.Content, n.PublishDate, n.IsPublished).
		Scan(&created.ID, &created.Title, &created.Content, &created.PublishDate, &created.IsPublished, &created.CreatedAt)
	if err != nil {
		return nil, mapErr(op, err)
	}
	return &created, nil
}

// DeleteNews удаляет новость.
func (s *Storage) DeleteNews(ctx context.Context, id string) error {
	const op = "storage.DeleteNews"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	res, err := s.DB.ExecContext(ctx, `DELETE FROM news WHERE id = $1`, id)
	if err != nil {
		return mapErr(op, err)
	}
	return rowsAffectedOrNotFound(op, res)
}

// CreateMessages сохраняет пачку сообщений в одной транзакции.
func (s *Storage) CreateMessages(ctx context.Context, msgs []models.Message) (int, error) {
	const op = "storage.CreateMessages"
	if err := checkCtx(ctx, op); err != nil {
		return 0, err
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO messages (id, content, target_role, sender_id, recipient_id) VALUES ($1, $2, $3, $4, $5)`)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = stmt.Close()
	}()

	for _, m := range msgs {
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		if _, err := stmt.ExecContext(ctx, m.ID, m.Content, roleToNull(m.TargetRole), m.SenderID, m.RecipientID); err != nil {
			return 0, mapErr(op, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return len(msgs), nil
}

const messageColumns = `id, content, target_role, sender_id, recipient_id, is_read, created_at`

func scanMessage(row rowScanner) (*models.Message, error) {
	var m models.Message
	var role sql.NullString
	if err := row.Scan(&m.ID, &m.Content, &role, &m.SenderID, &m.RecipientID, &m.IsRead, &m.CreatedAt); err != nil {
		return nil, err
	}
	m.TargetRole = roleFromNull(role)
	return &m, nil
}

// ListUserMessages возвращает сообщения пользователя, новые первыми.
func (s *Storage) ListUserMessages(ctx context.Context, userID string) ([]*models.Message, error) {
	const op = "storage.ListUserMessages"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE recipient_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, mapErr(op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// GetMessage возвращает сообщение по идентификатору.
func (s *Storage) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	const op = "storage.GetMessage"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	m, err := scanMessage(s.DB.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(op, err)
	}
	return m, nil
}

// MarkMessageRead помечает сообщение прочитанным.
func (s *Storage) MarkMessageRead(ctx context.Context, id string) error {
	const op = "storage.MarkMessageRead"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	res, err := s.DB.ExecContext(ctx, `UPDATE messages SET is_read = TRUE WHERE id = $1`, id)
	if err != nil {
		return mapErr(op, err)
	}
	return rowsAffectedOrNotFound(op, res)
}
