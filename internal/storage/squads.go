package storage

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/squad-orchestrator/internal/models"
)

const squadColumns = `uuid, name, type, max_users, current_users, is_active, priority, stale, updated_at`

func scanSquad(row scanner) (*models.Squad, error) {
	sq := &models.Squad{}
	if err := row.Scan(&sq.UUID, &sq.Name, &sq.Type, &sq.MaxUsers, &sq.CurrentUsers,
		&sq.IsActive, &sq.Priority, &sq.Stale, &sq.UpdatedAt); err != nil {
		return nil, err
	}
	return sq, nil
}

// ListSquads возвращает все сквады, включая помеченные stale.
func (s *Storage) ListSquads(ctx context.Context) ([]models.Squad, error) {
	const op = "storage.ListSquads"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	rows, err := s.conn(ctx).QueryContext(ctx,
		`SELECT `+squadColumns+` FROM squads ORDER BY priority, uuid`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var squads []models.Squad
	for rows.Next() {
		sq, err := scanSquad(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		squads = append(squads, *sq)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return squads, nil
}

// GetSquad возвращает сквад по uuid.
func (s *Storage) GetSquad(ctx context.Context, uuid string) (*models.Squad, error) {
	const op = "storage.GetSquad"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	sq, err := scanSquad(s.conn(ctx).QueryRowContext(ctx,
		`SELECT `+squadColumns+` FROM squads WHERE uuid = $1`, uuid))
	if err != nil {
		return nil, wrapNotFound(op, err)
	}
	return sq, nil
}

// InsertSquad добавляет новый сквад.
func (s *Storage) InsertSquad(ctx context.Context, sq models.Squad) error {
	const op = "storage.InsertSquad"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	_, err := s.conn(ctx).ExecContext(ctx,
		`INSERT INTO squads (uuid, name, type, max_users, current_users, is_active, priority, stale)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE)`,
		sq.UUID, sq.Name, sq.Type, sq.MaxUsers, sq.CurrentUsers, sq.IsActive, sq.Priority)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// RefreshSquadFromExternal обновляет имя сквада из панели и снимает отметку stale.
// Локальные поля (тип, лимит, приоритет, активность) не меняются.
func (s *Storage) RefreshSquadFromExternal(ctx context.Context, uuid, name string) error {
	const op = "storage.RefreshSquadFromExternal"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	res, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE squads SET name = $2, stale = FALSE, updated_at = NOW() WHERE uuid = $1`,
		uuid, name)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return expectAffected(op, res)
}

// MarkSquadStale помечает сквад отсутствующим в последнем списке панели.
func (s *Storage) MarkSquadStale(ctx context.Context, uuid string) error {
	const op = "storage.MarkSquadStale"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	res, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE squads SET stale = TRUE, updated_at = NOW() WHERE uuid = $1`, uuid)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return expectAffected(op, res)
}

// UpdateSquadSettings записывает локально редактируемые поля сквада.
func (s *Storage) UpdateSquadSettings(ctx context.Context, sq models.Squad) error {
	const op = "storage.UpdateSquadSettings"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	res, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE squads SET name = $2, type = $3, max_users = $4, priority = $5,
		                   is_active = $6, updated_at = NOW()
		 WHERE uuid = $1`,
		sq.UUID, sq.Name, sq.Type, sq.MaxUsers, sq.Priority, sq.IsActive)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return expectAffected(op, res)
}

// IncrementSquadUsers атомарно увеличивает current_users, если в скваде есть место.
// Возвращает false, если сквад заполнен или не существует.
func (s *Storage) IncrementSquadUsers(ctx context.Context, uuid string) (bool, error) {
	const op = "storage.IncrementSquadUsers"
	if err := checkCtx(ctx, op); err != nil {
		return false, err
	}
	res, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE squads SET current_users = current_users + 1
		 WHERE uuid = $1 AND (max_users = 0 OR current_users < max_users)`, uuid)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n > 0, nil
}

// DecrementSquadUsers атомарно уменьшает current_users, не опускаясь ниже нуля.
func (s *Storage) DecrementSquadUsers(ctx context.Context, uuid string) error {
	const op = "storage.DecrementSquadUsers"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	_, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE squads SET current_users = GREATEST(current_users - 1, 0) WHERE uuid = $1`, uuid)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// RecountSquadUsers пересчитывает current_users по таблице keys.
func (s *Storage) RecountSquadUsers(ctx context.Context) error {
	const op = "storage.RecountSquadUsers"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	_, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE squads s SET current_users = (
		     SELECT COUNT(*) FROM keys k WHERE k.squad_uuid = s.uuid
		 )`)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// DeleteStaleSquad удаляет сквад, только если он помечен stale.
func (s *Storage) DeleteStaleSquad(ctx context.Context, uuid string) error {
	const op = "storage.DeleteStaleSquad"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	res, err := s.conn(ctx).ExecContext(ctx,
		`DELETE FROM squads WHERE uuid = $1 AND stale`, uuid)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return expectAffected(op, res)
}

// GetSquadMapping возвращает списки сквадов по типам подписки.
func (s *Storage) GetSquadMapping(ctx context.Context) (models.SquadMapping, error) {
	const op = "storage.GetSquadMapping"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	rows, err := s.conn(ctx).QueryContext(ctx,
		`SELECT type, squad_uuid FROM squad_mapping ORDER BY type, position`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	mapping := models.SquadMapping{}
	for rows.Next() {
		var (
			t    models.SubscriptionType
			uuid string
		)
		if err = rows.Scan(&t, &uuid); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		mapping[t] = append(mapping[t], uuid)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return mapping, nil
}

// ReplaceSquadMapping заменяет список сквадов для каждого типа из mapping.
// Типы, которых нет в mapping, не меняются.
func (s *Storage) ReplaceSquadMapping(ctx context.Context, mapping models.SquadMapping) error {
	const op = "storage.ReplaceSquadMapping"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	return s.InTx(ctx, func(ctx context.Context) error {
		for t, uuids := range mapping {
			if _, err := s.conn(ctx).ExecContext(ctx,
				`DELETE FROM squad_mapping WHERE type = $1`, t); err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}
			for i, uuid := range uuids {
				if _, err := s.conn(ctx).ExecContext(ctx,
					`INSERT INTO squad_mapping (type, squad_uuid, position) VALUES ($1, $2, $3)
					 ON CONFLICT (type, squad_uuid) DO NOTHING`, t, uuid, i); err != nil {
					return fmt.Errorf("%s: %w", op, err)
				}
			}
		}
		return nil
	})
}
