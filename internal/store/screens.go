package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/stevehiehn/greenscreen/internal/field"
	"github.com/stevehiehn/greenscreen/internal/screen"
)

type screenRow struct {
	Name            string `db:"screen_name"`
	Description     string `db:"description"`
	Option          string `db:"option"`
	IdentifierParam string `db:"identifier_param"`
	Params          string `db:"params"`
}

type fieldRow struct {
	Name            string         `db:"field_name"`
	MaxLength       int            `db:"max_length"`
	Required        bool           `db:"required"`
	Kind            string         `db:"type"`
	ValidValues     sql.NullString `db:"valid_values"`
	TabsNeeded      int            `db:"tabs_needed"`
	TabsNeededEmpty sql.NullInt64  `db:"tabs_needed_empty"`
	Description     string         `db:"description"`
}

type stepRow struct {
	Order       int    `db:"step_order"`
	Gate        string `db:"screen_title_contains"`
	Action      string `db:"action_type"`
	Value       string `db:"action_value"`
	WaitSeconds int    `db:"wait_time"`
	Description string `db:"description"`
}

// ListScreenNames returns every stored screen name, sorted.
func (s *Store) ListScreenNames(ctx context.Context) ([]string, error) {
	names := []string{}
	if err := s.db.SelectContext(ctx, &names, `SELECT screen_name FROM screen_configs ORDER BY screen_name`); err != nil {
		return nil, fmt.Errorf("list screens: %w", err)
	}
	return names, nil
}

// GetScreen loads a screen with its fields in declaration order and its steps
// in ascending step order.
func (s *Store) GetScreen(ctx context.Context, name string) (*screen.Screen, error) {
	var row screenRow
	err := s.db.GetContext(ctx, &row, `SELECT screen_name, description, option, identifier_param, params FROM screen_configs WHERE screen_name = ?`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("screen %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get screen: %w", err)
	}

	sc := &screen.Screen{
		Name:            row.Name,
		Description:     row.Description,
		Option:          row.Option,
		IdentifierParam: row.IdentifierParam,
	}
	if err := json.Unmarshal([]byte(row.Params), &sc.Params); err != nil {
		return nil, fmt.Errorf("decode params for %q: %w", name, err)
	}
	if len(sc.Params) == 0 {
		sc.Params = nil
	}

	var fields []fieldRow
	if err := s.db.SelectContext(ctx, &fields, `SELECT field_name, max_length, required, type, valid_values, tabs_needed, tabs_needed_empty, description
		FROM field_configs WHERE screen_name = ? ORDER BY position`, name); err != nil {
		return nil, fmt.Errorf("get fields: %w", err)
	}
	for _, f := range fields {
		r := field.Rule{
			Name:        f.Name,
			MaxLength:   f.MaxLength,
			Required:    f.Required,
			Kind:        field.Kind(f.Kind),
			TabsNeeded:  f.TabsNeeded,
			Description: f.Description,
		}
		if f.ValidValues.Valid && f.ValidValues.String != "" {
			if err := json.Unmarshal([]byte(f.ValidValues.String), &r.AllowedValues); err != nil {
				return nil, fmt.Errorf("decode valid_values for %s: %w", f.Name, err)
			}
		}
		if f.TabsNeededEmpty.Valid {
			n := int(f.TabsNeededEmpty.Int64)
			r.TabsNeededEmpty = &n
		}
		sc.Fields = append(sc.Fields, r)
	}

	var steps []stepRow
	if err := s.db.SelectContext(ctx, &steps, `SELECT step_order, screen_title_contains, action_type, action_value, wait_time, description
		FROM navigation_steps WHERE screen_name = ? ORDER BY step_order`, name); err != nil {
		return nil, fmt.Errorf("get steps: %w", err)
	}
	for _, st := range steps {
		sc.Steps = append(sc.Steps, screen.Step{
			Order:       st.Order,
			Gate:        st.Gate,
			Action:      screen.ActionKind(st.Action),
			Value:       st.Value,
			WaitSeconds: st.WaitSeconds,
			Description: st.Description,
		})
	}
	return sc, nil
}

// CreateScreen stores a new screen. The screen must pass screen.Validate.
func (s *Store) CreateScreen(ctx context.Context, sc *screen.Screen) error {
	if err := screen.Validate(sc); err != nil {
		return err
	}
	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var n int
		if err := tx.GetContext(ctx, &n, `SELECT COUNT(*) FROM screen_configs WHERE screen_name = ?`, sc.Name); err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("screen %q: %w", sc.Name, ErrExists)
		}
		params, err := encodeParams(sc.Params)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO screen_configs(screen_name, description, option, identifier_param, params) VALUES(?, ?, ?, ?, ?)`,
			sc.Name, sc.Description, sc.Option, sc.IdentifierParam, params); err != nil {
			return fmt.Errorf("insert screen: %w", err)
		}
		return insertChildren(ctx, tx, sc)
	})
	if err == nil {
		s.logger.Info("screen created", zap.String("screen", sc.Name))
	}
	return err
}

// UpdateScreen replaces the stored definition of name with sc. sc.Name may
// differ from name to rename the screen.
func (s *Store) UpdateScreen(ctx context.Context, name string, sc *screen.Screen) error {
	if err := screen.Validate(sc); err != nil {
		return err
	}
	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		params, err := encodeParams(sc.Params)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `UPDATE screen_configs SET screen_name = ?, description = ?, option = ?, identifier_param = ?, params = ?, updated_at = CURRENT_TIMESTAMP
			WHERE screen_name = ?`, sc.Name, sc.Description, sc.Option, sc.IdentifierParam, params, name)
		if err != nil {
			if strings.Contains(err.Error(), "UNIQUE") {
				return fmt.Errorf("screen %q: %w", sc.Name, ErrExists)
			}
			return fmt.Errorf("update screen: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("screen %q: %w", name, ErrNotFound)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM field_configs WHERE screen_name = ?`, sc.Name); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM navigation_steps WHERE screen_name = ?`, sc.Name); err != nil {
			return err
		}
		return insertChildren(ctx, tx, sc)
	})
	if err == nil {
		s.logger.Info("screen updated", zap.String("screen", name))
	}
	return err
}

// DeleteScreen removes a screen with its fields and steps. Submission
// history is kept.
func (s *Store) DeleteScreen(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM screen_configs WHERE screen_name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete screen: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("screen %q: %w", name, ErrNotFound)
	}
	s.logger.Info("screen deleted", zap.String("screen", name))
	return nil
}

func insertChildren(ctx context.Context, tx *sqlx.Tx, sc *screen.Screen) error {
	for i, r := range sc.Fields {
		var valid any
		if r.AllowedValues != nil {
			b, err := json.Marshal(r.AllowedValues)
			if err != nil {
				return err
			}
			valid = string(b)
		}
		var empty any
		if r.TabsNeededEmpty != nil {
			empty = *r.TabsNeededEmpty
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO field_configs(screen_name, position, field_name, max_length, required, type, valid_values, tabs_needed, tabs_needed_empty, description)
			VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sc.Name, i, r.Name, r.MaxLength, r.Required, string(r.Kind), valid, r.TabsNeeded, empty, r.Description); err != nil {
			return fmt.Errorf("insert field %s: %w", r.Name, err)
		}
	}
	for _, st := range sc.Steps {
		if _, err := tx.ExecContext(ctx, `INSERT INTO navigation_steps(screen_name, step_order, screen_title_contains, action_type, action_value, wait_time, description)
			VALUES(?, ?, ?, ?, ?, ?, ?)`,
			sc.Name, st.Order, st.Gate, string(st.Action), st.Value, st.WaitSeconds, st.Description); err != nil {
			return fmt.Errorf("insert step %d: %w", st.Order, err)
		}
	}
	return nil
}

func encodeParams(params map[string]string) (string, error) {
	if params == nil {
		params = map[string]string{}
	}
	b, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("encode params: %w", err)
	}
	return string(b), nil
}
