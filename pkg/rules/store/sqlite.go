package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"mercator-hq/mailrules/pkg/rules"
)

// SQLiteConfig configures the SQLite rule store.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// SQLiteStore implements rules.Store on SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger

	loadRulesStmt  *sql.Stmt
	loadGroupsStmt *sql.Stmt
	loadItemsStmt  *sql.Stmt
	lookupStmt     *sql.Stmt
	userStmt       *sql.Stmt
}

// NewSQLiteStore opens (creating if needed) the database at cfg.Path.
func NewSQLiteStore(cfg SQLiteConfig, logger *slog.Logger) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)",
		cfg.Path, cfg.BusyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite only supports single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteStore{
		db:     db,
		logger: logger.With("component", "rules.store.sqlite"),
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := s.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	s.logger.Info("SQLite rule store initialized", "path", cfg.Path)
	return s, nil
}

func (s *SQLiteStore) prepareStatements() error {
	var err error

	s.loadRulesStmt, err = s.db.Prepare(`
		SELECT definition FROM mailrules_rules
		WHERE user_id = ? AND enabled = 1
		ORDER BY position
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare load rules statement: %w", err)
	}

	s.loadGroupsStmt, err = s.db.Prepare(`
		SELECT id, name FROM mailrules_groups
		WHERE user_id = ?
		ORDER BY position
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare load groups statement: %w", err)
	}

	s.loadItemsStmt, err = s.db.Prepare(`
		SELECT group_id, item_type, value FROM mailrules_group_items
		WHERE user_id = ?
		ORDER BY group_id, position
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare load items statement: %w", err)
	}

	s.lookupStmt, err = s.db.Prepare(`
		SELECT c.id, c.name FROM mailrules_sender_categories sc
		JOIN mailrules_categories c ON c.user_id = sc.user_id AND c.id = sc.category_id
		WHERE sc.user_id = ? AND sc.address = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare lookup statement: %w", err)
	}

	s.userStmt, err = s.db.Prepare(`SELECT 1 FROM mailrules_users WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare user statement: %w", err)
	}
	return nil
}

// Import replaces everything stored for u.ID with u.
func (s *SQLiteStore) Import(ctx context.Context, u *UserData) error {
	if err := validateImport(u); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO mailrules_users (id) VALUES (?)`, u.ID); err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	for _, table := range userTables {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE user_id = ?", u.ID); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	for pos, r := range u.Rules {
		def, err := encodeRule(r)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO mailrules_rules (user_id, id, position, enabled, definition) VALUES (?, ?, ?, ?, ?)`,
			u.ID, r.ID, pos, r.IsEnabled(), def,
		); err != nil {
			return fmt.Errorf("failed to insert rule %q: %w", r.ID, err)
		}
	}

	for pos, g := range u.Groups {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO mailrules_groups (user_id, id, name, position) VALUES (?, ?, ?, ?)`,
			u.ID, g.ID, g.Name, pos,
		); err != nil {
			return fmt.Errorf("failed to insert group %q: %w", g.ID, err)
		}
		for i, item := range g.Items {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO mailrules_group_items (user_id, group_id, position, item_type, value) VALUES (?, ?, ?, ?, ?)`,
				u.ID, g.ID, i, string(item.Type), item.Value,
			); err != nil {
				return fmt.Errorf("failed to insert item of group %q: %w", g.ID, err)
			}
		}
	}

	for _, c := range u.Categories {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO mailrules_categories (user_id, id, name) VALUES (?, ?, ?)`,
			u.ID, c.ID, c.Name,
		); err != nil {
			return fmt.Errorf("failed to insert category %q: %w", c.ID, err)
		}
	}
	for _, a := range u.Senders {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO mailrules_sender_categories (user_id, address, category_id) VALUES (?, ?, ?)
			 ON CONFLICT (user_id, address) DO UPDATE SET category_id = excluded.category_id`,
			u.ID, rules.NormalizeAddress(a.Address), a.Category,
		); err != nil {
			return fmt.Errorf("failed to insert sender %q: %w", a.Address, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit import: %w", err)
	}
	s.logger.Info("Imported user", "user_id", u.ID, "rules", len(u.Rules), "groups", len(u.Groups))
	return nil
}

// AssignSenderCategory records that sender belongs to categoryID.
func (s *SQLiteStore) AssignSenderCategory(ctx context.Context, userID, sender, categoryID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO mailrules_sender_categories (user_id, address, category_id) VALUES (?, ?, ?)
		 ON CONFLICT (user_id, address) DO UPDATE SET category_id = excluded.category_id`,
		userID, rules.NormalizeAddress(sender), categoryID,
	)
	if err != nil {
		return fmt.Errorf("failed to assign sender category: %w", err)
	}
	return nil
}

// LoadRules implements rules.Store.
func (s *SQLiteStore) LoadRules(ctx context.Context, userID string) ([]*rules.Rule, error) {
	var one int
	if err := s.userStmt.QueryRowContext(ctx, userID).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: user %q", rules.ErrNotFound, userID)
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	rows, err := s.loadRulesStmt.QueryContext(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	var out []*rules.Rule
	for rows.Next() {
		var def string
		if err := rows.Scan(&def); err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		r, err := decodeRule(def)
		if err != nil {
			return nil, err
		}
		r.UserID = userID
		out = append(out, r)
	}
	return out, rows.Err()
}

// LoadGroupsWithRules implements rules.Store.
func (s *SQLiteStore) LoadGroupsWithRules(ctx context.Context, userID string) ([]*rules.GroupWithRules, error) {
	asm := newGroupAssembler()

	rows, err := s.loadGroupsStmt.QueryContext(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query groups: %w", err)
	}
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		asm.addGroup(userID, id, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(asm.order) == 0 {
		return nil, nil
	}

	items, err := s.loadItemsStmt.QueryContext(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query group items: %w", err)
	}
	for items.Next() {
		var groupID, itemType, value string
		if err := items.Scan(&groupID, &itemType, &value); err != nil {
			items.Close()
			return nil, fmt.Errorf("failed to scan group item: %w", err)
		}
		asm.addItem(groupID, itemType, value)
	}
	items.Close()
	if err := items.Err(); err != nil {
		return nil, err
	}

	ruleSet, err := s.LoadRules(ctx, userID)
	if err != nil && !errors.Is(err, rules.ErrNotFound) {
		return nil, err
	}
	return joinGroups(asm.order, ruleSet), nil
}

// LookupSenderCategory implements rules.Store.
func (s *SQLiteStore) LookupSenderCategory(ctx context.Context, userID, sender string) (*rules.Category, error) {
	cat := &rules.Category{UserID: userID}
	err := s.lookupStmt.QueryRowContext(ctx, userID, rules.NormalizeAddress(sender)).Scan(&cat.ID, &cat.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up sender category: %w", err)
	}
	return cat, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	for _, stmt := range []*sql.Stmt{s.loadRulesStmt, s.loadGroupsStmt, s.loadItemsStmt, s.lookupStmt, s.userStmt} {
		if stmt != nil {
			stmt.Close()
		}
	}
	return s.db.Close()
}

var _ rules.Store = (*SQLiteStore)(nil)
