package sql

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bcnelson/activation-key-server/internal/domain"
	"github.com/bcnelson/activation-key-server/internal/storage"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Supported database drivers.
const (
	DriverSQLite3  = "sqlite3" // mattn/go-sqlite3 (cgo)
	DriverSQLite   = "sqlite"  // modernc.org/sqlite (pure Go)
	DriverPostgres = "postgres"
)

// isUniqueViolation checks if an error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	// SQLite (both drivers)
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// wrapUniqueError converts UNIQUE violations to domain.ErrAlreadyExists.
func wrapUniqueError(err error) error {
	if isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	return err
}

// Store implements the storage.Storage interface using SQL.
type Store struct {
	db     *sqlx.DB
	driver string
}

var _ storage.Storage = (*Store)(nil)

func gooseDialect(driver string) (string, error) {
	switch driver {
	case DriverSQLite3, DriverSQLite:
		return "sqlite3", nil
	case DriverPostgres:
		return "postgres", nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
}

// New creates a new SQL store and brings its schema up to date.
func New(driver, dsn string) (*Store, error) {
	dialect, err := gooseDialect(driver)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	// SQLite allows one writer; a single connection serializes writes
	// instead of surfacing "database is locked".
	if dialect == "sqlite3" {
		db.SetMaxOpenConns(1)
	}

	// Run migrations
	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect(dialect); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting goose dialect: %w", err)
	}

	if err := goose.Up(db.DB, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db, driver: driver}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// q rebinds a query written with ? placeholders for the active driver.
func (s *Store) q(query string) string {
	return s.db.Rebind(query)
}

// ============================================
// Activation Keys
// ============================================

const keyColumns = `id, key_value, key_type, created_at, is_active, is_banned, activation_date,
	expiry_date, hwid, machine_id, email, customer_name, product_name, notes`

func (s *Store) InsertKeys(ctx context.Context, keys []*domain.ActivationKey) ([]*domain.ActivationKey, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, s.q(
		`INSERT INTO activation_keys (`+keyColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (key_value) DO NOTHING`))
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	inserted := make([]*domain.ActivationKey, 0, len(keys))
	for _, k := range keys {
		result, err := stmt.ExecContext(ctx,
			k.ID, k.Value, k.KeyType, k.CreatedAt, k.IsActive, k.IsBanned, k.ActivationDate,
			k.ExpiryDate, k.HWID, k.MachineID, k.Email, k.CustomerName, k.ProductName, k.Notes)
		if err != nil {
			return nil, err
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return nil, err
		}
		if rows > 0 {
			inserted = append(inserted, k)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return inserted, nil
}

func (s *Store) FindKeyByValue(ctx context.Context, value string) (*domain.ActivationKey, error) {
	var key domain.ActivationKey
	err := s.db.GetContext(ctx, &key,
		s.q(`SELECT `+keyColumns+` FROM activation_keys WHERE key_value = ?`), value)
	if err == sql.ErrNoRows {
		return nil, domain.ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	return &key, nil
}

func (s *Store) UpdateKeyBan(ctx context.Context, value string, banned bool) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		s.q(`UPDATE activation_keys SET is_banned = ?, is_active = ? WHERE key_value = ?`),
		banned, !banned, value)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// UpdateKeyActivation redeems a key. The update only applies to a key that
// is neither banned nor already activated, so of two concurrent activations
// at most one matches a row; the other is classified from a re-read.
func (s *Store) UpdateKeyActivation(ctx context.Context, value string, act *domain.Activation) error {
	result, err := s.db.ExecContext(ctx,
		s.q(`UPDATE activation_keys
		 SET is_active = ?, activation_date = ?, expiry_date = ?, hwid = ?, machine_id = ?, email = ?
		 WHERE key_value = ? AND activation_date IS NULL AND is_banned = ?`),
		true, act.Date, act.ExpiryDate, act.HWID, act.MachineID, act.Email, value, false)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows > 0 {
		return nil
	}

	key, err := s.FindKeyByValue(ctx, value)
	if err != nil {
		return err
	}
	if key.IsBanned {
		return domain.ErrKeyBanned
	}
	return domain.ErrAlreadyActivated
}

// keyWhere builds the WHERE clause for a key filter.
func keyWhere(f domain.KeyFilter) (string, []any) {
	var clauses []string
	var args []any

	if f.KeyType != nil {
		clauses = append(clauses, "key_type = ?")
		args = append(args, *f.KeyType)
	}
	if f.IsActive != nil {
		clauses = append(clauses, "is_active = ?")
		args = append(args, *f.IsActive)
	}
	if f.IsBanned != nil {
		clauses = append(clauses, "is_banned = ?")
		args = append(args, *f.IsBanned)
	}
	like := func(column string, v *string) {
		if v != nil {
			clauses = append(clauses, "LOWER("+column+") LIKE ?")
			args = append(args, "%"+strings.ToLower(*v)+"%")
		}
	}
	like("customer_name", f.CustomerName)
	like("product_name", f.ProductName)
	like("email", f.Email)

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (s *Store) ListKeys(ctx context.Context, filter domain.KeyFilter, limit, offset int) ([]*domain.ActivationKey, error) {
	where, args := keyWhere(filter)
	args = append(args, limit, offset)

	var keys []*domain.ActivationKey
	err := s.db.SelectContext(ctx, &keys,
		s.q(`SELECT `+keyColumns+` FROM activation_keys`+where+
			` ORDER BY created_at DESC, key_value LIMIT ? OFFSET ?`), args...)
	if err != nil {
		return nil, err
	}
	if keys == nil {
		keys = []*domain.ActivationKey{}
	}
	return keys, nil
}

func (s *Store) CountKeys(ctx context.Context, filter domain.KeyFilter) (int, error) {
	where, args := keyWhere(filter)
	var count int
	err := s.db.GetContext(ctx, &count, s.q(`SELECT COUNT(*) FROM activation_keys`+where), args...)
	return count, err
}

// ============================================
// Key Types
// ============================================

const keyTypeColumns = `name, duration_days, description, price, is_available`

func (s *Store) CreateKeyType(ctx context.Context, kt *domain.KeyType) error {
	_, err := s.db.ExecContext(ctx,
		s.q(`INSERT INTO key_types (`+keyTypeColumns+`) VALUES (?, ?, ?, ?, ?)`),
		kt.Name, kt.DurationDays, kt.Description, kt.Price, kt.IsAvailable)
	return wrapUniqueError(err)
}

func (s *Store) GetKeyType(ctx context.Context, name string) (*domain.KeyType, error) {
	var kt domain.KeyType
	err := s.db.GetContext(ctx, &kt,
		s.q(`SELECT `+keyTypeColumns+` FROM key_types WHERE name = ?`), name)
	if err == sql.ErrNoRows {
		return nil, domain.ErrKeyTypeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &kt, nil
}

func (s *Store) ListKeyTypes(ctx context.Context) ([]*domain.KeyType, error) {
	var types []*domain.KeyType
	err := s.db.SelectContext(ctx, &types,
		`SELECT `+keyTypeColumns+` FROM key_types ORDER BY duration_days, name`)
	if err != nil {
		return nil, err
	}
	if types == nil {
		types = []*domain.KeyType{}
	}
	return types, nil
}

func (s *Store) UpdateKeyType(ctx context.Context, kt *domain.KeyType) error {
	result, err := s.db.ExecContext(ctx,
		s.q(`UPDATE key_types SET duration_days = ?, description = ?, price = ?, is_available = ? WHERE name = ?`),
		kt.DurationDays, kt.Description, kt.Price, kt.IsAvailable, kt.Name)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrKeyTypeNotFound
	}
	return nil
}

// ============================================
// Admin Users
// ============================================

const adminColumns = `id, username, password_hash, api_key, is_superadmin, created_at, last_login`

func (s *Store) CreateAdmin(ctx context.Context, admin *domain.AdminUser) error {
	_, err := s.db.ExecContext(ctx,
		s.q(`INSERT INTO admin_users (`+adminColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`),
		admin.ID, admin.Username, admin.PasswordDigest, admin.APIKey, admin.IsSuperadmin,
		admin.CreatedAt, admin.LastLogin)
	return wrapUniqueError(err)
}

func (s *Store) getAdmin(ctx context.Context, column, value string) (*domain.AdminUser, error) {
	var admin domain.AdminUser
	err := s.db.GetContext(ctx, &admin,
		s.q(`SELECT `+adminColumns+` FROM admin_users WHERE `+column+` = ?`), value)
	if err == sql.ErrNoRows {
		return nil, domain.ErrAdminNotFound
	}
	if err != nil {
		return nil, err
	}
	return &admin, nil
}

func (s *Store) GetAdminByUsername(ctx context.Context, username string) (*domain.AdminUser, error) {
	return s.getAdmin(ctx, "username", username)
}

func (s *Store) GetAdminByAPIKey(ctx context.Context, apiKey string) (*domain.AdminUser, error) {
	return s.getAdmin(ctx, "api_key", apiKey)
}

func (s *Store) ListAdmins(ctx context.Context) ([]*domain.AdminUser, error) {
	var admins []*domain.AdminUser
	err := s.db.SelectContext(ctx, &admins,
		`SELECT `+adminColumns+` FROM admin_users ORDER BY username`)
	if err != nil {
		return nil, err
	}
	if admins == nil {
		admins = []*domain.AdminUser{}
	}
	return admins, nil
}

func (s *Store) CountAdmins(ctx context.Context) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM admin_users`)
	return count, err
}

func (s *Store) UpdateAdminLastLogin(ctx context.Context, id string, at time.Time) error {
	result, err := s.db.ExecContext(ctx,
		s.q(`UPDATE admin_users SET last_login = ? WHERE id = ?`), at, id)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrAdminNotFound
	}
	return nil
}

// ============================================
// Reports
// ============================================

// unknownLiteral is inlined so GROUP BY matches the selected expression on Postgres.
const unknownLiteral = `'` + domain.UnknownBucket + `'`

const rollupCounts = `COUNT(*) AS total_keys,
	SUM(CASE WHEN is_active AND NOT is_banned THEN 1 ELSE 0 END) AS active_keys,
	SUM(CASE WHEN activation_date IS NOT NULL THEN 1 ELSE 0 END) AS activated_keys`

func (s *Store) CustomerRollup(ctx context.Context) ([]*domain.CustomerSummary, error) {
	var customers []*domain.CustomerSummary
	err := s.db.SelectContext(ctx, &customers,
		`SELECT COALESCE(customer_name, `+unknownLiteral+`) AS name, `+rollupCounts+`
		 FROM activation_keys
		 GROUP BY COALESCE(customer_name, `+unknownLiteral+`)
		 ORDER BY name`)
	if err != nil {
		return nil, err
	}
	if customers == nil {
		customers = []*domain.CustomerSummary{}
	}
	return customers, nil
}

func (s *Store) ProductRollup(ctx context.Context) ([]*domain.ProductSummary, error) {
	var products []*domain.ProductSummary
	err := s.db.SelectContext(ctx, &products,
		`SELECT COALESCE(product_name, `+unknownLiteral+`) AS name, `+rollupCounts+`
		 FROM activation_keys
		 GROUP BY COALESCE(product_name, `+unknownLiteral+`)
		 ORDER BY name`)
	if err != nil {
		return nil, err
	}

	// Distinct key types per product, kept portable instead of GROUP_CONCAT/STRING_AGG.
	var pairs []struct {
		Name    string `db:"name"`
		KeyType string `db:"key_type"`
	}
	err = s.db.SelectContext(ctx, &pairs,
		`SELECT DISTINCT COALESCE(product_name, `+unknownLiteral+`) AS name, key_type
		 FROM activation_keys
		 ORDER BY name, key_type`)
	if err != nil {
		return nil, err
	}
	types := make(map[string][]string)
	for _, p := range pairs {
		types[p.Name] = append(types[p.Name], p.KeyType)
	}

	for _, p := range products {
		p.KeyTypes = types[p.Name]
		if p.KeyTypes == nil {
			p.KeyTypes = []string{}
		}
	}
	if products == nil {
		products = []*domain.ProductSummary{}
	}
	return products, nil
}

func (s *Store) Stats(ctx context.Context, now time.Time) (*domain.Stats, error) {
	var counts struct {
		Total     int `db:"total_keys"`
		Active    int `db:"active_keys"`
		Banned    int `db:"banned_keys"`
		Activated int `db:"activated_keys"`
		Expired   int `db:"expired_keys"`
	}
	err := s.db.GetContext(ctx, &counts,
		s.q(`SELECT COUNT(*) AS total_keys,
		 COALESCE(SUM(CASE WHEN is_active AND NOT is_banned THEN 1 ELSE 0 END), 0) AS active_keys,
		 COALESCE(SUM(CASE WHEN is_banned THEN 1 ELSE 0 END), 0) AS banned_keys,
		 COALESCE(SUM(CASE WHEN activation_date IS NOT NULL THEN 1 ELSE 0 END), 0) AS activated_keys,
		 COALESCE(SUM(CASE WHEN expiry_date < ? AND NOT is_banned THEN 1 ELSE 0 END), 0) AS expired_keys
		 FROM activation_keys`), now)
	if err != nil {
		return nil, err
	}

	var dist []struct {
		KeyType string `db:"key_type"`
		Count   int    `db:"count"`
	}
	err = s.db.SelectContext(ctx, &dist,
		`SELECT key_type, COUNT(*) AS count FROM activation_keys GROUP BY key_type`)
	if err != nil {
		return nil, err
	}

	stats := &domain.Stats{
		TotalKeys:     counts.Total,
		ActiveKeys:    counts.Active,
		BannedKeys:    counts.Banned,
		ActivatedKeys: counts.Activated,
		ExpiredKeys:   counts.Expired,
		KeyTypes:      make(map[string]int, len(dist)),
	}
	for _, d := range dist {
		stats.KeyTypes[d.KeyType] = d.Count
	}
	return stats, nil
}
