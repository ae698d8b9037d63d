package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	dbconfig "classboard/pkg/database"
	"classboard/pkg/interfaces"
	"classboard/pkg/types"
)

// liveSessionKey is the well-known singleton key for the live-class record.
const liveSessionKey = "current"

var _ interfaces.Store = (*Manager)(nil)

// Manager implements the interfaces.Store interface on SQLite. All writes
// flow through a single goroutine; SQLite tolerates concurrent readers under
// WAL but serializing writers avoids lock contention entirely.
type Manager struct {
	db           *sql.DB
	config       *dbconfig.Config
	writeChannel chan writeOperation
	shutdown     chan struct{}
	wg           sync.WaitGroup
	closed       bool
	mu           sync.RWMutex // protects closed
}

// writeOperation represents a queued database write.
type writeOperation struct {
	operation func(*sql.DB) error
	result    chan error
}

// NewManager opens the database and starts the write loop.
func NewManager(config *dbconfig.Config) (*Manager, error) {
	db, err := sql.Open("sqlite3", config.DatabasePath+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxConnections)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	if err := applySQLiteOptimizations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply SQLite optimizations: %w", err)
	}

	manager := &Manager{
		db:           db,
		config:       config,
		writeChannel: make(chan writeOperation, 100),
		shutdown:     make(chan struct{}),
	}

	manager.wg.Add(1)
	go manager.writeLoop()

	return manager, nil
}

// writeLoop processes all write operations in a single goroutine. Failed
// writes retry exactly once after a short backoff.
func (m *Manager) writeLoop() {
	defer m.wg.Done()

	for {
		select {
		case op := <-m.writeChannel:
			err := op.operation(m.db)
			if err != nil {
				log.Printf("Database write failed, retrying in 5 seconds: %v", err)
				time.Sleep(5 * time.Second)
				err = op.operation(m.db)
				if err != nil {
					log.Printf("Database write failed after retry: %v", err)
				}
			}
			op.result <- err

		case <-m.shutdown:
			log.Println("Database write loop shutting down")
			return
		}
	}
}

// executeWrite queues a write operation and waits for completion.
func (m *Manager) executeWrite(operation func(*sql.DB) error) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return fmt.Errorf("database manager is closed")
	}
	m.mu.RUnlock()

	result := make(chan error, 1)

	select {
	case m.writeChannel <- writeOperation{operation: operation, result: result}:
		return <-result
	case <-time.After(30 * time.Second):
		return fmt.Errorf("write operation timeout")
	case <-m.shutdown:
		return fmt.Errorf("database manager is shutting down")
	}
}

// GetLiveSession returns the singleton live-class record. A missing row is
// not an error: the idle default is returned so callers always see a
// defined object.
func (m *Manager) GetLiveSession(ctx context.Context) (*types.LiveSession, error) {
	query := `
		SELECT meeting_id, is_active, invited_students, updated_at
		FROM live_sessions
		WHERE id = ?
	`

	row := m.db.QueryRowContext(ctx, query, liveSessionKey)

	var session types.LiveSession
	var isActive int
	var invitedJSON string

	err := row.Scan(&session.MeetingID, &isActive, &invitedJSON, &session.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return types.IdleSession(), nil
		}
		return nil, fmt.Errorf("failed to query live session: %w", err)
	}

	session.IsActive = isActive != 0
	if err := json.Unmarshal([]byte(invitedJSON), &session.InvitedStudents); err != nil {
		return nil, fmt.Errorf("failed to unmarshal invited students: %w", err)
	}
	if session.InvitedStudents == nil {
		session.InvitedStudents = []string{}
	}

	return &session, nil
}

// PutLiveSession overwrites the singleton record in full. An upsert keyed on
// the well-known id makes the overwrite atomic; there is no merge and no
// version check (last writer wins).
func (m *Manager) PutLiveSession(ctx context.Context, session *types.LiveSession) error {
	if err := session.Validate(); err != nil {
		return fmt.Errorf("refusing to store invalid session: %w", err)
	}

	return m.executeWrite(func(db *sql.DB) error {
		invitedJSON, err := json.Marshal(session.InvitedStudents)
		if err != nil {
			return fmt.Errorf("failed to marshal invited students: %w", err)
		}

		isActive := 0
		if session.IsActive {
			isActive = 1
		}

		query := `
			INSERT INTO live_sessions (id, meeting_id, is_active, invited_students, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				meeting_id = excluded.meeting_id,
				is_active = excluded.is_active,
				invited_students = excluded.invited_students,
				updated_at = excluded.updated_at
		`
		_, err = db.ExecContext(ctx, query,
			liveSessionKey,
			session.MeetingID,
			isActive,
			string(invitedJSON),
			session.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to write live session: %w", err)
		}

		return nil
	})
}

// CreateUser inserts a new account record.
func (m *Manager) CreateUser(ctx context.Context, user *types.User) error {
	return m.executeWrite(func(db *sql.DB) error {
		query := `
			INSERT INTO users (id, name, phone, password, role, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`
		_, err := db.ExecContext(ctx, query,
			user.ID, user.Name, user.Phone, user.Password, user.Role, user.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert user: %w", err)
		}
		return nil
	})
}

// GetUser retrieves a user by ID.
func (m *Manager) GetUser(ctx context.Context, userID string) (*types.User, error) {
	query := `
		SELECT id, name, phone, password, role, created_at
		FROM users
		WHERE id = ?
	`
	return m.scanUser(m.db.QueryRowContext(ctx, query, userID))
}

// GetUserByPhone retrieves a user by phone number (the login credential).
func (m *Manager) GetUserByPhone(ctx context.Context, phone string) (*types.User, error) {
	query := `
		SELECT id, name, phone, password, role, created_at
		FROM users
		WHERE phone = ?
	`
	return m.scanUser(m.db.QueryRowContext(ctx, query, phone))
}

func (m *Manager) scanUser(row *sql.Row) (*types.User, error) {
	var user types.User
	err := row.Scan(&user.ID, &user.Name, &user.Phone, &user.Password, &user.Role, &user.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &user, nil
}

// ListStudents returns all student accounts, newest first.
func (m *Manager) ListStudents(ctx context.Context) ([]*types.User, error) {
	query := `
		SELECT id, name, phone, password, role, created_at
		FROM users
		WHERE role = 'student'
		ORDER BY created_at DESC
	`

	rows, err := m.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query students: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []*types.User
	for rows.Next() {
		var user types.User
		err := rows.Scan(&user.ID, &user.Name, &user.Phone, &user.Password, &user.Role, &user.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		users = append(users, &user)
	}

	return users, rows.Err()
}

// DeleteUser removes an account. Deleting an unknown ID is not an error.
func (m *Manager) DeleteUser(ctx context.Context, userID string) error {
	return m.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", userID)
		if err != nil {
			return fmt.Errorf("failed to delete user: %w", err)
		}
		return nil
	})
}

// CreateBanner inserts a carousel banner.
func (m *Manager) CreateBanner(ctx context.Context, banner *types.Banner) error {
	return m.executeWrite(func(db *sql.DB) error {
		query := `INSERT INTO banners (id, title, image_url, created_at) VALUES (?, ?, ?, ?)`
		_, err := db.ExecContext(ctx, query, banner.ID, banner.Title, banner.ImageURL, banner.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert banner: %w", err)
		}
		return nil
	})
}

// ListBanners returns all banners, newest first.
func (m *Manager) ListBanners(ctx context.Context) ([]*types.Banner, error) {
	query := `SELECT id, title, image_url, created_at FROM banners ORDER BY created_at DESC`

	rows, err := m.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query banners: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var banners []*types.Banner
	for rows.Next() {
		var b types.Banner
		if err := rows.Scan(&b.ID, &b.Title, &b.ImageURL, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan banner row: %w", err)
		}
		banners = append(banners, &b)
	}

	return banners, rows.Err()
}

// DeleteBanner removes a banner.
func (m *Manager) DeleteBanner(ctx context.Context, bannerID string) error {
	return m.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, "DELETE FROM banners WHERE id = ?", bannerID)
		if err != nil {
			return fmt.Errorf("failed to delete banner: %w", err)
		}
		return nil
	})
}

// CreateAnnouncement inserts a notice.
func (m *Manager) CreateAnnouncement(ctx context.Context, a *types.Announcement) error {
	return m.executeWrite(func(db *sql.DB) error {
		query := `INSERT INTO announcements (id, content, created_at) VALUES (?, ?, ?)`
		_, err := db.ExecContext(ctx, query, a.ID, a.Content, a.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert announcement: %w", err)
		}
		return nil
	})
}

// ListAnnouncements returns all announcements, newest first.
func (m *Manager) ListAnnouncements(ctx context.Context) ([]*types.Announcement, error) {
	query := `SELECT id, content, created_at FROM announcements ORDER BY created_at DESC`

	rows, err := m.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query announcements: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var announcements []*types.Announcement
	for rows.Next() {
		var a types.Announcement
		if err := rows.Scan(&a.ID, &a.Content, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan announcement row: %w", err)
		}
		announcements = append(announcements, &a)
	}

	return announcements, rows.Err()
}

// DeleteAnnouncement removes a notice.
func (m *Manager) DeleteAnnouncement(ctx context.Context, announcementID string) error {
	return m.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, "DELETE FROM announcements WHERE id = ?", announcementID)
		if err != nil {
			return fmt.Errorf("failed to delete announcement: %w", err)
		}
		return nil
	})
}

// CreatePayment inserts a fee submission.
func (m *Manager) CreatePayment(ctx context.Context, payment *types.Payment) error {
	return m.executeWrite(func(db *sql.DB) error {
		query := `
			INSERT INTO payments (id, student_id, amount, screenshot_url, status, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`
		_, err := db.ExecContext(ctx, query,
			payment.ID, payment.StudentID, payment.Amount,
			payment.ScreenshotURL, payment.Status, payment.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert payment: %w", err)
		}
		return nil
	})
}

// ListPayments returns all payments, newest first.
func (m *Manager) ListPayments(ctx context.Context) ([]*types.Payment, error) {
	query := `
		SELECT id, student_id, amount, screenshot_url, status, created_at
		FROM payments
		ORDER BY created_at DESC
	`
	return m.queryPayments(ctx, query)
}

// ListPaymentsByStudent returns one student's payments, newest first.
func (m *Manager) ListPaymentsByStudent(ctx context.Context, studentID string) ([]*types.Payment, error) {
	query := `
		SELECT id, student_id, amount, screenshot_url, status, created_at
		FROM payments
		WHERE student_id = ?
		ORDER BY created_at DESC
	`
	return m.queryPayments(ctx, query, studentID)
}

func (m *Manager) queryPayments(ctx context.Context, query string, args ...interface{}) ([]*types.Payment, error) {
	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var payments []*types.Payment
	for rows.Next() {
		var p types.Payment
		err := rows.Scan(&p.ID, &p.StudentID, &p.Amount, &p.ScreenshotURL, &p.Status, &p.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment row: %w", err)
		}
		payments = append(payments, &p)
	}

	return payments, rows.Err()
}

// DeletePayment removes a payment record.
func (m *Manager) DeletePayment(ctx context.Context, paymentID string) error {
	return m.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, "DELETE FROM payments WHERE id = ?", paymentID)
		if err != nil {
			return fmt.Errorf("failed to delete payment: %w", err)
		}
		return nil
	})
}

// CreateMaterial inserts a study material record.
func (m *Manager) CreateMaterial(ctx context.Context, material *types.Material) error {
	return m.executeWrite(func(db *sql.DB) error {
		var studentID sql.NullString
		if material.StudentID != "" {
			studentID = sql.NullString{String: material.StudentID, Valid: true}
		}

		query := `
			INSERT INTO materials (id, title, type, file_url, student_id, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`
		_, err := db.ExecContext(ctx, query,
			material.ID, material.Title, material.Type,
			material.FileURL, studentID, material.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert material: %w", err)
		}
		return nil
	})
}

// ListMaterials returns every material, newest first.
func (m *Manager) ListMaterials(ctx context.Context) ([]*types.Material, error) {
	query := `
		SELECT id, title, type, file_url, student_id, created_at
		FROM materials
		ORDER BY created_at DESC
	`
	return m.queryMaterials(ctx, query)
}

// ListMaterialsForStudent returns materials shared with everyone plus those
// targeted at the given student, newest first.
func (m *Manager) ListMaterialsForStudent(ctx context.Context, studentID string) ([]*types.Material, error) {
	query := `
		SELECT id, title, type, file_url, student_id, created_at
		FROM materials
		WHERE student_id IS NULL OR student_id = ?
		ORDER BY created_at DESC
	`
	return m.queryMaterials(ctx, query, studentID)
}

func (m *Manager) queryMaterials(ctx context.Context, query string, args ...interface{}) ([]*types.Material, error) {
	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query materials: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var materials []*types.Material
	for rows.Next() {
		var mat types.Material
		var studentID sql.NullString
		err := rows.Scan(&mat.ID, &mat.Title, &mat.Type, &mat.FileURL, &studentID, &mat.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan material row: %w", err)
		}
		if studentID.Valid {
			mat.StudentID = studentID.String
		}
		materials = append(materials, &mat)
	}

	return materials, rows.Err()
}

// DeleteMaterial removes a material record.
func (m *Manager) DeleteMaterial(ctx context.Context, materialID string) error {
	return m.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, "DELETE FROM materials WHERE id = ?", materialID)
		if err != nil {
			return fmt.Errorf("failed to delete material: %w", err)
		}
		return nil
	})
}

// HealthCheck validates database connectivity.
func (m *Manager) HealthCheck(ctx context.Context) error {
	if err := m.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	rows, err := m.db.QueryContext(ctx, "SELECT COUNT(*) FROM live_sessions LIMIT 1")
	if err != nil {
		return fmt.Errorf("database read test failed: %w", err)
	}
	_ = rows.Close()

	return nil
}

// GetDB returns the underlying database connection for migrations.
func (m *Manager) GetDB() *sql.DB {
	return m.db
}

// Close shuts down the database manager.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	close(m.shutdown)
	m.wg.Wait()

	if err := m.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	return nil
}

// applySQLiteOptimizations applies performance pragmas on open.
func applySQLiteOptimizations(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -64000",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute pragma %s: %w", pragma, err)
		}
	}

	return nil
}
