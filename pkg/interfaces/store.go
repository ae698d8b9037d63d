package interfaces

import (
	"context"

	"classboard/pkg/types"
)

// Store handles all persistence operations. A single interface keeps
// transaction handling and connection management consistent and lets tests
// substitute an in-memory implementation.
//
// The live-class record is a singleton: reads never fail on absence (the idle
// default is returned instead) and writes replace the whole record, which is
// what makes a single-record overwrite atomic at the storage layer.
type Store interface {
	// GetLiveSession returns the singleton live-class record, defaulting to
	// the idle value if nothing has been written yet. Never returns a nil
	// session alongside a nil error.
	GetLiveSession(ctx context.Context) (*types.LiveSession, error)

	// PutLiveSession overwrites the singleton record in full. Last writer
	// wins; there is no compare-and-swap against UpdatedAt.
	PutLiveSession(ctx context.Context, session *types.LiveSession) error

	// User operations.
	CreateUser(ctx context.Context, user *types.User) error
	GetUser(ctx context.Context, userID string) (*types.User, error)
	GetUserByPhone(ctx context.Context, phone string) (*types.User, error)
	ListStudents(ctx context.Context) ([]*types.User, error)
	DeleteUser(ctx context.Context, userID string) error

	// Banner operations.
	CreateBanner(ctx context.Context, banner *types.Banner) error
	ListBanners(ctx context.Context) ([]*types.Banner, error)
	DeleteBanner(ctx context.Context, bannerID string) error

	// Announcement operations.
	CreateAnnouncement(ctx context.Context, a *types.Announcement) error
	ListAnnouncements(ctx context.Context) ([]*types.Announcement, error)
	DeleteAnnouncement(ctx context.Context, announcementID string) error

	// Payment operations.
	CreatePayment(ctx context.Context, payment *types.Payment) error
	ListPayments(ctx context.Context) ([]*types.Payment, error)
	ListPaymentsByStudent(ctx context.Context, studentID string) ([]*types.Payment, error)
	DeletePayment(ctx context.Context, paymentID string) error

	// Material operations.
	CreateMaterial(ctx context.Context, m *types.Material) error
	ListMaterialsForStudent(ctx context.Context, studentID string) ([]*types.Material, error)
	ListMaterials(ctx context.Context) ([]*types.Material, error)
	DeleteMaterial(ctx context.Context, materialID string) error

	// HealthCheck validates storage connectivity.
	HealthCheck(ctx context.Context) error

	// Close shuts down the store and releases resources.
	Close() error
}
