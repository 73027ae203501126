package store

import (
	"context"

	"github.com/minseo-dev/libra/internal/profile"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	Close() error
	Migrate(ctx context.Context) error

	GetUser(ctx context.Context, find *FindUser) (*User, error)
	CreateUser(ctx context.Context, create *User) (*User, error)

	CreateChatMessage(ctx context.Context, create *CreateChatMessage) (*ChatMessage, error)
	ListChatMessages(ctx context.Context, find *FindChatMessage) ([]*ChatMessage, error)

	GetConversationSummary(ctx context.Context, find *FindConversationSummary) (*ConversationSummary, error)
	UpsertConversationSummary(ctx context.Context, upsert *UpsertConversationSummary) (*ConversationSummary, error)
}

// Store provides database access to all raw objects.
type Store struct {
	profile *profile.Profile
	driver  Driver
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:  driver,
		profile: profile,
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Close() error {
	return s.driver.Close()
}

func (s *Store) Migrate(ctx context.Context) error {
	return s.driver.Migrate(ctx)
}

func (s *Store) GetUser(ctx context.Context, find *FindUser) (*User, error) {
	return s.driver.GetUser(ctx, find)
}

func (s *Store) CreateUser(ctx context.Context, create *User) (*User, error) {
	return s.driver.CreateUser(ctx, create)
}

func (s *Store) CreateChatMessage(ctx context.Context, create *CreateChatMessage) (*ChatMessage, error) {
	return s.driver.CreateChatMessage(ctx, create)
}

func (s *Store) ListChatMessages(ctx context.Context, find *FindChatMessage) ([]*ChatMessage, error) {
	return s.driver.ListChatMessages(ctx, find)
}

func (s *Store) GetConversationSummary(ctx context.Context, find *FindConversationSummary) (*ConversationSummary, error) {
	return s.driver.GetConversationSummary(ctx, find)
}

func (s *Store) UpsertConversationSummary(ctx context.Context, upsert *UpsertConversationSummary) (*ConversationSummary, error) {
	return s.driver.UpsertConversationSummary(ctx, upsert)
}
