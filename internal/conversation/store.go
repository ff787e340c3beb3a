//-------------------------------------------------------------------------
//
// pgEdge RAG Assistant
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package conversation persists chat threads, their messages and the
// records of ingested documents.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/pgEdge/pgedge-rag-assistant/internal/config"
)

// Sentinel errors.
var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrMessageNotFound      = errors.New("message not found")
	ErrDocumentNotFound     = errors.New("document not found")
)

// DefaultListLimit caps ListConversations when no limit is given.
const DefaultListLimit = 100

// Store is a gorm-backed conversation and document store.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Open connects to the configured database and migrates the schema.
func Open(cfg config.ConversationsConfig, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}

	var dialector gorm.Dialector
	switch strings.ToLower(cfg.Driver) {
	case config.BackendSQLite, "":
		dialector = sqlite.Open(cfg.DSN)
	case config.BackendPostgres:
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown conversations driver: %s", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.New(slog.NewLogLogger(log.With("component", "gorm").Handler(), slog.LevelWarn), logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open conversations database: %w", err)
	}
	return New(db, log)
}

// New wraps an open gorm handle and migrates the schema.
func New(db *gorm.DB, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := db.AutoMigrate(&Conversation{}, &Message{}, &Document{}); err != nil {
		return nil, fmt.Errorf("failed to migrate conversations schema: %w", err)
	}
	return &Store{db: db, logger: log.With("component", "conversations")}, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// CreateConversation creates a conversation. An empty title selects
// DefaultTitle.
func (s *Store) CreateConversation(ctx context.Context, title string) (*Conversation, error) {
	if strings.TrimSpace(title) == "" {
		title = DefaultTitle
	}
	c := &Conversation{ID: uuid.NewString(), Title: title}
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return c, nil
}

// ListConversations returns conversations, most recently updated first.
func (s *Store) ListConversations(ctx context.Context, skip, limit int) ([]Conversation, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	var out []Conversation
	err := s.db.WithContext(ctx).
		Order("updated_at DESC").
		Offset(max(skip, 0)).
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return out, nil
}

// GetConversation returns a conversation with its messages in order.
func (s *Store) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	var c Conversation
	err := s.db.WithContext(ctx).
		Preload("Messages", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&c, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return &c, nil
}

// UpdateTitle renames a conversation.
func (s *Store) UpdateTitle(ctx context.Context, id, title string) (*Conversation, error) {
	res := s.db.WithContext(ctx).Model(&Conversation{}).Where("id = ?", id).Update("title", title)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update conversation: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrConversationNotFound
	}
	return s.GetConversation(ctx, id)
}

// DeleteConversation removes a conversation and its messages.
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("conversation_id = ?", id).Delete(&Message{}).Error; err != nil {
			return fmt.Errorf("failed to delete messages: %w", err)
		}
		res := tx.Delete(&Conversation{}, "id = ?", id)
		if res.Error != nil {
			return fmt.Errorf("failed to delete conversation: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrConversationNotFound
		}
		return nil
	})
}

// AddMessage appends a message. sources, when non-nil, is stored as
// JSON. The first user message of a conversation still carrying
// DefaultTitle becomes its title.
func (s *Store) AddMessage(ctx context.Context, conversationID, role, content string, sources any) (*Message, error) {
	encoded, err := EncodeJSON(sources)
	if err != nil {
		return nil, fmt.Errorf("failed to encode sources: %w", err)
	}
	msg := &Message{
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Sources:        encoded,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c Conversation
		if err := tx.First(&c, "id = ?", conversationID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrConversationNotFound
			}
			return err
		}
		if err := tx.Create(msg).Error; err != nil {
			return err
		}

		updates := map[string]any{"updated_at": time.Now()}
		if role == RoleUser && c.Title == DefaultTitle && strings.TrimSpace(content) != "" {
			updates["title"] = autoTitle(content)
		}
		return tx.Model(&c).Updates(updates).Error
	})
	if errors.Is(err, ErrConversationNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to add message: %w", err)
	}
	return msg, nil
}

// GetMessages returns the messages of a conversation in order.
func (s *Store) GetMessages(ctx context.Context, conversationID string) ([]Message, error) {
	var out []Message
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("id ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	return out, nil
}

// DeleteMessage removes one message of a conversation.
func (s *Store) DeleteMessage(ctx context.Context, conversationID string, messageID uint) error {
	res := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Delete(&Message{}, messageID)
	if res.Error != nil {
		return fmt.Errorf("failed to delete message: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// CreateDocument records a document. An empty ID is assigned.
func (s *Store) CreateDocument(ctx context.Context, d *Document) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.Status == "" {
		d.Status = StatusProcessing
	}
	if err := s.db.WithContext(ctx).Create(d).Error; err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

// UpdateDocument saves the status, chunk count and error of d.
func (s *Store) UpdateDocument(ctx context.Context, d *Document) error {
	res := s.db.WithContext(ctx).Model(&Document{}).Where("id = ?", d.ID).Updates(map[string]any{
		"status":      d.Status,
		"chunk_count": d.ChunkCount,
		"error":       d.Error,
	})
	if res.Error != nil {
		return fmt.Errorf("failed to update document: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

// GetDocument returns a document record.
func (s *Store) GetDocument(ctx context.Context, id string) (*Document, error) {
	var d Document
	err := s.db.WithContext(ctx).First(&d, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return &d, nil
}

// ListDocuments returns document records, newest first, without their
// content.
func (s *Store) ListDocuments(ctx context.Context) ([]Document, error) {
	var out []Document
	err := s.db.WithContext(ctx).Omit("content").Order("created_at DESC").Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return out, nil
}

// DeleteDocument removes a document record.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&Document{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete document: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrDocumentNotFound
	}
	return nil
}
