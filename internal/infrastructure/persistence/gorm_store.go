package persistence

import (
	"context"
	"errors"

	"github.com/medimaging/backend/internal/domain/shared"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore implements Store on top of gorm for PostgreSQL and SQLite.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a Store backed by db. db should be opened with
// TranslateError so unique violations surface as gorm.ErrDuplicatedKey.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// DB returns the underlying gorm handle.
func (s *GormStore) DB() *gorm.DB {
	return s.db
}

func (s *GormStore) scoped(ctx context.Context, q Query) *gorm.DB {
	tx := s.db.WithContext(ctx)
	if len(q.Where) > 0 {
		tx = tx.Where(q.Where)
	}
	if col := q.sortColumn(); col != "" {
		tx = tx.Order(clause.OrderByColumn{Column: clause.Column{Name: col}, Desc: q.Desc})
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	return tx
}

// Create inserts doc.
func (s *GormStore) Create(ctx context.Context, doc Document) error {
	if err := s.db.WithContext(ctx).Create(doc).Error; err != nil {
		return translateGormError("create "+doc.TableName(), err)
	}
	return nil
}

// FindOne loads the first match of q into dest.
func (s *GormStore) FindOne(ctx context.Context, q Query, dest Document) error {
	if err := s.scoped(ctx, q).Take(dest).Error; err != nil {
		return translateGormError("find "+dest.TableName(), err)
	}
	return nil
}

// Find loads every match of q into dest.
func (s *GormStore) Find(ctx context.Context, q Query, dest any) error {
	if err := s.scoped(ctx, q).Find(dest).Error; err != nil {
		return translateGormError("list", err)
	}
	return nil
}

// Update writes every column of doc to the row matching q.
func (s *GormStore) Update(ctx context.Context, q Query, doc Document) error {
	if len(q.Where) == 0 {
		return shared.NewStoreError("update "+doc.TableName(), errors.New("refusing update without conditions"))
	}
	result := s.db.WithContext(ctx).Model(doc).Where(q.Where).Select("*").Updates(doc)
	if result.Error != nil {
		return translateGormError("update "+doc.TableName(), result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Delete removes every row of doc's table matching q.
func (s *GormStore) Delete(ctx context.Context, q Query, doc Document) (int64, error) {
	if len(q.Where) == 0 {
		return 0, shared.NewStoreError("delete "+doc.TableName(), errors.New("refusing delete without conditions"))
	}
	result := s.db.WithContext(ctx).Where(q.Where).Delete(doc)
	if result.Error != nil {
		return 0, translateGormError("delete "+doc.TableName(), result.Error)
	}
	return result.RowsAffected, nil
}

// Transaction runs fn inside a database transaction. Any error from fn
// rolls the transaction back.
func (s *GormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

func translateGormError(op string, err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return shared.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return shared.ErrAlreadyExists
	default:
		return shared.NewStoreError(op, err)
	}
}
