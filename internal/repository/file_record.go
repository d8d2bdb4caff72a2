package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/filedesk/internal/domain/model"
)

// fileColumns — порядок колонок для scanFile.
const fileColumns = `id, name, path, size, created_at, is_downloadable, owner_id`

// fileRecordRepo — реализация FileRecordRepository для PostgreSQL.
type fileRecordRepo struct {
	db DBTX
}

// NewFileRecordRepository создаёт репозиторий записей о файлах.
func NewFileRecordRepository(db DBTX) FileRecordRepository {
	return &fileRecordRepo{db: db}
}

func (r *fileRecordRepo) Create(ctx context.Context, f *model.FileRecord) error {
	query := `
		INSERT INTO files (id, name, path, size, created_at, is_downloadable, owner_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.Exec(ctx, query,
		f.ID, f.Name, f.Path, f.Size, f.CreatedAt, f.IsDownloadable, f.OwnerID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: файл %q уже существует", ErrConflict, f.Name)
		}
		return fmt.Errorf("ошибка создания записи файла: %w", err)
	}
	return nil
}

func (r *fileRecordRepo) GetByID(ctx context.Context, id string) (*model.FileRecord, error) {
	return r.getOne(ctx, `SELECT `+fileColumns+` FROM files WHERE id = $1`, id)
}

func (r *fileRecordRepo) GetByName(ctx context.Context, name string) (*model.FileRecord, error) {
	return r.getOne(ctx, `SELECT `+fileColumns+` FROM files WHERE name = $1`, name)
}

func (r *fileRecordRepo) GetByPath(ctx context.Context, path string) (*model.FileRecord, error) {
	return r.getOne(ctx, `SELECT `+fileColumns+` FROM files WHERE path = $1`, path)
}

func (r *fileRecordRepo) ListByOwner(ctx context.Context, ownerID string) ([]*model.FileRecord, error) {
	return r.list(ctx, `
		SELECT `+fileColumns+`
		FROM files
		WHERE owner_id = $1
		ORDER BY created_at, id`, ownerID)
}

func (r *fileRecordRepo) ListAll(ctx context.Context) ([]*model.FileRecord, error) {
	return r.list(ctx, `SELECT `+fileColumns+` FROM files ORDER BY created_at, id`)
}

func (r *fileRecordRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM files WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления записи файла: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *fileRecordRepo) getOne(ctx context.Context, query string, arg any) (*model.FileRecord, error) {
	f, err := scanFile(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения записи файла: %w", err)
	}
	return f, nil
}

func (r *fileRecordRepo) list(ctx context.Context, query string, args ...any) ([]*model.FileRecord, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка файлов: %w", err)
	}
	defer rows.Close()

	files := make([]*model.FileRecord, 0)
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения строки файла: %w", err)
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации файлов: %w", err)
	}
	return files, nil
}

// scanFile читает строку в порядке fileColumns.
func scanFile(row pgx.Row) (*model.FileRecord, error) {
	f := &model.FileRecord{}
	err := row.Scan(&f.ID, &f.Name, &f.Path, &f.Size, &f.CreatedAt, &f.IsDownloadable, &f.OwnerID)
	if err != nil {
		return nil, err
	}
	return f, nil
}
