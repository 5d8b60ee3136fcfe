package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Aman-CERP/wikindex/internal/content"
)

// PutUnit inserts or replaces the primary version of a unit.
func (s *Store) PutUnit(ctx context.Context, u *content.Unit) error {
	_, err := s.db.ExecContext(ctx, s.q(`INSERT INTO wiki_units (wiki, container, name, `+unitColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (wiki, container, name) DO UPDATE SET
		   lang = excluded.lang, title = excluded.title, content = excluded.content,
		   author = excluded.author, creator = excluded.creator,
		   created_ms = excluded.created_ms, modified_ms = excluded.modified_ms`),
		u.Ref.Wiki, u.Ref.Container, u.Ref.Name,
		u.Language, u.Title, u.Content, u.Author, u.Creator,
		toMillis(u.Created), toMillis(u.Modified))
	if err != nil {
		return fmt.Errorf("put unit: %w", err)
	}
	return nil
}

// PutTranslation inserts or replaces a translation.
func (s *Store) PutTranslation(ctx context.Context, u *content.Unit) error {
	if u.Language == "" {
		return fmt.Errorf("translation of %s has no language", u.Ref)
	}
	_, err := s.db.ExecContext(ctx, s.q(`INSERT INTO wiki_translations (wiki, container, name, `+unitColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (wiki, container, name, lang) DO UPDATE SET
		   title = excluded.title, content = excluded.content,
		   author = excluded.author, creator = excluded.creator,
		   created_ms = excluded.created_ms, modified_ms = excluded.modified_ms`),
		u.Ref.Wiki, u.Ref.Container, u.Ref.Name,
		u.Language, u.Title, u.Content, u.Author, u.Creator,
		toMillis(u.Created), toMillis(u.Modified))
	if err != nil {
		return fmt.Errorf("put translation: %w", err)
	}
	return nil
}

// PutAttachment inserts or replaces an attachment of ref.
func (s *Store) PutAttachment(ctx context.Context, ref content.UnitRef, a *content.Attachment) error {
	_, err := s.db.ExecContext(ctx, s.q(`INSERT INTO wiki_attachments (wiki, container, name, filename, mimetype, data, author, created_ms, modified_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (wiki, container, name, filename) DO UPDATE SET
		   mimetype = excluded.mimetype, data = excluded.data, author = excluded.author,
		   created_ms = excluded.created_ms, modified_ms = excluded.modified_ms`),
		ref.Wiki, ref.Container, ref.Name, a.Filename, a.MIMEType, a.Data, a.Author,
		toMillis(a.Created), toMillis(a.Modified))
	if err != nil {
		return fmt.Errorf("put attachment: %w", err)
	}
	return nil
}

// PutObjects replaces every structured object of ref.
func (s *Store) PutObjects(ctx context.Context, ref content.UnitRef, objects []*content.Object) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM wiki_objects WHERE wiki = $1 AND container = $2 AND name = $3`),
			ref.Wiki, ref.Container, ref.Name); err != nil {
			return fmt.Errorf("clear objects: %w", err)
		}
		for _, o := range objects {
			for field, value := range o.Fields {
				if _, err := tx.ExecContext(ctx, s.q(`INSERT INTO wiki_objects (wiki, container, name, class, number, field, value)
					 VALUES ($1, $2, $3, $4, $5, $6, $7)`),
					ref.Wiki, ref.Container, ref.Name, o.ClassName, o.Number, field, value); err != nil {
					return fmt.Errorf("put object: %w", err)
				}
			}
		}
		return nil
	})
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rolling back transaction after error %v: %w", rbErr, err)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
