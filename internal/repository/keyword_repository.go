package repository

import (
	"context"
	"database/sql"

	"maumon/pkg/emotion"

	"github.com/lib/pq"
)

type KeywordRepository struct {
	db *sql.DB
}

func NewKeywordRepository(db *sql.DB) *KeywordRepository {
	return &KeywordRepository{db: db}
}

func (r *KeywordRepository) Match(ctx context.Context, candidates []string) ([]emotion.KeywordScore, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT keyword, emotion_label, frequency
		FROM emotion_keyword
		WHERE keyword = ANY($1)
	`, pq.Array(candidates))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scores []emotion.KeywordScore
	for rows.Next() {
		var s emotion.KeywordScore
		if err := rows.Scan(&s.Keyword, &s.Label, &s.Frequency); err != nil {
			return nil, err
		}
		scores = append(scores, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return scores, nil
}

func (r *KeywordRepository) Upsert(ctx context.Context, keyword string, label int) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO emotion_keyword(keyword, emotion_label, frequency)
		VALUES($1, $2, 1)
		ON CONFLICT (keyword) DO UPDATE SET frequency = emotion_keyword.frequency + 1
	`, keyword, label)
	return err
}
