package journal

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"

	"moodjournal/internal/classifier"
	"moodjournal/internal/models"
)

// Store appends classified journal entries and lists them back in
// chronological order.
type Store struct {
	DB         *gorm.DB
	Classifier *classifier.Client
}

func NewStore(db *gorm.DB, c *classifier.Client) *Store {
	return &Store{DB: db, Classifier: c}
}

// Add classifies text and persists one immutable entry for the user.
// Classification cannot fail the write: the adapter degrades to the
// keyword heuristic on its own.
func (s *Store) Add(ctx context.Context, userID, text string) (*models.Entry, error) {
	res := s.Classifier.Classify(ctx, text)

	scoresJSON, err := json.Marshal(res.Scores)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize scores: %w", err)
	}

	e := models.Entry{
		UserID:     userID,
		Text:       text,
		TopEmotion: res.TopLabel,
		TopScore:   res.TopScore,
		ScoresJSON: string(scoresJSON),
	}
	if err := s.DB.WithContext(ctx).Create(&e).Error; err != nil {
		return nil, fmt.Errorf("failed to create entry: %w", err)
	}
	return &e, nil
}

// List returns all of the user's entries, ascending by creation time.
func (s *Store) List(ctx context.Context, userID string) ([]models.Entry, error) {
	var entries []models.Entry
	err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC, id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	return entries, nil
}
