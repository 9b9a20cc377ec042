package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ob1hnk/triolingo/domain/entities"
)

const letterCollection = "letter_responses"

type LetterRepository struct {
	collection *mongo.Collection
}

// letterDocument mirrors entities.Letter with the Mongo object id
type letterDocument struct {
	ID                      primitive.ObjectID `bson:"_id,omitempty"`
	TaskID                  string             `bson:"task_id,omitempty"`
	UserID                  string             `bson:"user_id"`
	UserLetter              string             `bson:"user_letter"`
	GeneratedResponseLetter string             `bson:"generated_response_letter"`
	CreatedAt               time.Time          `bson:"created_at"`
	UpdatedAt               time.Time          `bson:"updated_at"`
}

func (d letterDocument) toEntity() *entities.Letter {
	return &entities.Letter{
		ID:                      d.ID.Hex(),
		TaskID:                  d.TaskID,
		UserID:                  d.UserID,
		UserLetter:              d.UserLetter,
		GeneratedResponseLetter: d.GeneratedResponseLetter,
		CreatedAt:               d.CreatedAt,
		UpdatedAt:               d.UpdatedAt,
	}
}

// NewLetterRepository creates a new MongoDB letter repository
func NewLetterRepository(db *mongo.Database) *LetterRepository {
	return &LetterRepository{
		collection: db.Collection(letterCollection),
	}
}

// Save implements repositories.LetterRepository
func (r *LetterRepository) Save(ctx context.Context, letter *entities.Letter) (string, error) {
	if letter == nil {
		return "", fmt.Errorf("%w: letter cannot be nil", entities.ErrValidation)
	}
	if err := letter.Validate(); err != nil {
		return "", err
	}

	now := time.Now()
	if letter.CreatedAt.IsZero() {
		letter.CreatedAt = now
	}
	letter.UpdatedAt = now

	doc := bson.M{
		"user_id":                   letter.UserID,
		"user_letter":               letter.UserLetter,
		"generated_response_letter": letter.GeneratedResponseLetter,
		"created_at":                letter.CreatedAt,
		"updated_at":                letter.UpdatedAt,
	}
	if letter.TaskID != "" {
		doc["task_id"] = letter.TaskID
	}

	result, err := r.collection.InsertOne(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("failed to save letter: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		letter.ID = oid.Hex()
	}
	return letter.ID, nil
}

// GetByID implements repositories.LetterRepository
func (r *LetterRepository) GetByID(ctx context.Context, id string) (*entities.Letter, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", entities.ErrLetterNotFound, id)
	}

	var doc letterDocument
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", entities.ErrLetterNotFound, id)
		}
		return nil, fmt.Errorf("failed to get letter %s: %w", id, err)
	}

	return doc.toEntity(), nil
}

// ListByUser implements repositories.LetterRepository, newest first
func (r *LetterRepository) ListByUser(ctx context.Context, userID string) ([]*entities.Letter, error) {
	opts := options.Find().SetSort(bson.M{"created_at": -1})
	cursor, err := r.collection.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list letters for user %s: %w", userID, err)
	}
	defer cursor.Close(ctx)

	var docs []letterDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode letters for user %s: %w", userID, err)
	}

	letters := make([]*entities.Letter, 0, len(docs))
	for _, d := range docs {
		letters = append(letters, d.toEntity())
	}
	return letters, nil
}
