package mongo

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap/zaptest"

	"github.com/ob1hnk/triolingo/domain/entities"
	"github.com/ob1hnk/triolingo/domain/repositories"
)

var _ repositories.LetterRepository = &LetterRepository{}

func TestLetterDocument_ToEntity(t *testing.T) {
	oid := primitive.NewObjectID()
	letter := letterDocument{ID: oid, UserID: "u1", UserLetter: "hi", TaskID: "t1"}.toEntity()

	if letter.ID != oid.Hex() {
		t.Errorf("Expected ID %s, got %s", oid.Hex(), letter.ID)
	}
	if letter.UserID != "u1" || letter.UserLetter != "hi" || letter.TaskID != "t1" {
		t.Errorf("Unexpected letter: %+v", letter)
	}
}

func TestLetterRepository_Integration(t *testing.T) {
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("MONGODB_URI not set, skipping MongoDB integration test")
	}

	ctx := context.Background()
	client, err := NewClient(ctx, uri, "triolingo_test", zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer client.Close(ctx)

	repo := NewLetterRepository(client.Database)
	userID := "user-" + uuid.NewString()
	defer repo.collection.DeleteMany(ctx, bson.M{"user_id": userID})

	letter := &entities.Letter{
		UserID:                  userID,
		UserLetter:              "Dear Golem",
		GeneratedResponseLetter: "Dear friend",
	}
	id, err := repo.Save(ctx, letter)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if id == "" {
		t.Fatal("Expected generated ID")
	}

	got, err := repo.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got.UserLetter != "Dear Golem" || got.GeneratedResponseLetter != "Dear friend" {
		t.Errorf("Unexpected letter: %+v", got)
	}

	if _, err := repo.GetByID(ctx, primitive.NewObjectID().Hex()); !errors.Is(err, entities.ErrLetterNotFound) {
		t.Errorf("Expected ErrLetterNotFound, got %v", err)
	}
	if _, err := repo.GetByID(ctx, "not-hex"); !errors.Is(err, entities.ErrLetterNotFound) {
		t.Errorf("Expected ErrLetterNotFound for malformed id, got %v", err)
	}

	letters, err := repo.ListByUser(ctx, userID)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(letters) != 1 {
		t.Errorf("Expected 1 letter, got %d", len(letters))
	}
}
