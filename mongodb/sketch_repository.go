package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/firstmakers/fm-api/domain"
)

// SketchRepository implements domain.SketchRepository on MongoDB.
type SketchRepository struct {
	sketches *mongo.Collection
}

// NewSketchRepository creates the repository and ensures the per-user unique
// title index.
func NewSketchRepository(ctx context.Context, db *mongo.Database) (*SketchRepository, error) {
	repo := &SketchRepository{sketches: db.Collection(SketchesCollection)}
	if err := repo.createIndexes(ctx); err != nil {
		return nil, err
	}
	return repo, nil
}

func (r *SketchRepository) createIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "username", Value: 1}, {Key: "title", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	if _, err := r.sketches.Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("creating sketch indexes: %w", err)
	}
	return nil
}

// List returns the user's sketches.
func (r *SketchRepository) List(ctx context.Context, username string) ([]*domain.Sketch, error) {
	cursor, err := r.sketches.Find(ctx, bson.M{"username": username})
	if err != nil {
		log.Error().Err(err).Str("username", username).Msg("error listing sketches")
		return nil, err
	}
	defer cursor.Close(ctx)

	sketches := []*domain.Sketch{}
	if err := cursor.All(ctx, &sketches); err != nil {
		return nil, err
	}
	return sketches, nil
}

// Get retrieves one sketch by owner and id.
func (r *SketchRepository) Get(ctx context.Context, username, id string) (*domain.Sketch, error) {
	return r.findOne(ctx, bson.M{"username": username, "_id": id})
}

// FindByTitle retrieves one sketch by owner and title.
func (r *SketchRepository) FindByTitle(ctx context.Context, username, title string) (*domain.Sketch, error) {
	return r.findOne(ctx, bson.M{"username": username, "title": title})
}

func (r *SketchRepository) findOne(ctx context.Context, filter bson.M) (*domain.Sketch, error) {
	var sketch domain.Sketch
	if err := r.sketches.FindOne(ctx, filter).Decode(&sketch); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrSketchNotFound
		}
		log.Error().Err(err).Interface("filter", filter).Msg("error looking up sketch")
		return nil, err
	}
	return &sketch, nil
}

// Create inserts a new sketch.
func (r *SketchRepository) Create(ctx context.Context, sketch *domain.Sketch) error {
	if sketch.ID == "" {
		sketch.ID = NewObjectID()
	}
	now := time.Now().UTC()
	sketch.CreatedAt = now
	sketch.UpdatedAt = now

	if _, err := r.sketches.InsertOne(ctx, sketch); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrSketchTitleTaken
		}
		log.Error().Err(err).Str("title", sketch.Title).Msg("error creating sketch")
		return err
	}
	return nil
}

// Update applies the non-nil fields of update to the sketch.
func (r *SketchRepository) Update(ctx context.Context, username, id string, update domain.SketchUpdate) error {
	set := bson.M{"updated_at": time.Now().UTC()}
	if update.Title != nil {
		set["title"] = *update.Title
	}
	if update.Description != nil {
		set["description"] = *update.Description
	}
	if update.Blocks != nil {
		set["blocks"] = *update.Blocks
	}
	if update.Tags != nil {
		set["tags"] = update.Tags
	}

	res, err := r.sketches.UpdateOne(ctx,
		bson.M{"username": username, "_id": id},
		bson.M{"$set": set},
	)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrSketchTitleTaken
		}
		log.Error().Err(err).Str("id", id).Msg("error updating sketch")
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrSketchNotFound
	}
	return nil
}

// Delete removes a sketch.
func (r *SketchRepository) Delete(ctx context.Context, username, id string) error {
	res, err := r.sketches.DeleteOne(ctx, bson.M{"username": username, "_id": id})
	if err != nil {
		log.Error().Err(err).Str("id", id).Msg("error deleting sketch")
		return err
	}
	if res.DeletedCount == 0 {
		return domain.ErrSketchNotFound
	}
	return nil
}

var _ domain.SketchRepository = (*SketchRepository)(nil)
