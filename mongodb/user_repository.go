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

// UserRepository implements domain.UserRepository on MongoDB.
type UserRepository struct {
	users *mongo.Collection
}

// NewUserRepository creates the repository and ensures the unique indexes on
// username and email.
func NewUserRepository(ctx context.Context, db *mongo.Database) (*UserRepository, error) {
	repo := &UserRepository{users: db.Collection(UsersCollection)}
	if err := repo.createIndexes(ctx); err != nil {
		return nil, err
	}
	return repo, nil
}

func (r *UserRepository) createIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	if _, err := r.users.Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("creating user indexes: %w", err)
	}
	return nil
}

// Create inserts a new user, mapping unique-index violations to the conflict
// sentinel for whichever field collided.
func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	if user.ID == "" {
		user.ID = NewObjectID()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	if _, err := r.users.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			if _, lookupErr := r.FindByEmail(ctx, user.Email); lookupErr == nil {
				return domain.ErrEmailTaken
			}
			return domain.ErrUsernameTaken
		}
		log.Error().Err(err).Str("username", user.Username).Msg("error creating user")
		return err
	}
	return nil
}

// FindByEmail retrieves a user by email.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

// FindByUsername retrieves a user by username.
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"username": username})
}

// FindByUsernameAndRefreshToken retrieves a user by the exact
// (username, refresh token) pair.
func (r *UserRepository) FindByUsernameAndRefreshToken(ctx context.Context, username, refreshToken string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"username": username, "refresh_token": refreshToken})
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	var user domain.User
	if err := r.users.FindOne(ctx, filter).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		log.Error().Err(err).Interface("filter", filter).Msg("error looking up user")
		return nil, err
	}
	return &user, nil
}

// SetRefreshTokenIfAbsent stores token on the user only when no refresh token
// is present. The conditional write is atomic, so concurrent signins cannot
// both win.
func (r *UserRepository) SetRefreshTokenIfAbsent(ctx context.Context, username, token string) (bool, error) {
	res, err := r.users.UpdateOne(ctx,
		bson.M{
			"username": username,
			"$or": bson.A{
				bson.M{"refresh_token": bson.M{"$exists": false}},
				bson.M{"refresh_token": ""},
			},
		},
		bson.M{"$set": bson.M{"refresh_token": token, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		log.Error().Err(err).Str("username", username).Msg("error storing refresh token")
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

// ClearRefreshToken unsets the refresh token on the record holding the exact
// pair. No matching record means nothing was cleared.
func (r *UserRepository) ClearRefreshToken(ctx context.Context, username, refreshToken string) error {
	res, err := r.users.UpdateOne(ctx,
		bson.M{"username": username, "refresh_token": refreshToken},
		bson.M{"$unset": bson.M{"refresh_token": ""}},
	)
	if err != nil {
		log.Error().Err(err).Str("username", username).Msg("error clearing refresh token")
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrRefreshTokenNotFound
	}
	return nil
}

// UpdatePasswordHash replaces the password hash of the account owning email.
func (r *UserRepository) UpdatePasswordHash(ctx context.Context, email, passwordHash string) error {
	res, err := r.users.UpdateOne(ctx,
		bson.M{"email": email},
		bson.M{"$set": bson.M{"password_hash": passwordHash, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		log.Error().Err(err).Str("email", email).Msg("error updating password hash")
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// List returns all users, newest first.
func (r *UserRepository) List(ctx context.Context) ([]*domain.User, error) {
	cursor, err := r.users.Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		log.Error().Err(err).Msg("error listing users")
		return nil, err
	}
	defer cursor.Close(ctx)

	var users []*domain.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

var _ domain.UserRepository = (*UserRepository)(nil)
