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

// DeviceRepository implements domain.DeviceRepository on MongoDB. Pin writes
// are single-field $set/$unset updates so concurrent reports from one device
// never clobber each other's pins.
type DeviceRepository struct {
	devices *mongo.Collection
}

// NewDeviceRepository creates the repository and ensures its indexes.
func NewDeviceRepository(ctx context.Context, db *mongo.Database) (*DeviceRepository, error) {
	repo := &DeviceRepository{devices: db.Collection(DevicesCollection)}
	if err := repo.createIndexes(ctx); err != nil {
		return nil, err
	}
	return repo, nil
}

func (r *DeviceRepository) createIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "username", Value: 1}, {Key: "device_name", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "updated", Value: -1}},
		},
	}
	if _, err := r.devices.Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("creating device indexes: %w", err)
	}
	return nil
}

// List returns the user's devices.
func (r *DeviceRepository) List(ctx context.Context, username string) ([]*domain.Device, error) {
	return r.find(ctx, bson.M{"username": username})
}

// Get retrieves one device by owner and name.
func (r *DeviceRepository) Get(ctx context.Context, username, deviceName string) (*domain.Device, error) {
	var device domain.Device
	err := r.devices.FindOne(ctx, bson.M{"username": username, "device_name": deviceName}).Decode(&device)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrDeviceNotFound
		}
		log.Error().Err(err).Str("device", deviceName).Msg("error looking up device")
		return nil, err
	}
	return &device, nil
}

// Create inserts a new device for its owner.
func (r *DeviceRepository) Create(ctx context.Context, device *domain.Device) error {
	if device.ID == "" {
		device.ID = NewObjectID()
	}
	if device.Pins == nil {
		device.Pins = map[string]any{}
	}
	device.Updated = time.Now().UTC()

	if _, err := r.devices.InsertOne(ctx, device); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrDeviceExists
		}
		log.Error().Err(err).Str("device", device.DeviceName).Msg("error creating device")
		return err
	}
	return nil
}

// UpdatePins merges pin values into the device document.
func (r *DeviceRepository) UpdatePins(ctx context.Context, username, deviceName string, pins map[string]any) error {
	set := bson.M{"updated": time.Now().UTC()}
	for pin, value := range pins {
		set["pins."+pin] = value
	}

	res, err := r.devices.UpdateOne(ctx,
		bson.M{"username": username, "device_name": deviceName},
		bson.M{"$set": set},
	)
	if err != nil {
		log.Error().Err(err).Str("device", deviceName).Msg("error updating device pins")
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrDeviceNotFound
	}
	return nil
}

// Delete removes a device.
func (r *DeviceRepository) Delete(ctx context.Context, username, deviceName string) error {
	res, err := r.devices.DeleteOne(ctx, bson.M{"username": username, "device_name": deviceName})
	if err != nil {
		log.Error().Err(err).Str("device", deviceName).Msg("error deleting device")
		return err
	}
	if res.DeletedCount == 0 {
		return domain.ErrDeviceNotFound
	}
	return nil
}

// SetPin writes one pin value, creating the device if it does not exist yet.
func (r *DeviceRepository) SetPin(ctx context.Context, username, deviceName, pin string, value any) error {
	_, err := r.devices.UpdateOne(ctx,
		bson.M{"username": username, "device_name": deviceName},
		bson.M{
			"$set":         bson.M{"pins." + pin: value, "updated": time.Now().UTC()},
			"$setOnInsert": bson.M{"_id": NewObjectID()},
		},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		log.Error().Err(err).Str("device", deviceName).Str("pin", pin).Msg("error setting pin")
		return err
	}
	return nil
}

// UnsetPin removes one pin from the device.
func (r *DeviceRepository) UnsetPin(ctx context.Context, username, deviceName, pin string) error {
	res, err := r.devices.UpdateOne(ctx,
		bson.M{"username": username, "device_name": deviceName},
		bson.M{
			"$unset": bson.M{"pins." + pin: ""},
			"$set":   bson.M{"updated": time.Now().UTC()},
		},
	)
	if err != nil {
		log.Error().Err(err).Str("device", deviceName).Str("pin", pin).Msg("error removing pin")
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrDeviceNotFound
	}
	return nil
}

// ListActive returns every device updated since the given time, across users.
func (r *DeviceRepository) ListActive(ctx context.Context, since time.Time) ([]*domain.Device, error) {
	return r.find(ctx, bson.M{"updated": bson.M{"$gte": since}})
}

func (r *DeviceRepository) find(ctx context.Context, filter bson.M) ([]*domain.Device, error) {
	cursor, err := r.devices.Find(ctx, filter)
	if err != nil {
		log.Error().Err(err).Interface("filter", filter).Msg("error listing devices")
		return nil, err
	}
	defer cursor.Close(ctx)

	devices := []*domain.Device{}
	if err := cursor.All(ctx, &devices); err != nil {
		return nil, err
	}
	return devices, nil
}

var _ domain.DeviceRepository = (*DeviceRepository)(nil)
