package mongodb

import "go.mongodb.org/mongo-driver/v2/bson"

const (
	UsersCollection    = "users"
	DevicesCollection  = "devices"
	SketchesCollection = "sketches"
)

// NewObjectID generates a new document ID as a hex string.
func NewObjectID() string {
	return bson.NewObjectID().Hex()
}
