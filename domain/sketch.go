package domain

import "time"

// Sketch is a saved block-code snippet. Sketches are addressed by (username, id);
// the title must be unique per user at creation time.
type Sketch struct {
	ID          string    `bson:"_id,omitempty" json:"id"`
	Username    string    `bson:"username" json:"username"`
	Title       string    `bson:"title" json:"title"`
	Description string    `bson:"description,omitempty" json:"description,omitempty"`
	Blocks      string    `bson:"blocks,omitempty" json:"blocks,omitempty"`
	Tags        []string  `bson:"tags,omitempty" json:"tags,omitempty"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at" json:"updated_at"`
}

// SketchUpdate carries the fields of a sketch that may be changed after
// creation. Nil fields are left untouched.
type SketchUpdate struct {
	Title       *string
	Description *string
	Blocks      *string
	Tags        []string
}
