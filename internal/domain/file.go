package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FileObject stores metadata about a file a user uploaded (FIT recordings,
// typically linked to an activity). The actual bytes live in object storage;
// ObjectKey is internal and never serialized.
type FileObject struct {
	ID          primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	UserID      primitive.ObjectID  `bson:"userId" json:"userId"`
	ActivityID  *primitive.ObjectID `bson:"activityId,omitempty" json:"activityId,omitempty"`
	ObjectKey   string              `bson:"objectKey" json:"-"` // Key (path/filename) in the bucket - internal use
	FileName    string              `bson:"fileName" json:"fileName"`
	ContentType string              `bson:"contentType" json:"contentType"` // e.g. "application/vnd.ant.fit"
	Size        int64               `bson:"size" json:"size"`               // Bytes
	UploadedAt  time.Time           `bson:"uploadedAt" json:"uploadedAt"`
}
