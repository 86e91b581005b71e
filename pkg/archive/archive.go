// Package archive keeps the raw bytes of every uploaded file so an ingestion
// run can be replayed or audited.
package archive

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/models"
)

type Driver string

const (
	DriverNone   Driver = "none"
	DriverMemory Driver = "memory"
	DriverS3     Driver = "s3"
)

// Upload is one raw file as received.
type Upload struct {
	Kind        models.Kind
	Filename    string
	ContentType string
	Data        []byte
	ReceivedAt  time.Time
}

// Object describes an archived upload.
type Object struct {
	Key  string `json:"key"`
	Size int64  `json:"size"`
}

type Archive interface {
	Put(ctx context.Context, upload Upload) (Object, error)
}

// Key builds uploads/<kind>/<yyyy>/<mm>/<dd>/<id>-<filename>.
func Key(upload Upload, id uuid.UUID) string {
	at := upload.ReceivedAt
	if at.IsZero() {
		at = time.Now()
	}
	at = at.UTC()

	name := path.Base(strings.ReplaceAll(upload.Filename, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "upload"
	}
	return fmt.Sprintf("uploads/%s/%04d/%02d/%02d/%s-%s", upload.Kind, at.Year(), at.Month(), at.Day(), id, name)
}
