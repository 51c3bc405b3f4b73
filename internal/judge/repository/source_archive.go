package repository

import (
	"bytes"
	"context"
	"io"
	"strconv"
	"sync"

	"codepulse/internal/common/storage"
	appErr "codepulse/pkg/errors"

	"github.com/klauspost/compress/zstd"
)

const (
	sourceContentType = "application/zstd"
	maxArchivedSource = 4 << 20
)

// SourceArchive stores submitted source code outside the database.
type SourceArchive interface {
	Archive(ctx context.Context, submissionID int64, languageID, code string) (string, error)
	Load(ctx context.Context, key string) (string, error)
}

// ObjectSourceArchive writes zstd compressed sources to object storage.
type ObjectSourceArchive struct {
	storage storage.ObjectStorage
	bucket  string

	once    sync.Once
	encoder *zstd.Encoder
	decoder *zstd.Decoder
	initErr error
}

// NewObjectSourceArchive creates an archive writing to bucket.
func NewObjectSourceArchive(objectStorage storage.ObjectStorage, bucket string) *ObjectSourceArchive {
	return &ObjectSourceArchive{storage: objectStorage, bucket: bucket}
}

// SourceKey returns the object key of an archived graded submission.
func SourceKey(submissionID int64, languageID string) string {
	return "submissions/" + strconv.FormatInt(submissionID, 10) + "/source." + languageID + ".zst"
}

// Archive compresses code and uploads it, returning the object key.
func (a *ObjectSourceArchive) Archive(ctx context.Context, submissionID int64, languageID, code string) (string, error) {
	if a.storage == nil || a.bucket == "" {
		return "", appErr.New(appErr.StorageError).WithMessage("source archive is not configured")
	}
	if err := a.init(); err != nil {
		return "", err
	}
	key := SourceKey(submissionID, languageID)
	payload := a.encoder.EncodeAll([]byte(code), nil)
	if err := a.storage.PutObject(ctx, a.bucket, key, bytes.NewReader(payload), int64(len(payload)), sourceContentType); err != nil {
		return "", appErr.Wrapf(err, appErr.StorageError, "upload source failed")
	}
	return key, nil
}

// Load downloads and decompresses an archived source.
func (a *ObjectSourceArchive) Load(ctx context.Context, key string) (string, error) {
	if a.storage == nil || a.bucket == "" {
		return "", appErr.New(appErr.StorageError).WithMessage("source archive is not configured")
	}
	if err := a.init(); err != nil {
		return "", err
	}
	reader, err := a.storage.GetObject(ctx, a.bucket, key)
	if err != nil {
		return "", appErr.Wrapf(err, appErr.StorageError, "download source failed")
	}
	defer reader.Close()

	compressed, err := io.ReadAll(io.LimitReader(reader, maxArchivedSource))
	if err != nil {
		return "", appErr.Wrapf(err, appErr.StorageError, "read source failed")
	}
	data, err := a.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return "", appErr.Wrapf(err, appErr.StorageError, "decompress source failed")
	}
	return string(data), nil
}

func (a *ObjectSourceArchive) init() error {
	a.once.Do(func() {
		a.encoder, a.initErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if a.initErr != nil {
			return
		}
		a.decoder, a.initErr = zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	})
	if a.initErr != nil {
		return appErr.Wrapf(a.initErr, appErr.StorageError, "init zstd codec failed")
	}
	return nil
}
