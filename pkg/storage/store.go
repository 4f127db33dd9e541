package stores

import (
	"context"
	"errors"
	"io"
)

var ErrNotFound = errors.New("object not found")

// Store 附件对象存储
type Store interface {
	Write(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Read(ctx context.Context, key string) (io.ReadCloser, int64, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

type Config struct {
	Kind      string // local | minio
	LocalDir  string
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

func NewStore(cfg Config) (Store, error) {
	switch cfg.Kind {
	case "minio":
		return NewMinioStore(cfg)
	default:
		return NewLocalStore(cfg.LocalDir)
	}
}
