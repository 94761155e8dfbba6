package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"partita/internal/fileutil"
)

// Azure is an Azure Blob Storage backend. Buckets map to key prefixes
// within a single container.
type Azure struct {
	client    *azblob.Client
	container string
}

// NewAzure creates an Azure-backed store from a connection string.
func NewAzure(connectionString, container string) (*Azure, error) {
	client, err := azblob.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("objectstore: azure client: %w", err)
	}
	return &Azure{client: client, container: container}, nil
}

// EnsureContainer creates the backing container if it does not exist.
func (s *Azure) EnsureContainer(ctx context.Context) error {
	_, err := s.client.CreateContainer(ctx, s.container, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return fmt.Errorf("objectstore: create container: %w", err)
	}
	return nil
}

// Put implements Store.
func (s *Azure) Put(ctx context.Context, bucket Bucket, key string, data []byte, contentType string) (Locator, error) {
	if err := validateKey(key); err != nil {
		return Locator{}, err
	}
	opts := &azblob.UploadStreamOptions{
		HTTPHeaders: &blob.HTTPHeaders{
			BlobContentType: &contentType,
		},
	}
	if _, err := s.client.UploadStream(ctx, s.container, s.blobName(bucket, key), bytes.NewReader(data), opts); err != nil {
		return Locator{}, fmt.Errorf("objectstore: upload blob: %w", err)
	}
	return Locator{
		Bucket:    bucket,
		Key:       key,
		SizeBytes: int64(len(data)),
		Checksum: Checksum{
			Algorithm: "sha256",
			HexDigest: fileutil.SHA256Hex(data),
		},
		ContentType:    contentType,
		LastModifiedAt: time.Now().UTC(),
	}, nil
}

// Get implements Store.
func (s *Azure) Get(ctx context.Context, bucket Bucket, key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	resp, err := s.client.DownloadStream(ctx, s.container, s.blobName(bucket, key), nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("objectstore: download blob: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("objectstore: read blob body: %w", err)
	}
	return data, nil
}

// Delete implements Store.
func (s *Azure) Delete(ctx context.Context, bucket Bucket, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if _, err := s.client.DeleteBlob(ctx, s.container, s.blobName(bucket, key), nil); err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("objectstore: delete blob: %w", err)
	}
	return nil
}

func (s *Azure) blobName(bucket Bucket, key string) string {
	return string(bucket) + "/" + key
}
