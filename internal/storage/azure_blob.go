package storage

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"go.uber.org/zap"
)

// AzureBlobStorage keeps objects as block blobs in a single container
type AzureBlobStorage struct {
	client    *azblob.Client
	container string
	logger    *zap.Logger
}

// NewAzureBlobStorage connects with a storage account connection string and
// creates the container when it does not exist yet.
func NewAzureBlobStorage(connectionString, container string, logger *zap.Logger) (*AzureBlobStorage, error) {
	client, err := azblob.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create blob client: %w", err)
	}

	if _, err := client.CreateContainer(context.Background(), container, nil); err != nil &&
		!bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return nil, fmt.Errorf("failed to create container %s: %w", container, err)
	}

	logger.Info("Azure Blob Storage ready", zap.String("container", container))
	return &AzureBlobStorage{client: client, container: container, logger: logger}, nil
}

// Upload writes data to the blob named key, replacing any previous version
func (s *AzureBlobStorage) Upload(ctx context.Context, key, contentType string, data io.Reader) (string, int64, error) {
	name, err := CleanKey(key)
	if err != nil {
		return "", 0, err
	}

	body := &countingReader{r: data}
	opts := &azblob.UploadStreamOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
	}
	if _, err := s.client.UploadStream(ctx, s.container, name, body, opts); err != nil {
		return "", 0, fmt.Errorf("failed to upload blob %s: %w", name, err)
	}

	s.logger.Info("Blob uploaded",
		zap.String("blob", name),
		zap.String("container", s.container),
		zap.Int64("size", body.n),
	)
	return name, body.n, nil
}

// Download opens the blob named key. The caller closes the reader.
func (s *AzureBlobStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	name, err := CleanKey(key)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.DownloadStream(ctx, s.container, name, nil)
	if err != nil {
		return nil, s.wrap("download", name, err)
	}
	return resp.Body, nil
}

// Delete removes the blob named key. Deleting a missing blob succeeds.
func (s *AzureBlobStorage) Delete(ctx context.Context, key string) error {
	name, err := CleanKey(key)
	if err != nil {
		return err
	}

	if _, err := s.client.DeleteBlob(ctx, s.container, name, nil); err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil
		}
		return s.wrap("delete", name, err)
	}
	s.logger.Info("Blob deleted", zap.String("blob", name), zap.String("container", s.container))
	return nil
}

// List returns the blobs whose name starts with prefix, ordered by name
func (s *AzureBlobStorage) List(ctx context.Context, prefix string) ([]Object, error) {
	pager := s.client.NewListBlobsFlatPager(s.container, &azblob.ListBlobsFlatOptions{Prefix: &prefix})

	objects := []Object{}
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list blobs: %w", err)
		}
		for _, item := range page.Segment.BlobItems {
			if item == nil || item.Name == nil {
				continue
			}
			obj := Object{Key: *item.Name}
			if props := item.Properties; props != nil {
				if props.ContentLength != nil {
					obj.Size = *props.ContentLength
				}
				if props.LastModified != nil {
					obj.LastModified = props.LastModified.UTC()
				}
			}
			objects = append(objects, obj)
		}
	}

	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

// wrap maps a missing blob onto ErrNotFound
func (s *AzureBlobStorage) wrap(op, name string, err error) error {
	if bloberror.HasCode(err, bloberror.BlobNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return fmt.Errorf("failed to %s blob %s: %w", op, name, err)
}

// countingReader records how many bytes were streamed to the service
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
