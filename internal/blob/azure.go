package blob

import (
	"context"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

// uploader is the subset of *azblob.Client used by AzureSink.
type uploader interface {
	UploadBuffer(ctx context.Context, containerName string, blobName string, buffer []byte, o *azblob.UploadBufferOptions) (azblob.UploadBufferResponse, error)
	URL() string
}

// AzureSink writes blobs to one Azure Storage container.
type AzureSink struct {
	client    uploader
	container string
}

// NewAzureSink connects to Azure Blob Storage using a storage account
// connection string.
func NewAzureSink(connectionString, container string) (*AzureSink, error) {
	if container == "" {
		return nil, fmt.Errorf("azure blob: container name is required")
	}
	client, err := azblob.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("azure blob: creating client: %w", err)
	}
	return &AzureSink{client: client, container: container}, nil
}

// Put uploads data to path. The upload carries If-None-Match: * so an
// existing blob is reported instead of replaced.
func (s *AzureSink) Put(ctx context.Context, data []byte, path string) (Reference, error) {
	anyETag := azcore.ETagAny
	_, err := s.client.UploadBuffer(ctx, s.container, path, data, &azblob.UploadBufferOptions{
		AccessConditions: &blob.AccessConditions{
			ModifiedAccessConditions: &blob.ModifiedAccessConditions{IfNoneMatch: &anyETag},
		},
	})
	if err != nil {
		return Reference{}, fmt.Errorf("uploading %s: %w", path, classifyAzureError(err))
	}
	return Reference{Path: path, URL: s.URL(path)}, nil
}

// URL returns the public URL of path inside the sink's container.
func (s *AzureSink) URL(path string) string {
	return strings.TrimSuffix(s.client.URL(), "/") + "/" + s.container + "/" + path
}

func classifyAzureError(err error) error {
	switch {
	case bloberror.HasCode(err, bloberror.BlobAlreadyExists, bloberror.ConditionNotMet):
		return fmt.Errorf("%w: %w", ErrAlreadyExists, err)
	case bloberror.HasCode(err, bloberror.ContainerNotFound, bloberror.ResourceNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	default:
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
}
