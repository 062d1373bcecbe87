package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/azcosmos"

	"github.com/tachora/tachora/internal/note"
)

// Partition key fields supported by CosmosStore.
const (
	PartitionByUserID = "user_id"
	PartitionByID     = "id"
)

// itemCreator is the subset of *azcosmos.ContainerClient used by CosmosStore.
type itemCreator interface {
	CreateItem(ctx context.Context, partitionKey azcosmos.PartitionKey, item []byte, o *azcosmos.ItemOptions) (azcosmos.ItemResponse, error)
}

// CosmosStore writes notes as JSON documents into one Cosmos DB container.
type CosmosStore struct {
	container      itemCreator
	partitionField string
}

// NewCosmosStore connects to a Cosmos DB account with a primary or secondary key.
// partitionField names the note field the container is partitioned on.
func NewCosmosStore(endpoint, key, database, container, partitionField string) (*CosmosStore, error) {
	if err := checkPartitionField(partitionField); err != nil {
		return nil, err
	}
	cred, err := azcosmos.NewKeyCredential(key)
	if err != nil {
		return nil, fmt.Errorf("cosmos: creating credential: %w", err)
	}
	client, err := azcosmos.NewClientWithKey(endpoint, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("cosmos: creating client: %w", err)
	}
	c, err := client.NewContainer(database, container)
	if err != nil {
		return nil, fmt.Errorf("cosmos: opening container %s/%s: %w", database, container, err)
	}
	return &CosmosStore{container: c, partitionField: partitionField}, nil
}

func checkPartitionField(field string) error {
	switch field {
	case PartitionByUserID, PartitionByID:
		return nil
	default:
		return fmt.Errorf("cosmos: unsupported partition key field %q (want %q or %q)", field, PartitionByUserID, PartitionByID)
	}
}

// CreateNote inserts n as a new item. Cosmos rejects an existing id with 409.
func (s *CosmosStore) CreateNote(ctx context.Context, n note.Note) (string, error) {
	if err := n.Validate(); err != nil {
		return "", fmt.Errorf("note %s: %w", n.ID, err)
	}

	item, err := json.Marshal(n)
	if err != nil {
		return "", fmt.Errorf("marshalling note %s: %w", n.ID, err)
	}

	pk := azcosmos.NewPartitionKeyString(n.UserID)
	if s.partitionField == PartitionByID {
		pk = azcosmos.NewPartitionKeyString(n.ID)
	}

	if _, err := s.container.CreateItem(ctx, pk, item, nil); err != nil {
		return "", fmt.Errorf("creating item %s: %w", n.ID, classifyCosmosError(err))
	}
	return n.ID, nil
}

func classifyCosmosError(err error) error {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) && respErr.StatusCode == http.StatusConflict {
		return fmt.Errorf("%w: %w", ErrDuplicateID, err)
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}
