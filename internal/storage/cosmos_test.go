package storage

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/azcosmos"

	"github.com/tachora/tachora/internal/note"
)

type fakeContainer struct {
	err   error
	pk    azcosmos.PartitionKey
	items [][]byte
}

func (f *fakeContainer) CreateItem(_ context.Context, pk azcosmos.PartitionKey, item []byte, _ *azcosmos.ItemOptions) (azcosmos.ItemResponse, error) {
	f.pk = pk
	f.items = append(f.items, item)
	return azcosmos.ItemResponse{}, f.err
}

func cosmosError(status int) error {
	return &azcore.ResponseError{
		StatusCode: status,
		ErrorCode:  http.StatusText(status),
		RawResponse: &http.Response{
			StatusCode: status,
			Status:     http.StatusText(status),
			Request:    httptest.NewRequest(http.MethodPost, "https://acct.documents.azure.com/dbs/mem/colls/notes/docs", nil),
		},
	}
}

func TestCosmosStore_CreateNoteDocument(t *testing.T) {
	fc := &fakeContainer{}
	s := &CosmosStore{container: fc, partitionField: PartitionByUserID}
	n := note.NewTextNote(testStamp, "42", "bought milk")

	id, err := s.CreateNote(context.Background(), n)
	if err != nil {
		t.Fatalf("CreateNote: %v", err)
	}
	if id != n.ID {
		t.Errorf("id = %q, want %q", id, n.ID)
	}
	if len(fc.items) != 1 {
		t.Fatalf("items = %d, want 1", len(fc.items))
	}

	var doc map[string]any
	if err := json.Unmarshal(fc.items[0], &doc); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if doc["user_id"] != "42" || doc["type"] != "text-only" || doc["text_message"] != "bought milk" {
		t.Errorf("doc = %v", doc)
	}
	if _, ok := doc["blob_url"]; ok {
		t.Error("blob_url present on text-only document")
	}

	if !reflect.DeepEqual(fc.pk, azcosmos.NewPartitionKeyString("42")) {
		t.Errorf("partition key = %+v, want user id", fc.pk)
	}
}

func TestCosmosStore_PartitionByID(t *testing.T) {
	fc := &fakeContainer{}
	s := &CosmosStore{container: fc, partitionField: PartitionByID}

	if _, err := s.CreateNote(context.Background(), note.NewTextNote(testStamp, "42", "x")); err != nil {
		t.Fatalf("CreateNote: %v", err)
	}
	if !reflect.DeepEqual(fc.pk, azcosmos.NewPartitionKeyString(testStamp.ID)) {
		t.Errorf("partition key = %+v, want note id", fc.pk)
	}
}

func TestCosmosStore_ErrorClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"conflict", cosmosError(http.StatusConflict), ErrDuplicateID},
		{"throttled", cosmosError(http.StatusTooManyRequests), ErrUnavailable},
		{"unauthorized", cosmosError(http.StatusUnauthorized), ErrUnavailable},
		{"transport", errors.New("no such host"), ErrUnavailable},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := &CosmosStore{container: &fakeContainer{err: tc.err}, partitionField: PartitionByUserID}
			_, err := s.CreateNote(context.Background(), note.NewTextNote(testStamp, "42", "x"))
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestNewCosmosStore_RejectsUnknownPartitionField(t *testing.T) {
	if _, err := NewCosmosStore("https://acct.documents.azure.com:443/", "a2V5", "mem", "notes", "timestamp"); err == nil {
		t.Fatal("expected error for unsupported partition field")
	}
}
