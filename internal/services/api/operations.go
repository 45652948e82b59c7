package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/temirov/repoview/internal/aggregate"
	"github.com/temirov/repoview/internal/snapshot"
	"github.com/temirov/repoview/internal/types"
)

const (
	errorDecodeRequest = "decode request: %w"

	listFilesDescription    = "snapshot the directory tree rooted at folder"
	filesContentDescription = "concatenate the contents of filePaths in order"
	changesDescription      = "re-snapshot folder and compare it with a previous tree or fingerprint"
)

// ListFilesRequest is the body of a snapshot request.
type ListFilesRequest struct {
	Folder string `json:"folder"`
}

// FilesContentRequest is the body of an aggregation request.
type FilesContentRequest struct {
	FilePaths []string `json:"filePaths"`
}

// FilesContentResponse carries the rendered aggregation artifact.
type FilesContentResponse struct {
	CombinedContent string `json:"combinedContent"`
}

// ChangesRequest is the body of a change detection request. Previous takes
// precedence over Fingerprint when both are present.
type ChangesRequest struct {
	Folder      string      `json:"folder"`
	Previous    *types.Node `json:"previous,omitempty"`
	Fingerprint string      `json:"fingerprint,omitempty"`
}

// ChangesResponse reports whether the tree changed along with the fresh snapshot.
type ChangesResponse struct {
	Changed     bool           `json:"changed"`
	Fingerprint string         `json:"fingerprint"`
	Tree        *types.Node    `json:"tree"`
	Changes     []types.Change `json:"changes"`
}

// NewConfig wires the repoview operations into a server configuration.
func NewConfig(builder *snapshot.Builder, aggregator *aggregate.Aggregator) Config {
	return Config{
		Operations: map[string]Operation{
			ListFilesPath:    OperationFunc(listFilesOperation(builder)),
			FilesContentPath: OperationFunc(filesContentOperation(aggregator)),
			ChangesPath:      OperationFunc(changesOperation(builder)),
		},
		Capabilities: []Capability{
			{Name: types.OperationSnapshot, Path: ListFilesPath, Description: listFilesDescription},
			{Name: types.OperationAggregate, Path: FilesContentPath, Description: filesContentDescription},
			{Name: types.OperationChanges, Path: ChangesPath, Description: changesDescription},
		},
	}
}

func listFilesOperation(builder *snapshot.Builder) func(context.Context, json.RawMessage) (interface{}, error) {
	return func(_ context.Context, payload json.RawMessage) (interface{}, error) {
		var request ListFilesRequest
		if decodeErr := decodePayload(payload, &request); decodeErr != nil {
			return nil, decodeErr
		}
		tree, snapshotErr := builder.Snapshot(request.Folder)
		if snapshotErr != nil {
			return nil, invalidFolderError(snapshotErr)
		}
		return tree, nil
	}
}

func filesContentOperation(aggregator *aggregate.Aggregator) func(context.Context, json.RawMessage) (interface{}, error) {
	return func(ctx context.Context, payload json.RawMessage) (interface{}, error) {
		var request FilesContentRequest
		if decodeErr := decodePayload(payload, &request); decodeErr != nil {
			return nil, decodeErr
		}
		result := aggregator.Aggregate(ctx, request.FilePaths)
		return FilesContentResponse{CombinedContent: aggregate.Render(result)}, nil
	}
}

func changesOperation(builder *snapshot.Builder) func(context.Context, json.RawMessage) (interface{}, error) {
	return func(_ context.Context, payload json.RawMessage) (interface{}, error) {
		var request ChangesRequest
		if decodeErr := decodePayload(payload, &request); decodeErr != nil {
			return nil, decodeErr
		}
		tree, snapshotErr := builder.Snapshot(request.Folder)
		if snapshotErr != nil {
			return nil, invalidFolderError(snapshotErr)
		}
		response := ChangesResponse{
			Fingerprint: snapshot.Fingerprint(tree),
			Tree:        tree,
			Changes:     []types.Change{},
		}
		switch {
		case request.Previous != nil:
			response.Changed = snapshot.Differs(request.Previous, tree)
			if changes := snapshot.Changes(request.Previous, tree); len(changes) > 0 {
				response.Changes = changes
			}
		case request.Fingerprint != "":
			response.Changed = request.Fingerprint != response.Fingerprint
		}
		return response, nil
	}
}

// decodePayload accepts an empty body as an empty request.
func decodePayload(payload json.RawMessage, target interface{}) error {
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if decodeErr := json.Unmarshal(payload, target); decodeErr != nil {
		return NewRequestError(http.StatusBadRequest, fmt.Errorf(errorDecodeRequest, decodeErr))
	}
	return nil
}

// invalidFolderError hides the underlying reason; callers only see the fixed message.
func invalidFolderError(err error) error {
	var pathError *types.InvalidPathError
	if errors.As(err, &pathError) {
		return NewRequestError(http.StatusBadRequest, errors.New(types.InvalidFolderMessage))
	}
	return NewRequestError(http.StatusInternalServerError, err)
}
