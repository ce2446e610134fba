package interfaces

import (
	"context"
)

// HookHandler is a function that handles a hook event.
type HookHandler func(ctx context.Context, data any) (any, error)

// Hook names
const (
	HookRefresh       = "refresh"        // data: nil
	HookFolderChanged = "folder_changed" // data: folder.Event
	HookLayerAdded    = "layer_added"    // data: layers.Descriptor
	HookLayerRemoved  = "layer_removed"  // data: layers.Descriptor
	HookMoveApplied   = "move_applied"   // data: MoveRequest
)

// MoveRequest is the payload of HookMoveApplied.
type MoveRequest struct {
	Rows         []int
	InsertBefore int
}
