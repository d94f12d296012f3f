package models

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrFolderCycle is returned when a parent chain revisits a folder.
	ErrFolderCycle = errors.New("folder hierarchy contains a cycle")
	// ErrFolderDepthExceeded is returned when a chain is longer than the configured bound.
	ErrFolderDepthExceeded = errors.New("folder hierarchy exceeds maximum depth")
	// ErrFolderChainBroken is returned when an ancestor referenced by parent_folder_id is missing.
	ErrFolderChainBroken = errors.New("folder ancestor missing")
)

// Folder is a hierarchical container of documents, optionally scoped to a student.
type Folder struct {
	ID              string    `db:"id" json:"id"`
	Name            string    `db:"name" json:"name"`
	Description     *string   `db:"description" json:"description,omitempty"`
	ParentFolderID  *string   `db:"parent_folder_id" json:"parentFolderId"`
	StudentID       *string   `db:"student_id" json:"studentId,omitempty"`
	OrganizationID  string    `db:"organization_id" json:"organizationId"`
	CreatedBy       *string   `db:"created_by" json:"createdBy,omitempty"`
	StorageFolderID *string   `db:"storage_folder_id" json:"storageFolderId,omitempty"`
	Depth           int       `db:"depth" json:"depth"`
	CreatedAt       time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time `db:"updated_at" json:"updatedAt"`
}

// IsRoot reports whether the folder has no parent.
func (f *Folder) IsRoot() bool {
	return f.ParentFolderID == nil
}

// FolderListItem is a folder enriched for listings.
type FolderListItem struct {
	Folder
	Student *StudentSummary `json:"student,omitempty"`
	Files   []Document      `json:"files,omitempty"`
}

// ParentScope selects how parentFolderId narrows a folder listing.
type ParentScope int

const (
	// ParentAny lists every folder in scope.
	ParentAny ParentScope = iota
	// ParentRoot lists folders without a parent.
	ParentRoot
	// ParentExact lists direct children of ParentFolderID.
	ParentExact
)

// FolderFilter captures folder listing criteria.
type FolderFilter struct {
	OrganizationID string
	StudentID      string
	Parent         ParentScope
	ParentFolderID string
	IncludeFiles   bool
}

// FolderNode is one link of an ancestor chain. Level counts upward from the starting folder.
type FolderNode struct {
	ID             string  `db:"id" json:"id"`
	Name           string  `db:"name" json:"name"`
	ParentFolderID *string `db:"parent_folder_id" json:"parentFolderId"`
	StudentID      *string `db:"student_id" json:"-"`
	OrganizationID string  `db:"organization_id" json:"-"`
	Level          int     `db:"level" json:"-"`
}

// ResolveBreadcrumb validates an ancestor chain fetched leaf-first and returns it root-to-leaf.
// Chains that revisit a folder fail with ErrFolderCycle; chains longer than maxDepth+1 nodes
// fail with ErrFolderDepthExceeded.
func ResolveBreadcrumb(leafID string, chain []FolderNode, maxDepth int) ([]FolderNode, error) {
	if len(chain) == 0 || chain[0].ID != leafID {
		return nil, fmt.Errorf("%w: %s", ErrFolderChainBroken, leafID)
	}

	visited := make(map[string]struct{}, len(chain))
	path := make([]FolderNode, 0, len(chain))
	for i, node := range chain {
		if _, seen := visited[node.ID]; seen {
			return nil, fmt.Errorf("%w: folder %s repeats", ErrFolderCycle, node.ID)
		}
		visited[node.ID] = struct{}{}
		if i > maxDepth {
			return nil, fmt.Errorf("%w: more than %d levels", ErrFolderDepthExceeded, maxDepth)
		}
		path = append(path, node)

		if node.ParentFolderID == nil {
			reverseNodes(path)
			return path, nil
		}
		if i+1 >= len(chain) {
			if i+1 > maxDepth {
				return nil, fmt.Errorf("%w: more than %d levels", ErrFolderDepthExceeded, maxDepth)
			}
			return nil, fmt.Errorf("%w: %s", ErrFolderChainBroken, *node.ParentFolderID)
		}
		if chain[i+1].ID != *node.ParentFolderID {
			return nil, fmt.Errorf("%w: expected %s", ErrFolderChainBroken, *node.ParentFolderID)
		}
	}
	return nil, fmt.Errorf("%w: unterminated chain", ErrFolderChainBroken)
}

// ChainContains reports whether id appears in the chain.
func ChainContains(chain []FolderNode, id string) bool {
	for _, node := range chain {
		if node.ID == id {
			return true
		}
	}
	return false
}

func reverseNodes(nodes []FolderNode) {
	for i, j := 0, len(nodes)-1; i < j; i, j = i+1, j-1 {
		nodes[i], nodes[j] = nodes[j], nodes[i]
	}
}
