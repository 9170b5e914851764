package models

import "time"

type Folder struct {
	ID        string
	AccountID string
	Name      string
	ParentID  *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FolderNode is a folder with its materialized subtree.
type FolderNode struct {
	Folder
	Children []*FolderNode
}
