package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/young8Programmer/Secure-Cloud-File-Manager-Encryptor-Bot/internal/common"
	"github.com/young8Programmer/Secure-Cloud-File-Manager-Encryptor-Bot/internal/dbx"
	"github.com/young8Programmer/Secure-Cloud-File-Manager-Encryptor-Bot/internal/logging"
	"github.com/young8Programmer/Secure-Cloud-File-Manager-Encryptor-Bot/internal/server/models"
	"github.com/young8Programmer/Secure-Cloud-File-Manager-Encryptor-Bot/internal/server/repositories/folders"
	"github.com/young8Programmer/Secure-Cloud-File-Manager-Encryptor-Bot/internal/server/repositories/repomanager"
)

// ParentChange describes an optional move. Set with a nil ID moves the
// folder to the root.
type ParentChange struct {
	Set bool
	ID  *string
}

// FileRemover deletes files the way FileService does. FolderService uses it
// so files in a deleted folder release their quota and blobs.
type FileRemover interface {
	List(ctx context.Context, accountID string, folderID *string) ([]*models.File, error)
	Delete(ctx context.Context, fileID, accountID string) error
	RetireMarked(ctx context.Context, accountID, folderID string) error
}

// FolderService maintains an acyclic per-account folder tree with unique
// sibling names.
//
// Structural changes lock the account row first, so two moves of the same
// account are serialized and cannot jointly form a cycle.
type FolderService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	files       FileRemover
	maxDepth    int
	logger      logging.Logger
}

func NewFolderService(db *sql.DB, m repomanager.RepositoryManager, files FileRemover, maxDepth int, logger logging.Logger) *FolderService {
	return &FolderService{
		db:          db,
		repomanager: m,
		files:       files,
		maxDepth:    maxDepth,
		logger:      logger.With("module", "folders"),
	}
}

func (s *FolderService) Create(ctx context.Context, accountID, name string, parentID *string) (*models.Folder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: folder name is empty", common.ErrValidation)
	}

	var created *models.Folder
	err := s.withAccountLock(ctx, accountID, func(ctx context.Context, repo folders.Repository) error {
		if parentID != nil {
			if _, err := repo.Get(ctx, *parentID, accountID); err != nil {
				return fmt.Errorf("parent folder: %w", err)
			}
		}

		taken, err := repo.NameTaken(ctx, accountID, parentID, name, "")
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("%w: folder %q already exists", common.ErrConflict, name)
		}

		created, err = repo.Create(ctx, &models.Folder{AccountID: accountID, Name: name, ParentID: parentID})
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *FolderService) Get(ctx context.Context, folderID, accountID string) (*models.Folder, error) {
	return s.repomanager.Folders(s.db).Get(ctx, folderID, accountID)
}

// Update renames and/or moves a folder. A move into the folder itself or any
// of its descendants is rejected with ErrConflict.
func (s *FolderService) Update(ctx context.Context, folderID, accountID string, newName *string, parent ParentChange) (*models.Folder, error) {
	var updated *models.Folder
	err := s.withAccountLock(ctx, accountID, func(ctx context.Context, repo folders.Repository) error {
		folder, err := repo.Get(ctx, folderID, accountID)
		if err != nil {
			return err
		}

		name := folder.Name
		if newName != nil {
			name = strings.TrimSpace(*newName)
			if name == "" {
				return fmt.Errorf("%w: folder name is empty", common.ErrValidation)
			}
		}

		targetParent := folder.ParentID
		if parent.Set {
			targetParent = parent.ID
			if parent.ID != nil {
				if err := s.checkMove(ctx, repo, folderID, accountID, *parent.ID); err != nil {
					return err
				}
			}
		}

		if name != folder.Name || !sameParent(targetParent, folder.ParentID) {
			taken, err := repo.NameTaken(ctx, accountID, targetParent, name, folderID)
			if err != nil {
				return err
			}
			if taken {
				return fmt.Errorf("%w: folder %q already exists", common.ErrConflict, name)
			}
		}

		folder.Name = name
		folder.ParentID = targetParent
		if err := repo.Update(ctx, folder); err != nil {
			return err
		}
		updated = folder
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *FolderService) checkMove(ctx context.Context, repo folders.Repository, folderID, accountID, newParentID string) error {
	if newParentID == folderID {
		return fmt.Errorf("%w: cannot move folder into itself", common.ErrConflict)
	}
	if _, err := repo.Get(ctx, newParentID, accountID); err != nil {
		return fmt.Errorf("parent folder: %w", err)
	}

	descendants, err := s.descendants(ctx, repo, accountID, folderID)
	if err != nil {
		return err
	}
	for _, d := range descendants {
		if d.ID == newParentID {
			return fmt.Errorf("%w: cannot move folder into its own descendant", common.ErrConflict)
		}
	}
	return nil
}

// descendants returns every folder below rootID in breadth-first order.
func (s *FolderService) descendants(ctx context.Context, repo folders.Repository, accountID, rootID string) ([]*models.Folder, error) {
	var out []*models.Folder
	seen := map[string]bool{rootID: true}
	queue := []string{rootID}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		children, err := repo.ListChildren(ctx, accountID, &id)
		if err != nil {
			return nil, err
		}
		for _, c := range children {
			if seen[c.ID] {
				continue
			}
			seen[c.ID] = true
			out = append(out, c)
			queue = append(queue, c.ID)
		}
	}
	return out, nil
}

// Delete removes a folder with all of its subfolders. Files inside go through
// the regular file delete, deepest folders first, so their quota is released.
func (s *FolderService) Delete(ctx context.Context, folderID, accountID string) error {
	repo := s.repomanager.Folders(s.db)

	root, err := repo.Get(ctx, folderID, accountID)
	if err != nil {
		return err
	}
	descendants, err := s.descendants(ctx, repo, accountID, folderID)
	if err != nil {
		return err
	}

	// breadth-first order reversed puts every child before its parent
	order := make([]*models.Folder, 0, len(descendants)+1)
	order = append(order, root)
	order = append(order, descendants...)

	for i := len(order) - 1; i >= 0; i-- {
		fid := order[i].ID
		files, err := s.files.List(ctx, accountID, &fid)
		if err != nil {
			return fmt.Errorf("list files of folder %s: %w", fid, err)
		}
		for _, f := range files {
			if err := s.files.Delete(ctx, f.ID, accountID); err != nil {
				return fmt.Errorf("delete file %s: %w", f.ID, err)
			}
		}
		if err := s.files.RetireMarked(ctx, accountID, fid); err != nil {
			return fmt.Errorf("retire marked files of folder %s: %w", fid, err)
		}
	}

	err = s.withAccountLock(ctx, accountID, func(ctx context.Context, repo folders.Repository) error {
		for i := len(order) - 1; i >= 0; i-- {
			if err := repo.Delete(ctx, order[i].ID, accountID); err != nil {
				return fmt.Errorf("delete folder %s: %w", order[i].ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "folder deleted", "folder_id", folderID, "account_id", accountID, "subfolders", len(descendants))
	return nil
}

// ListChildren returns the direct children of parentID (nil for root) by name.
func (s *FolderService) ListChildren(ctx context.Context, accountID string, parentID *string) ([]*models.Folder, error) {
	return s.repomanager.Folders(s.db).ListChildren(ctx, accountID, parentID)
}

// Tree materializes the subtree below parentID (nil for the whole account).
// It fails with ErrTooDeep instead of descending past the configured depth.
func (s *FolderService) Tree(ctx context.Context, accountID string, parentID *string) ([]*models.FolderNode, error) {
	repo := s.repomanager.Folders(s.db)

	if parentID != nil {
		if _, err := repo.Get(ctx, *parentID, accountID); err != nil {
			return nil, err
		}
	}

	type item struct {
		node  *models.FolderNode
		depth int
	}

	top, err := repo.ListChildren(ctx, accountID, parentID)
	if err != nil {
		return nil, err
	}

	roots := make([]*models.FolderNode, 0, len(top))
	var stack []item
	for _, f := range top {
		n := &models.FolderNode{Folder: *f}
		roots = append(roots, n)
		stack = append(stack, item{node: n, depth: 1})
	}

	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		id := it.node.ID
		children, err := repo.ListChildren(ctx, accountID, &id)
		if err != nil {
			return nil, err
		}
		if len(children) == 0 {
			continue
		}
		if it.depth >= s.maxDepth {
			return nil, fmt.Errorf("%w: more than %d levels", common.ErrTooDeep, s.maxDepth)
		}
		for _, c := range children {
			n := &models.FolderNode{Folder: *c}
			it.node.Children = append(it.node.Children, n)
			stack = append(stack, item{node: n, depth: it.depth + 1})
		}
	}
	return roots, nil
}

func (s *FolderService) withAccountLock(ctx context.Context, accountID string, fn func(ctx context.Context, repo folders.Repository) error) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Accounts(tx).LockForUpdate(ctx, accountID); err != nil {
			return err
		}
		return fn(ctx, s.repomanager.Folders(tx))
	})
}

func sameParent(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
