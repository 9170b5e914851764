package services

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/young8Programmer/Secure-Cloud-File-Manager-Encryptor-Bot/internal/common"
	"github.com/young8Programmer/Secure-Cloud-File-Manager-Encryptor-Bot/internal/dbx"
	"github.com/young8Programmer/Secure-Cloud-File-Manager-Encryptor-Bot/internal/server/models"
	"github.com/young8Programmer/Secure-Cloud-File-Manager-Encryptor-Bot/internal/server/repositories/accounts"
	"github.com/young8Programmer/Secure-Cloud-File-Manager-Encryptor-Bot/internal/server/repositories/files"
	"github.com/young8Programmer/Secure-Cloud-File-Manager-Encryptor-Bot/internal/server/repositories/folders"
)

// memState is an in-memory stand-in for the three tables. Repositories
// vended by memManager ignore the DBTX they are bound to.
type memState struct {
	mu       sync.Mutex
	accounts map[string]*models.Account
	folders  map[string]*models.Folder
	files    map[string]*models.File
	seq      int

	// hooks for failure injection
	insertErr   error
	removeErr   error
	markErr     error
	listErr     error
	redeemCalls int
	reapCalls   int
}

func newMemState() *memState {
	return &memState{
		accounts: map[string]*models.Account{},
		folders:  map[string]*models.Folder{},
		files:    map[string]*models.File{},
	}
}

func (m *memState) addAccount(id string, used, limit int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[id] = &models.Account{ID: id, ExternalID: "ext-" + id, UsedBytes: used, LimitBytes: limit}
}

func (m *memState) used(id string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accounts[id].UsedBytes
}

func (m *memState) fileCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.files)
}

func (m *memState) file(id string) *models.File {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.files[id]
}

func (m *memState) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

type memManager struct{ s *memState }

func (m *memManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *memManager) Accounts(dbx.DBTX) accounts.Repository      { return &memAccounts{m.s} }
func (m *memManager) Folders(dbx.DBTX) folders.Repository        { return &memFolders{m.s} }
func (m *memManager) Files(dbx.DBTX) files.Repository            { return &memFiles{m.s} }

type memAccounts struct{ s *memState }

func (r *memAccounts) Upsert(_ context.Context, a *models.Account, defaultLimit int64) (*models.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.accounts {
		if existing.ExternalID == a.ExternalID {
			existing.Username, existing.FirstName, existing.LastName = a.Username, a.FirstName, a.LastName
			cp := *existing
			return &cp, nil
		}
	}
	n := *a
	n.ID = r.s.nextID("acct")
	n.LimitBytes = defaultLimit
	r.s.accounts[n.ID] = &n
	cp := n
	return &cp, nil
}

func (r *memAccounts) Get(_ context.Context, id string) (*models.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.accounts[id]
	if !ok {
		return nil, common.ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *memAccounts) AddUsage(_ context.Context, id string, delta int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.accounts[id]
	if !ok || a.UsedBytes+delta > a.LimitBytes {
		return false, nil
	}
	a.UsedBytes += delta
	return true, nil
}

func (r *memAccounts) ReleaseUsage(_ context.Context, id string, delta int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.accounts[id]
	if !ok {
		return common.ErrAccountNotFound
	}
	a.UsedBytes -= delta
	if a.UsedBytes < 0 {
		a.UsedBytes = 0
	}
	return nil
}

func (r *memAccounts) SetLimit(_ context.Context, id string, limit int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.accounts[id]
	if !ok {
		return common.ErrAccountNotFound
	}
	a.LimitBytes = limit
	return nil
}

func (r *memAccounts) LockForUpdate(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.accounts[id]; !ok {
		return common.ErrAccountNotFound
	}
	return nil
}

type memFolders struct{ s *memState }

func (r *memFolders) Create(_ context.Context, f *models.Folder) (*models.Folder, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, e := range r.s.folders {
		if e.AccountID == f.AccountID && e.Name == f.Name && sameParent(e.ParentID, f.ParentID) {
			return nil, common.ErrConflict
		}
	}
	f.ID = r.s.nextID("folder")
	cp := *f
	r.s.folders[f.ID] = &cp
	return f, nil
}

func (r *memFolders) Get(_ context.Context, id, accountID string) (*models.Folder, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	f, ok := r.s.folders[id]
	if !ok || f.AccountID != accountID {
		return nil, common.ErrorNotFound
	}
	cp := *f
	return &cp, nil
}

func (r *memFolders) NameTaken(_ context.Context, accountID string, parentID *string, name, excludeID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, e := range r.s.folders {
		if e.AccountID == accountID && e.Name == name && sameParent(e.ParentID, parentID) && e.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memFolders) Update(_ context.Context, f *models.Folder) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.folders[f.ID]
	if !ok || e.AccountID != f.AccountID {
		return common.ErrorNotFound
	}
	e.Name, e.ParentID = f.Name, f.ParentID
	return nil
}

func (r *memFolders) ListChildren(_ context.Context, accountID string, parentID *string) ([]*models.Folder, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Folder
	for _, e := range r.s.folders {
		if e.AccountID == accountID && sameParent(e.ParentID, parentID) {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *memFolders) Delete(_ context.Context, id, accountID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.folders[id]
	if !ok || e.AccountID != accountID {
		return common.ErrorNotFound
	}
	for _, f := range r.s.files {
		if f.FolderID != nil && *f.FolderID == id {
			return fmt.Errorf("folder %s still referenced by file %s", id, f.ID)
		}
	}
	for _, c := range r.s.folders {
		if c.ParentID != nil && *c.ParentID == id {
			return fmt.Errorf("folder %s still has child %s", id, c.ID)
		}
	}
	delete(r.s.folders, id)
	return nil
}

type memFiles struct{ s *memState }

func (r *memFiles) Insert(_ context.Context, f *models.File) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.insertErr != nil {
		return r.s.insertErr
	}
	f.ID = uuid.NewString()
	f.CreatedAt = time.Now()
	r.s.seq++
	f.UpdatedAt = time.Unix(int64(r.s.seq), 0)
	cp := *f
	r.s.files[f.ID] = &cp
	return nil
}

func (r *memFiles) GetOwned(_ context.Context, id, ownerID string) (*models.File, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	f, ok := r.s.files[id]
	if !ok || f.OwnerID != ownerID || f.Deleted {
		return nil, common.ErrorNotFound
	}
	cp := *f
	return &cp, nil
}

func (r *memFiles) MarkDeleted(_ context.Context, id, ownerID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.markErr != nil {
		return r.s.markErr
	}
	f, ok := r.s.files[id]
	if !ok || f.OwnerID != ownerID {
		return common.ErrorNotFound
	}
	f.Deleted = true
	f.LinkToken, f.LinkExpiresAt = nil, nil
	return nil
}

func (r *memFiles) Remove(_ context.Context, id string) (int64, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.removeErr != nil {
		return 0, false, r.s.removeErr
	}
	f, ok := r.s.files[id]
	if !ok {
		return 0, false, nil
	}
	delete(r.s.files, id)
	return f.SizeBytes, true, nil
}

func (r *memFiles) ListByFolder(_ context.Context, ownerID string, folderID *string) ([]*models.File, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.listErr != nil {
		return nil, r.s.listErr
	}
	var out []*models.File
	for _, f := range r.s.files {
		if f.OwnerID == ownerID && !f.Deleted && sameParent(f.FolderID, folderID) {
			cp := *f
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memFiles) SetLink(_ context.Context, id, ownerID, token string, expiresAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	f, ok := r.s.files[id]
	if !ok || f.OwnerID != ownerID || f.Deleted {
		return common.ErrorNotFound
	}
	f.LinkToken, f.LinkExpiresAt = &token, &expiresAt
	return nil
}

func (r *memFiles) Redeem(_ context.Context, token string) (string, string, time.Time, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.redeemCalls++
	for _, f := range r.s.files {
		if f.LinkToken != nil && *f.LinkToken == token && !f.Deleted {
			exp := *f.LinkExpiresAt
			f.LinkToken, f.LinkExpiresAt = nil, nil
			return f.ID, f.OwnerID, exp, nil
		}
	}
	return "", "", time.Time{}, common.ErrInvalidToken
}

func (r *memFiles) ListMarkedInFolder(_ context.Context, ownerID, folderID string) ([]*models.File, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.File
	for _, f := range r.s.files {
		if f.OwnerID == ownerID && f.Deleted && f.FolderID != nil && *f.FolderID == folderID {
			cp := *f
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memFiles) SelectReapable(_ context.Context, now time.Time, exclude []string, limit int) ([]*models.File, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.reapCalls++
	skip := make(map[string]bool, len(exclude))
	for _, id := range exclude {
		skip[id] = true
	}
	var out []*models.File
	for _, f := range r.s.files {
		if skip[f.ID] {
			continue
		}
		if f.Deleted || (f.ExpiresAt != nil && f.ExpiresAt.Before(now)) {
			cp := *f
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// memBlobs is a blob store with failure injection.
type memBlobs struct {
	mu       sync.Mutex
	objects  map[string][]byte
	putErr   error
	delErr   error
	stuck    map[string]bool
	delCalls map[string]int
}

func newMemBlobs() *memBlobs {
	return &memBlobs{objects: map[string][]byte{}, stuck: map[string]bool{}, delCalls: map[string]int{}}
}

func (b *memBlobs) Put(_ context.Context, locator string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.putErr != nil {
		return b.putErr
	}
	b.objects[locator] = bytes.Clone(data)
	return nil
}

func (b *memBlobs) Get(_ context.Context, locator string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, ok := b.objects[locator]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return bytes.Clone(d), nil
}

func (b *memBlobs) Delete(_ context.Context, locator string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.delCalls[locator]++
	if b.delErr != nil {
		return b.delErr
	}
	if b.stuck[locator] {
		return fmt.Errorf("blob %s is locked", locator)
	}
	delete(b.objects, locator)
	return nil
}

func (b *memBlobs) deletes(locator string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.delCalls[locator]
}

func (b *memBlobs) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.objects)
}

func (b *memBlobs) tamper(locator string, i int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[locator][i] ^= 0x01
}

// newTxDB returns a real *sql.DB for dbx.WithTx. The fakes never send
// statements through it, so only BEGIN and COMMIT/ROLLBACK reach SQLite.
func newTxDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

// fakeClock is a settable Clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
