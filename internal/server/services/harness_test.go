package services

import (
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/young8Programmer/Secure-Cloud-File-Manager-Encryptor-Bot/internal/cryptox"
	"github.com/young8Programmer/Secure-Cloud-File-Manager-Encryptor-Bot/internal/logging"
)

var (
	testVaultOnce sync.Once
	testVault     *cryptox.KeyVault
)

func sharedVault(t *testing.T) *cryptox.KeyVault {
	t.Helper()
	testVaultOnce.Do(func() {
		v, err := cryptox.NewSingleKeyVault("correct horse battery staple", cryptox.MinIterations)
		if err != nil {
			panic(err)
		}
		testVault = v
	})
	return testVault
}

type harness struct {
	state    *memState
	blobs    *memBlobs
	clock    *fakeClock
	db       *sql.DB
	accounts *AccountService
	quota    *QuotaService
	links    *LinkService
	files    *FileService
	folders  *FolderService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		state: newMemState(),
		blobs: newMemBlobs(),
		clock: newFakeClock(),
		db:    newTxDB(t),
	}
	rm := &memManager{s: h.state}
	logger := logging.Nop()

	h.accounts = NewAccountService(h.db, rm, 100)
	h.quota = NewQuotaService(h.db, rm)
	h.links = NewLinkService(h.db, rm, 5*time.Minute, "https://vault.example/").WithClock(h.clock.Now)
	h.files = NewFileService(h.db, rm, sharedVault(t), h.blobs, h.quota, h.links, logger).WithClock(h.clock.Now)
	h.folders = NewFolderService(h.db, rm, h.files, 64, logger)

	h.state.addAccount("alice", 0, 100)
	h.state.addAccount("bob", 0, 100)
	return h
}

func strPtr(s string) *string { return &s }

func bytesOf(n int, b byte) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = b
	}
	return out
}

