package backup

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dukerupert/grocer/internal/database"
	"github.com/dukerupert/grocer/internal/model"
	"github.com/dukerupert/grocer/internal/store"
)

type memS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newMemS3() *memS3 {
	return &memS3{objects: make(map[string][]byte)}
}

func (m *memS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.objects[*in.Key] = data
	m.mu.Unlock()
	return &s3.PutObjectOutput{}, nil
}

func (m *memS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[*in.Key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSealOpen(t *testing.T) {
	plaintext := []byte("SQLite format 3\x00 and then some pages")

	sealed, err := seal(plaintext, "correct horse")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if bytes.Contains(sealed, plaintext) {
		t.Error("sealed output contains the plaintext")
	}

	got, err := open(sealed, "correct horse")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Errorf("open = %q, want %q", got, plaintext)
	}

	if _, err := open(sealed, "wrong"); !errors.Is(err, ErrBadPassphrase) {
		t.Errorf("wrong passphrase: err = %v, want ErrBadPassphrase", err)
	}
	if _, err := open(sealed[:10], "correct horse"); err == nil {
		t.Error("expected error for truncated snapshot")
	}

	again, _ := seal(plaintext, "correct horse")
	if bytes.Equal(again[:saltSize], sealed[:saltSize]) {
		t.Error("expected a fresh salt per snapshot")
	}
}

func TestConfigEnabled(t *testing.T) {
	full := Config{Bucket: "b", AccessKey: "a", SecretKey: "s", Passphrase: "p"}
	if !full.Enabled() {
		t.Error("expected full config to be enabled")
	}
	noPass := full
	noPass.Passphrase = ""
	if noPass.Enabled() {
		t.Error("expected config without passphrase to be disabled")
	}
	if _, err := New(nil, noPass, testLogger()); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("New: err = %v, want ErrNotConfigured", err)
	}
}

func TestRunAndRestore(t *testing.T) {
	dir := t.TempDir()
	db, err := database.Open(filepath.Join(dir, "live.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	name := "alice"
	created, err := store.NewCustomerStore(db).Create(model.CustomerFields{Username: &name})
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}

	client := newMemS3()
	b := newBackup(db, client, Config{Bucket: "grocer", Prefix: "nightly", Passphrase: "pw"}, testLogger())
	b.now = func() time.Time { return time.Date(2026, 10, 17, 3, 0, 0, 0, time.UTC) }

	key, err := b.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if key != "nightly/grocer-2026-10-17T030000Z.db.enc" {
		t.Errorf("key = %q", key)
	}

	dst := filepath.Join(dir, "restored.db")
	if err := b.Restore(context.Background(), key, dst); err != nil {
		t.Fatalf("restore: %v", err)
	}

	restored, err := database.Open(dst)
	if err != nil {
		t.Fatalf("open restored: %v", err)
	}
	defer restored.Close()

	got, err := store.NewCustomerStore(restored).GetByID(created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.Username != "alice" {
		t.Errorf("restored customer = %+v", got)
	}
}

func TestRestoreWrongPassphrase(t *testing.T) {
	dir := t.TempDir()
	db, err := database.Open(filepath.Join(dir, "live.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	client := newMemS3()
	key, err := newBackup(db, client, Config{Bucket: "grocer", Passphrase: "right"}, testLogger()).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	other := newBackup(db, client, Config{Bucket: "grocer", Passphrase: "wrong"}, testLogger())
	err = other.Restore(context.Background(), key, filepath.Join(dir, "restored.db"))
	if !errors.Is(err, ErrBadPassphrase) {
		t.Errorf("err = %v, want ErrBadPassphrase", err)
	}
}

func TestRunUploadFailure(t *testing.T) {
	db, err := database.Open(filepath.Join(t.TempDir(), "live.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	client := newMemS3()
	client.putErr = errors.New("access denied")
	_, err = newBackup(db, client, Config{Bucket: "grocer", Passphrase: "pw"}, testLogger()).Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "access denied") {
		t.Errorf("err = %v, want upload failure", err)
	}
}
