package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"kredilakay/internal/domain"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

func TestValidateLocator(t *testing.T) {
	good := []string{"contract/L-1/20240101/abc.pdf.enc", "a"}
	bad := []string{"", "/abs", "a/../b", "a//b", "./a", `a\b`}
	for _, l := range good {
		if err := ValidateLocator(l); err != nil {
			t.Fatalf("%q: unexpected error %v", l, err)
		}
	}
	for _, l := range bad {
		if err := ValidateLocator(l); err == nil {
			t.Fatalf("%q: expected error", l)
		}
	}
}

func TestLocalPutGetDelete(t *testing.T) {
	root := filepath.Join(t.TempDir(), "vault")
	l, err := NewLocal(root)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	ctx := context.Background()
	locator := "contract/L-1/20240101/x.pdf.enc"
	if err := l.Put(ctx, locator, []byte("cipher")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := l.Put(ctx, locator, []byte("other")); !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists on second put, got %v", err)
	}
	got, err := l.Get(ctx, locator)
	if err != nil || string(got) != "cipher" {
		t.Fatalf("Get: %q %v", got, err)
	}

	info, err := os.Stat(filepath.Join(root, "contract", "L-1", "20240101", "x.pdf.enc"))
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm()&0o007 != 0 {
		t.Fatalf("file is world accessible: %v", info.Mode().Perm())
	}
	dirInfo, err := os.Stat(filepath.Join(root, "contract"))
	if err != nil {
		t.Fatalf("stat dir: %v", err)
	}
	if dirInfo.Mode().Perm()&0o007 != 0 {
		t.Fatalf("dir is world accessible: %v", dirInfo.Mode().Perm())
	}

	if err := l.Delete(ctx, locator); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := l.Get(ctx, locator); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := l.Delete(ctx, locator); err != nil {
		t.Fatalf("second delete should be a no-op: %v", err)
	}
}

func TestLocalRejectsTraversal(t *testing.T) {
	l, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	if err := l.Put(context.Background(), "../escape", []byte("x")); err == nil {
		t.Fatal("expected traversal to be rejected")
	}
}

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    []*s3.PutObjectInput
}

func newFakeS3() *fakeS3 { return &fakeS3{objects: make(map[string][]byte)} }

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = body
	f.puts = append(f.puts, in)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	body, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(body))}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestObjectBackend(t *testing.T) {
	fake := newFakeS3()
	obj, err := NewObject(fake, "custody", "documents", NewMemoryReserver())
	if err != nil {
		t.Fatalf("NewObject: %v", err)
	}
	ctx := context.Background()
	locator := "receipt/L-2/20240101/y.pdf.enc"
	if err := obj.Put(ctx, locator, []byte("blob")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := obj.Put(ctx, locator, []byte("blob2")); !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	if len(fake.puts) != 1 {
		t.Fatalf("expected a single upload, got %d", len(fake.puts))
	}
	put := fake.puts[0]
	if aws.ToString(put.Key) != "documents/"+locator {
		t.Fatalf("unexpected key %s", aws.ToString(put.Key))
	}
	if put.ServerSideEncryption != types.ServerSideEncryptionAes256 || put.ACL != types.ObjectCannedACLPrivate {
		t.Fatalf("upload missing encryption or private acl: %+v", put)
	}
	got, err := obj.Get(ctx, locator)
	if err != nil || string(got) != "blob" {
		t.Fatalf("Get: %q %v", got, err)
	}
	if err := obj.Delete(ctx, locator); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := obj.Get(ctx, locator); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := obj.Put(ctx, locator, []byte("again")); err != nil {
		t.Fatalf("locator should be reusable after delete: %v", err)
	}
}

func TestMemoryReserver(t *testing.T) {
	r := NewMemoryReserver()
	ctx := context.Background()
	ok, _ := r.Reserve(ctx, "k")
	if !ok {
		t.Fatal("first reservation should succeed")
	}
	ok, _ = r.Reserve(ctx, "k")
	if ok {
		t.Fatal("second reservation should fail")
	}
	_ = r.Release(ctx, "k")
	ok, _ = r.Reserve(ctx, "k")
	if !ok {
		t.Fatal("reservation should succeed after release")
	}
}
