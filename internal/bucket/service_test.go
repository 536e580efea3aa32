package bucket

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/nbatyrov/boxstore/internal/batch"
)

func TestCreateBucketProvisionsRemoteFirst(t *testing.T) {
	repo := newFakeRepo()
	remote := &fakeRemote{}
	usage := &fakeUsage{}
	service := NewService(repo, &fakeFiles{}, remote, usage)

	ownerID := uuid.New()
	entry, err := service.Create(context.Background(), ownerID, "documents")
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if entry.Name != "documents" {
		t.Fatalf("expected bucket name documents, got %s", entry.Name)
	}
	if len(entry.ID) == 0 {
		t.Fatalf("expected generated container id")
	}
	if remote.created[entry.ID] != true {
		t.Fatalf("expected remote container %s to be created", entry.ID)
	}
	if usage.apiCalls[ownerID] != 1 {
		t.Fatalf("expected one api call charged, got %d", usage.apiCalls[ownerID])
	}
}

func TestCreateBucketDuplicateName(t *testing.T) {
	repo := newFakeRepo()
	remote := &fakeRemote{}
	service := NewService(repo, &fakeFiles{}, remote, &fakeUsage{})

	ownerID := uuid.New()
	if _, err := service.Create(context.Background(), ownerID, "photos"); err != nil {
		t.Fatalf("unexpected error creating bucket: %v", err)
	}

	if _, err := service.Create(context.Background(), ownerID, "photos"); err != ErrBucketNameExists {
		t.Fatalf("expected ErrBucketNameExists, got %v", err)
	}
	if len(remote.created) != 1 {
		t.Fatalf("expected no second remote container, got %d", len(remote.created))
	}
}

func TestCreateBucketSameNameDifferentOwners(t *testing.T) {
	repo := newFakeRepo()
	service := NewService(repo, &fakeFiles{}, &fakeRemote{}, &fakeUsage{})

	if _, err := service.Create(context.Background(), uuid.New(), "shared"); err != nil {
		t.Fatalf("first owner: %v", err)
	}
	if _, err := service.Create(context.Background(), uuid.New(), "shared"); err != nil {
		t.Fatalf("second owner: %v", err)
	}
}

func TestCreateBucketRemoteFailurePersistsNothing(t *testing.T) {
	repo := newFakeRepo()
	remote := &fakeRemote{createErr: errors.New("remote down")}
	service := NewService(repo, &fakeFiles{}, remote, &fakeUsage{})

	if _, err := service.Create(context.Background(), uuid.New(), "docs"); err == nil {
		t.Fatalf("expected error from remote creation")
	}
	if len(repo.entries) != 0 {
		t.Fatalf("expected no local record after remote failure, got %d", len(repo.entries))
	}
}

func TestDeleteBucketOrder(t *testing.T) {
	repo := newFakeRepo()
	remote := &fakeRemote{}
	files := &fakeFiles{}
	usage := &fakeUsage{}
	service := NewService(repo, files, remote, usage)

	ownerID := uuid.New()
	entry, err := service.Create(context.Background(), ownerID, "temp")
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if err := service.Delete(context.Background(), entry); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}

	if files.emptied[entry.ID] != 1 {
		t.Fatalf("expected file cleanup to run once, got %d", files.emptied[entry.ID])
	}
	if remote.created[entry.ID] {
		t.Fatalf("expected remote container removed")
	}
	if _, err := repo.GetByID(context.Background(), entry.ID); err != ErrBucketNotFound {
		t.Fatalf("expected local record removed, got %v", err)
	}
	if usage.apiCalls[ownerID] != 2 { // create + delete
		t.Fatalf("expected two api calls charged, got %d", usage.apiCalls[ownerID])
	}
}

func TestDeleteBucketFileCleanupFailureStopsDeletion(t *testing.T) {
	repo := newFakeRepo()
	remote := &fakeRemote{}
	files := &fakeFiles{err: errors.New("object store flaked")}
	service := NewService(repo, files, remote, &fakeUsage{})

	ownerID := uuid.New()
	entry, err := service.Create(context.Background(), ownerID, "temp")
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if err := service.Delete(context.Background(), entry); err == nil {
		t.Fatalf("expected delete to fail")
	}
	if _, err := repo.GetByID(context.Background(), entry.ID); err != nil {
		t.Fatalf("expected local record to survive, got %v", err)
	}
	if !remote.created[entry.ID] {
		t.Fatalf("expected remote container to survive")
	}
}

func TestDeleteManyEmptyInputIsNoOp(t *testing.T) {
	repo := newFakeRepo()
	service := NewService(repo, &fakeFiles{}, &fakeRemote{}, &fakeUsage{})

	deleted, err := service.DeleteMany(context.Background(), uuid.New(), nil, batch.CollectAndContinue)
	if err != nil {
		t.Fatalf("DeleteMany returned error: %v", err)
	}
	if deleted != nil {
		t.Fatalf("expected nil result, got %v", deleted)
	}
	if repo.findCalls != 0 {
		t.Fatalf("expected zero store calls, got %d", repo.findCalls)
	}
}

func TestDeleteManyLenientReportsOnlySuccesses(t *testing.T) {
	repo := newFakeRepo()
	remote := &fakeRemote{}
	files := &fakeFiles{failBucket: "doomed"}
	service := NewService(repo, files, remote, &fakeUsage{})

	ownerID := uuid.New()
	good, err := service.Create(context.Background(), ownerID, "good")
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	bad, err := service.Create(context.Background(), ownerID, "doomed")
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	deleted, err := service.DeleteMany(context.Background(), ownerID, []string{good.ID, bad.ID}, batch.CollectAndContinue)
	if err != nil {
		t.Fatalf("DeleteMany returned error: %v", err)
	}
	if len(deleted) != 1 || deleted[0] != good.ID {
		t.Fatalf("expected only %s deleted, got %v", good.ID, deleted)
	}
}

func TestDeleteManyFailFastSurfacesError(t *testing.T) {
	repo := newFakeRepo()
	files := &fakeFiles{failBucket: "doomed"}
	service := NewService(repo, files, &fakeRemote{}, &fakeUsage{})

	ownerID := uuid.New()
	if _, err := service.Create(context.Background(), ownerID, "doomed"); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if _, err := service.DeleteMany(context.Background(), ownerID, []string{"doomed"}, batch.FailFast); err == nil {
		t.Fatalf("expected fail-fast error")
	}
}

// --- fakes ---

type fakeRepo struct {
	mu        sync.Mutex
	entries   map[string]Entry
	findCalls int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{entries: make(map[string]Entry)}
}

func (f *fakeRepo) Insert(ctx context.Context, entry Entry) (Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.OwnerID == entry.OwnerID && e.Name == entry.Name {
			return Entry{}, ErrBucketNameExists
		}
	}
	f.entries[entry.ID] = entry
	return entry, nil
}

func (f *fakeRepo) GetByID(ctx context.Context, id string) (Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[id]
	if !ok {
		return Entry{}, ErrBucketNotFound
	}
	return e, nil
}

func (f *fakeRepo) GetByName(ctx context.Context, ownerID uuid.UUID, name string) (Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.OwnerID == ownerID && e.Name == name {
			return e, nil
		}
	}
	return Entry{}, ErrBucketNotFound
}

func (f *fakeRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Entry
	for _, e := range f.entries {
		if e.OwnerID == ownerID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeRepo) FindByRefs(ctx context.Context, ownerID uuid.UUID, refs []string) ([]Entry, error) {
	f.mu.Lock()
	f.findCalls++
	f.mu.Unlock()
	set := make(map[string]bool, len(refs))
	for _, ref := range refs {
		set[ref] = true
	}
	all, _ := f.ListByOwner(ctx, ownerID)
	var out []Entry
	for _, e := range all {
		if set[e.ID] || set[e.Name] {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeRepo) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.entries[id]; !ok {
		return ErrBucketNotFound
	}
	delete(f.entries, id)
	return nil
}

type fakeRemote struct {
	mu        sync.Mutex
	created   map[string]bool
	createErr error
}

func (f *fakeRemote) CreateContainer(ctx context.Context, containerID string) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.created == nil {
		f.created = make(map[string]bool)
	}
	f.created[containerID] = true
	return nil
}

func (f *fakeRemote) DeleteContainer(ctx context.Context, containerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.created, containerID)
	return nil
}

type fakeFiles struct {
	mu         sync.Mutex
	emptied    map[string]int
	err        error
	failBucket string
}

func (f *fakeFiles) DeleteAllInBucket(ctx context.Context, b Entry) error {
	if f.err != nil {
		return f.err
	}
	if f.failBucket != "" && b.Name == f.failBucket {
		return errors.New("bucket cleanup failed")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.emptied == nil {
		f.emptied = make(map[string]int)
	}
	f.emptied[b.ID]++
	return nil
}

type fakeUsage struct {
	mu       sync.Mutex
	apiCalls map[uuid.UUID]int
}

func (f *fakeUsage) IncrementAPICalls(ctx context.Context, ownerID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.apiCalls == nil {
		f.apiCalls = make(map[uuid.UUID]int)
	}
	f.apiCalls[ownerID]++
	return nil
}
