package server

import (
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// uploadStore tracks temp files between the analyze call and the final
// submission. It is process-memory only: restarting the service forgets
// pending uploads, which is acceptable since nothing has been posted yet.
type uploadStore struct {
	mu sync.Mutex
	m  map[string]upload
}

type upload struct {
	path      string
	filename  string
	createdAt time.Time
}

func newUploadStore() *uploadStore {
	return &uploadStore{m: make(map[string]upload)}
}

func (s *uploadStore) Put(path, filename string) string {
	id := uuid.New().String()
	s.mu.Lock()
	s.m[id] = upload{path: path, filename: filename, createdAt: time.Now()}
	s.mu.Unlock()
	return id
}

func (s *uploadStore) Get(id string) (upload, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.m[id]
	return u, ok
}

// Remove forgets the upload and deletes its temp file.
func (s *uploadStore) Remove(id string) {
	s.mu.Lock()
	u, ok := s.m[id]
	delete(s.m, id)
	s.mu.Unlock()
	if ok {
		_ = os.Remove(u.path)
	}
}
