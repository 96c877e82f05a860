package core

import "bytes"

// fileStore maps names to contents, remembering first-insertion order.
// The binary flag is computed once per write.
// It is not safe for concurrent use; Widget guards it.
type fileStore struct {
	order  []string
	files  map[string][]byte
	binary map[string]bool
}

func newFileStore() *fileStore {
	return &fileStore{files: make(map[string][]byte), binary: make(map[string]bool)}
}

// put inserts or replaces contents. Re-saving a name keeps its position.
// Returns false when the stored contents were already identical.
func (s *fileStore) put(name string, contents []byte) bool {
	if contents == nil {
		contents = []byte{}
	}

	prev, exists := s.files[name]
	if exists && bytes.Equal(prev, contents) {
		return false
	}
	if !exists {
		s.order = append(s.order, name)
	}

	// Copy so later writes to the caller's slice cannot leak in.
	s.files[name] = bytes.Clone(contents)
	s.binary[name] = IsBinary(contents)
	return true
}

// isBinary reports whether the stored contents hold a NUL byte.
func (s *fileStore) isBinary(name string) bool {
	return s.binary[name]
}

func (s *fileStore) get(name string) ([]byte, bool) {
	b, ok := s.files[name]
	return b, ok
}

func (s *fileStore) has(name string) bool {
	_, ok := s.files[name]
	return ok
}

func (s *fileStore) len() int {
	return len(s.order)
}

// list returns the files in insertion order. Contents are shared, not copied.
func (s *fileStore) list() []SubmittedFile {
	out := make([]SubmittedFile, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, SubmittedFile{Name: name, Contents: s.files[name]})
	}
	return out
}

func (s *fileStore) clear() {
	s.order = nil
	s.files = make(map[string][]byte)
	s.binary = make(map[string]bool)
}
