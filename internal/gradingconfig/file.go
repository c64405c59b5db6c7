package gradingconfig

// FileRef is an opaque handle to uploaded content plus the name shown to the user.
// Two refs with the same content are still distinct entries.
type FileRef struct {
	Name      string `json:"name" validate:"required"`
	Handle    string `json:"handle" validate:"required"`
	MimeType  string `json:"mime_type,omitempty"`
	SizeBytes int64  `json:"size_bytes,omitempty" validate:"gte=0"`
	Checksum  string `json:"checksum,omitempty"`
}

func cloneFiles(files []FileRef) []FileRef {
	out := make([]FileRef, len(files))
	copy(out, files)
	return out
}

func removeAt(files []FileRef, index int) ([]FileRef, error) {
	if index < 0 || index >= len(files) {
		return files, ErrOutOfRangeIndex
	}
	out := make([]FileRef, 0, len(files)-1)
	out = append(out, files[:index]...)
	return append(out, files[index+1:]...), nil
}
