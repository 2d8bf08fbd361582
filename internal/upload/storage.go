package upload

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/semla/internal/apperrors"
)

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9.-]`)

// StoredFile describes an upload after it landed on disk.
type StoredFile struct {
	Filename       string // as sent by the client
	StoredFilename string
	Path           string
	Size           int64
}

// Storage keeps submitted files in a single local directory.
type Storage struct {
	dir      string
	maxBytes int64
	allowed  map[string]struct{}
}

func NewStorage(dir string, maxBytes int64, extensions []string) (*Storage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory %s: %w", dir, err)
	}

	allowed := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		allowed[strings.ToLower(strings.TrimPrefix(ext, "."))] = struct{}{}
	}

	return &Storage{dir: dir, maxBytes: maxBytes, allowed: allowed}, nil
}

func (s *Storage) Dir() string {
	return s.dir
}

func (s *Storage) MaxBytes() int64 {
	return s.maxBytes
}

// Allowed reports whether filename carries an accepted extension.
func (s *Storage) Allowed(filename string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	_, ok := s.allowed[ext]
	return ext != "" && ok
}

// StoredName builds <userID>_<unixmillis>_<uuid8>_<sanitized original>.
func StoredName(userID int64, original string, now time.Time) string {
	base := filepath.Base(strings.ReplaceAll(original, `\`, "/"))
	clean := unsafeChars.ReplaceAllString(base, "_")
	return fmt.Sprintf("%d_%d_%s_%s", userID, now.UnixMilli(), uuid.New().String()[:8], clean)
}

func (s *Storage) Save(userID int64, header *multipart.FileHeader) (*StoredFile, error) {
	if header == nil {
		return nil, apperrors.Validation("No file uploaded.")
	}
	if !s.Allowed(header.Filename) {
		return nil, apperrors.Validation("Invalid file type. Allowed: PDF, DOC, DOCX, TXT, JPG, PNG")
	}
	if header.Size > s.maxBytes {
		return nil, s.tooLarge()
	}

	src, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer src.Close()

	return s.write(userID, header.Filename, src)
}

func (s *Storage) write(userID int64, original string, src io.Reader) (*StoredFile, error) {
	stored := StoredName(userID, original, time.Now())
	dstPath := filepath.Join(s.dir, stored)

	dst, err := os.OpenFile(dstPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create destination file: %w", err)
	}

	// one byte past the limit tells us the client lied about the size
	n, err := io.Copy(dst, io.LimitReader(src, s.maxBytes+1))
	closeErr := dst.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && n > s.maxBytes {
		err = s.tooLarge()
	}
	if err != nil {
		_ = os.Remove(dstPath)
		if errors.Is(err, apperrors.ErrValidation) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to save file content: %w", err)
	}

	logger.Debug.Printf("Stored upload %q as %s (%d bytes)", original, stored, n)

	return &StoredFile{
		Filename:       original,
		StoredFilename: stored,
		Path:           dstPath,
		Size:           n,
	}, nil
}

func (s *Storage) tooLarge() error {
	return apperrors.Validation(fmt.Sprintf("File too large. Maximum size is %s.", humanSize(s.maxBytes)))
}

func humanSize(n int64) string {
	switch {
	case n >= 1<<20 && n%(1<<20) == 0:
		return fmt.Sprintf("%dMB", n>>20)
	case n >= 1<<10 && n%(1<<10) == 0:
		return fmt.Sprintf("%dKB", n>>10)
	default:
		return fmt.Sprintf("%d bytes", n)
	}
}

// Locate returns the on-disk path for a stored filename. Only the base name is
// used so a crafted value cannot leave the upload directory.
func (s *Storage) Locate(storedFilename string) string {
	return filepath.Join(s.dir, filepath.Base(storedFilename))
}

// Remove deletes a stored file. A file that is already gone is not an error.
func (s *Storage) Remove(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(s.Locate(path)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}
