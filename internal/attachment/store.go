package attachment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mixelka/mailarchive/internal/database"
	"github.com/mixelka/mailarchive/internal/filename"
	"github.com/mixelka/mailarchive/pkg/models"
)

var (
	// ErrUnsafeFilename is returned when a target name would leave the storage root
	ErrUnsafeFilename = errors.New("unsafe attachment filename")
	// ErrFilenameCollision is returned when a rename target already exists
	ErrFilenameCollision = errors.New("attachment filename already exists")
)

// maxUniqueAttempts bounds the name.N.ext search in Store.
const maxUniqueAttempts = 1000

// Repository records attachment metadata
type Repository interface {
	CreateAttachment(ctx context.Context, att *models.Attachment) error
	ListAttachments(ctx context.Context, ownerID string) ([]models.Attachment, error)
	AttachmentExists(ctx context.Context, ownerID, filename string) (bool, error)
	RenameAttachment(ctx context.Context, ownerID, oldName, newName string) error
}

// Store keeps attachment payloads under root/<owner>/<filename> and their
// metadata in the repository.
type Store struct {
	root   string
	repo   Repository
	logger *slog.Logger
}

// NewStore creates a store rooted at dir
func NewStore(dir string, repo Repository, logger *slog.Logger) (*Store, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve attachments dir: %w", err)
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create attachments dir: %w", err)
	}
	return &Store{
		root:   root,
		repo:   repo,
		logger: logger.With("component", "attachments"),
	}, nil
}

// Root returns the absolute storage root
func (s *Store) Root() string {
	return s.root
}

// Path returns where an attachment's payload lives. The name must be a
// single path element.
func (s *Store) Path(ownerID, name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrUnsafeFilename, name)
	}
	return s.resolve(ownerID, name)
}

// resolve joins name below the owner's directory and refuses anything that
// ends up outside of it.
func (s *Store) resolve(ownerID, name string) (string, error) {
	if ownerID == "" {
		return "", fmt.Errorf("%w: empty owner", ErrUnsafeFilename)
	}
	dir := url.PathEscape(ownerID)
	if dir == "." || dir == ".." {
		return "", fmt.Errorf("%w: owner %q", ErrUnsafeFilename, ownerID)
	}
	ownerDir := filepath.Join(s.root, dir)

	path := filepath.Join(ownerDir, name)
	rel, err := filepath.Rel(ownerDir, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrUnsafeFilename, name)
	}
	return path, nil
}

// Store saves a payload for ownerID and returns the name it was stored
// under. A name already taken becomes name.2.ext, name.3.ext and so on.
func (s *Store) Store(ctx context.Context, ownerID, name string, payload []byte) (string, error) {
	name = filename.Normalize(name)
	if name == "" {
		return "", fmt.Errorf("%w: empty name", ErrUnsafeFilename)
	}

	for n := 1; n <= maxUniqueAttempts; n++ {
		candidate := numberedName(name, n)
		path, err := s.Path(ownerID, candidate)
		if err != nil {
			return "", err
		}

		taken, err := s.taken(ctx, ownerID, candidate, path)
		if err != nil {
			return "", err
		}
		if taken {
			continue
		}

		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return "", fmt.Errorf("failed to create attachment dir: %w", err)
		}
		if err := os.WriteFile(path, payload, 0644); err != nil {
			return "", fmt.Errorf("failed to write attachment: %w", err)
		}

		att := &models.Attachment{OwnerID: ownerID, Filename: candidate, Size: int64(len(payload))}
		if err := s.repo.CreateAttachment(ctx, att); err != nil {
			_ = os.Remove(path)
			if errors.Is(err, database.ErrAlreadyExists) {
				continue
			}
			return "", err
		}

		s.logger.Debug("attachment stored", "id", ownerID, "filename", candidate, "size", att.Size)
		return candidate, nil
	}

	return "", fmt.Errorf("%w: no free name for %q", ErrFilenameCollision, name)
}

// List returns the attachments recorded for ownerID
func (s *Store) List(ctx context.Context, ownerID string) ([]models.Attachment, error) {
	return s.repo.ListAttachments(ctx, ownerID)
}

// Rename moves an attachment to a new name. Targets outside the owner's
// directory and names already in use are refused without touching the
// original.
func (s *Store) Rename(ctx context.Context, ownerID, oldName, newName string) error {
	oldPath, err := s.resolve(ownerID, oldName)
	if err != nil {
		return err
	}
	newPath, err := s.Path(ownerID, newName)
	if err != nil {
		return err
	}

	taken, err := s.taken(ctx, ownerID, newName, newPath)
	if err != nil {
		return err
	}
	if taken {
		return fmt.Errorf("%w: %q", ErrFilenameCollision, newName)
	}

	s.logger.Info("renaming attachment", "id", ownerID, "from", oldName, "to", newName)

	moved := false
	if _, err := os.Stat(oldPath); err == nil {
		if err := os.Rename(oldPath, newPath); err != nil {
			return fmt.Errorf("failed to move attachment file: %w", err)
		}
		moved = true
	}

	if err := s.repo.RenameAttachment(ctx, ownerID, oldName, newName); err != nil {
		if moved {
			if rbErr := os.Rename(newPath, oldPath); rbErr != nil {
				s.logger.Error("failed to restore attachment file", "path", oldPath, "error", rbErr)
			}
		}
		return err
	}
	return nil
}

// FixFilenames re-normalizes the stored attachment names of the given
// messages. Refused renames are logged and skipped.
func (s *Store) FixFilenames(ctx context.Context, ownerIDs []string) (int, error) {
	renamed := 0
	for _, ownerID := range ownerIDs {
		atts, err := s.repo.ListAttachments(ctx, ownerID)
		if err != nil {
			return renamed, err
		}
		for _, att := range atts {
			if filename.IsNormalized(att.Filename) {
				continue
			}
			newName := filename.Normalize(att.Filename)
			if newName == "" {
				s.logger.Warn("attachment name normalizes to nothing", "id", ownerID, "filename", att.Filename)
				continue
			}
			err := s.Rename(ctx, ownerID, att.Filename, newName)
			if errors.Is(err, ErrUnsafeFilename) || errors.Is(err, ErrFilenameCollision) {
				s.logger.Warn("cannot rename attachment", "id", ownerID, "filename", att.Filename, "error", err)
				continue
			}
			if err != nil {
				return renamed, fmt.Errorf("failed to rename attachment of %s: %w", ownerID, err)
			}
			renamed++
		}
	}
	return renamed, nil
}

func (s *Store) taken(ctx context.Context, ownerID, name, path string) (bool, error) {
	exists, err := s.repo.AttachmentExists(ctx, ownerID, name)
	if err != nil {
		return false, err
	}
	if exists {
		return true, nil
	}
	if _, err := os.Lstat(path); err == nil {
		return true, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("failed to stat attachment: %w", err)
	}
	return false, nil
}

// numberedName returns name for n == 1 and base.n.ext otherwise.
func numberedName(name string, n int) string {
	if n == 1 {
		return name
	}
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	if base == "" {
		base, ext = ext, ""
	}
	return base + "." + strconv.Itoa(n) + ext
}
