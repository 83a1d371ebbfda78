// Package document persists finished reports. Each report gets its own
// folder holding report.md and report.json; a saved report is never
// rewritten.
package document

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"
	"github.com/viant/deepresearch/internal/clock"
	"github.com/viant/deepresearch/internal/logging"
	"github.com/viant/deepresearch/model"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
)

const (
	MarkdownFile = "report.md"
	JSONFile     = "report.json"
	// DefaultBaseURL mirrors the reports folder layout of the chat bot setup.
	DefaultBaseURL = "file:///tmp/reports/deepresearch"
	maxSlugLength  = 60
)

var (
	ErrNotFound = errors.New("document: not found")
	// ErrTampered is returned when stored markdown no longer matches its digest.
	ErrTampered = errors.New("document: digest mismatch")
)

// Store persists a validated report and returns its document id. Delete
// withdraws a report whose task never completed.
type Store interface {
	Save(ctx context.Context, doc *model.ReportDocument) (string, error)
	Delete(ctx context.Context, id string) error
}

// Renderer turns a report into markdown.
type Renderer func(doc *model.ReportDocument) (string, error)

// FsStore writes reports with afs, so any afs scheme works.
type FsStore struct {
	baseURL  string
	fs       afs.Service
	renderer Renderer
	mu       sync.Mutex
	logger   *zap.Logger
}

var _ Store = (*FsStore)(nil)

// Save writes report.md and report.json into
// <base>/YYYY-MM-DD--topic-slug[-n]/. Saving the same task again returns the
// existing document id.
func (s *FsStore) Save(ctx context.Context, doc *model.ReportDocument) (string, error) {
	if doc == nil {
		return "", errors.New("document: nil report")
	}
	if err := doc.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *doc
	markdown, err := s.renderer(&stored)
	if err != nil {
		return "", err
	}
	stored.Metadata.Digest = Digest(markdown)

	base := DocumentID(&stored)
	id := base
	for n := 2; ; n++ {
		existing, err := s.load(ctx, id)
		if errors.Is(err, ErrNotFound) {
			break
		}
		if err != nil {
			return "", err
		}
		if existing.Metadata.TaskID != "" && existing.Metadata.TaskID == stored.Metadata.TaskID {
			s.logger.Info("report already stored", zap.String("documentId", id), zap.String("taskId", stored.Metadata.TaskID))
			return id, nil
		}
		id = fmt.Sprintf("%s-%d", base, n)
	}

	data, err := json.MarshalIndent(&stored, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}
	// markdown goes last so a readable report.md implies a complete folder
	if err = s.fs.Upload(ctx, s.path(id, JSONFile), file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("failed to save report %s: %w", id, err)
	}
	if err = s.fs.Upload(ctx, s.path(id, MarkdownFile), file.DefaultFileOsMode, strings.NewReader(markdown)); err != nil {
		return "", fmt.Errorf("failed to save report %s: %w", id, err)
	}
	s.logger.Info("report stored", zap.String("documentId", id), zap.String("digest", stored.Metadata.Digest))
	return id, nil
}

// Delete removes the report folder; a missing report is not an error.
func (s *FsStore) Delete(ctx context.Context, id string) error {
	if id == "" || strings.Contains(id, "..") || strings.Contains(id, "/") {
		return fmt.Errorf("document %q: %w", id, ErrNotFound)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	location := url.Join(s.baseURL, id)
	exists, err := s.fs.Exists(ctx, location)
	if err != nil {
		return fmt.Errorf("failed to check report %s: %w", id, err)
	}
	if !exists {
		return nil
	}
	if err = s.fs.Delete(ctx, location); err != nil {
		return fmt.Errorf("failed to delete report %s: %w", id, err)
	}
	s.logger.Info("report withdrawn", zap.String("documentId", id))
	return nil
}

// Load returns the stored report.
func (s *FsStore) Load(ctx context.Context, id string) (*model.ReportDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx, id)
}

func (s *FsStore) load(ctx context.Context, id string) (*model.ReportDocument, error) {
	if id == "" || strings.Contains(id, "..") {
		return nil, fmt.Errorf("document %q: %w", id, ErrNotFound)
	}
	location := s.path(id, JSONFile)
	exists, err := s.fs.Exists(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("failed to check report %s: %w", id, err)
	}
	if !exists {
		return nil, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	data, err := s.fs.DownloadWithURL(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("failed to read report %s: %w", id, err)
	}
	var ret model.ReportDocument
	if err = json.Unmarshal(data, &ret); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report %s: %w", id, err)
	}
	return &ret, nil
}

// Markdown returns the stored report.md after checking it against the digest.
func (s *FsStore) Markdown(ctx context.Context, id string) (string, error) {
	doc, err := s.Load(ctx, id)
	if err != nil {
		return "", err
	}
	data, err := s.fs.DownloadWithURL(ctx, s.path(id, MarkdownFile))
	if err != nil {
		return "", fmt.Errorf("failed to read report %s: %w", id, err)
	}
	if doc.Metadata.Digest != "" && Digest(string(data)) != doc.Metadata.Digest {
		return "", fmt.Errorf("document %s: %w", id, ErrTampered)
	}
	return string(data), nil
}

// List returns stored document ids, newest first.
func (s *FsStore) List(ctx context.Context) ([]string, error) {
	exists, err := s.fs.Exists(ctx, s.baseURL)
	if err != nil || !exists {
		return nil, err
	}
	objects, err := s.fs.List(ctx, s.baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	var ret []string
	for _, object := range objects {
		if !object.IsDir() || strings.TrimRight(object.URL(), "/") == strings.TrimRight(s.baseURL, "/") {
			continue
		}
		ret = append(ret, object.Name())
	}
	sort.Sort(sort.Reverse(sort.StringSlice(ret)))
	return ret, nil
}

// Location is the URL of the markdown report.
func (s *FsStore) Location(id string) string {
	return s.path(id, MarkdownFile)
}

func (s *FsStore) path(id, name string) string {
	return url.Join(s.baseURL, id, name)
}

// DocumentID is the folder name of a report: research date plus topic slug.
func DocumentID(doc *model.ReportDocument) string {
	date := doc.Metadata.ResearchDate
	if date.IsZero() {
		date = clock.Now()
	}
	topic := doc.Metadata.Topic
	if topic == "" {
		topic = doc.Title
	}
	return date.Format("2006-01-02") + "--" + Slug(topic)
}

// Slug lowercases text and joins its letters and digits with dashes.
func Slug(text string) string {
	var sb strings.Builder
	dash := false
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if dash && sb.Len() > 0 {
				sb.WriteByte('-')
			}
			dash = false
			sb.WriteRune(r)
			continue
		}
		dash = true
	}
	slug := sb.String()
	if runes := []rune(slug); len(runes) > maxSlugLength {
		slug = strings.TrimRight(string(runes[:maxSlugLength]), "-")
	}
	if slug == "" {
		return "report"
	}
	return slug
}

// Digest is the hex blake2b-256 sum of the markdown.
func Digest(markdown string) string {
	sum := blake2b.Sum256([]byte(markdown))
	return hex.EncodeToString(sum[:])
}

// New creates a store rooted at baseURL; scheme-less paths are local files.
func New(baseURL string, renderer Renderer) *FsStore {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if url.Scheme(baseURL, "") == "" {
		baseURL = url.Normalize(path.Clean(baseURL), file.Scheme)
	}
	if renderer == nil {
		renderer = func(doc *model.ReportDocument) (string, error) {
			return "# " + doc.Title + "\n\n" + doc.ExecutiveSummary + "\n", nil
		}
	}
	return &FsStore{
		baseURL:  baseURL,
		fs:       afs.New(),
		renderer: renderer,
		logger:   logging.Named("document"),
	}
}
