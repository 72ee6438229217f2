// Package store keeps rendered reports on disk. Fresh reports land in
// temp_data/ and move to saved_data/ when the user keeps them.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

const (
	TempDir  = "temp_data"
	SavedDir = "saved_data"

	// TimeLayout is the timestamp part of a report filename.
	TimeLayout = "20060102_150405"
)

var (
	ErrBadName   = errors.New("not a report filename")
	ErrNotFound  = errors.New("report not found")
	ErrNotInTemp = errors.New("report is not in temp storage")
)

var filenameRe = regexp.MustCompile(`^([A-Z][A-Z.]*)_data_(\d{8}_\d{6})\.(html|json)$`)

// Report describes one stored artifact.
type Report struct {
	Name   string    `json:"name"`
	Symbol string    `json:"symbol"`
	Time   time.Time `json:"time"`
	Format string    `json:"format"`
	Saved  bool      `json:"saved"`
	Size   int64     `json:"size"`
}

// Filename builds {SYMBOL}_data_{YYYYMMDD_HHMMSS}.{ext} in t's own zone.
func Filename(symbol string, t time.Time, ext string) string {
	return fmt.Sprintf("%s_data_%s.%s", strings.ToUpper(symbol), t.Format(TimeLayout), strings.TrimPrefix(ext, "."))
}

// ParseFilename recovers the symbol, time and format from a report name.
// The time has no zone information and is returned as UTC.
func ParseFilename(name string) (Report, error) {
	m := filenameRe.FindStringSubmatch(name)
	if m == nil {
		return Report{}, fmt.Errorf("%w: %q", ErrBadName, name)
	}
	t, err := time.Parse(TimeLayout, m[2])
	if err != nil {
		return Report{}, fmt.Errorf("%w: %q: %v", ErrBadName, name, err)
	}
	return Report{Name: name, Symbol: m[1], Time: t, Format: m[3]}, nil
}

// Store is rooted at a data directory holding temp_data/ and saved_data/.
type Store struct {
	root string
}

func New(root string) *Store {
	return &Store{root: root}
}

func (s *Store) dir(saved bool) string {
	if saved {
		return filepath.Join(s.root, SavedDir)
	}
	return filepath.Join(s.root, TempDir)
}

// Path is where name lives in temp or saved storage.
func (s *Store) Path(name string, saved bool) string {
	return filepath.Join(s.dir(saved), name)
}

// WriteFile writes body to path via a temporary file, creating parent directories.
func WriteFile(path string, body []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, body, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// WriteTemp stores a new report in temp storage and returns its path.
func (s *Store) WriteTemp(name string, body []byte) (string, error) {
	if _, err := ParseFilename(name); err != nil {
		return "", err
	}
	path := s.Path(name, false)
	if err := WriteFile(path, body); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	return path, nil
}

func (s *Store) scan(saved bool) ([]Report, error) {
	entries, err := os.ReadDir(s.dir(saved))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []Report
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		r, err := ParseFilename(e.Name())
		if err != nil {
			continue
		}
		r.Saved = saved
		if info, err := e.Info(); err == nil {
			r.Size = info.Size()
		}
		out = append(out, r)
	}
	return out, nil
}

// List returns every report in both locations, newest first. Files whose
// names do not parse are ignored.
func (s *Store) List() ([]Report, error) {
	temp, err := s.scan(false)
	if err != nil {
		return nil, fmt.Errorf("list temp: %w", err)
	}
	saved, err := s.scan(true)
	if err != nil {
		return nil, fmt.Errorf("list saved: %w", err)
	}
	all := append(temp, saved...)
	sort.SliceStable(all, func(i, j int) bool {
		if !all[i].Time.Equal(all[j].Time) {
			return all[i].Time.After(all[j].Time)
		}
		return all[i].Name < all[j].Name
	})
	return all, nil
}

// Save moves a temp report into saved storage, replacing any saved report
// of the same name.
func (s *Store) Save(name string) (string, error) {
	if _, err := ParseFilename(name); err != nil {
		return "", err
	}
	from := s.Path(name, false)
	if _, err := os.Stat(from); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotInTemp, name)
		}
		return "", err
	}
	to := s.Path(name, true)
	if err := os.MkdirAll(filepath.Dir(to), 0755); err != nil {
		return "", err
	}
	if err := os.Rename(from, to); err != nil {
		return "", fmt.Errorf("save %s: %w", name, err)
	}
	return to, nil
}

// locate prefers saved storage over temp.
func (s *Store) locate(name string) (string, bool, error) {
	if _, err := ParseFilename(name); err != nil {
		return "", false, err
	}
	for _, saved := range []bool{true, false} {
		p := s.Path(name, saved)
		if _, err := os.Stat(p); err == nil {
			return p, saved, nil
		}
	}
	return "", false, fmt.Errorf("%w: %s", ErrNotFound, name)
}

// Read returns a report's bytes from whichever location holds it.
func (s *Store) Read(name string) ([]byte, Report, error) {
	path, saved, err := s.locate(name)
	if err != nil {
		return nil, Report{}, err
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, Report{}, err
	}
	r, _ := ParseFilename(name)
	r.Saved = saved
	r.Size = int64(len(body))
	return body, r, nil
}

// Delete removes a report from whichever location holds it.
func (s *Store) Delete(name string) error {
	path, _, err := s.locate(name)
	if err != nil {
		return err
	}
	return os.Remove(path)
}
