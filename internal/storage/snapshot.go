package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const (
	ArticlesFile = "articles.json"
	UsersFile    = "users.json"
)

type articlesDocument struct {
	Articles []Article `json:"articles"`
}

type usersDocument struct {
	Users []Member `json:"users"`
}

// Snapshots reads and writes the persisted aggregate and member list.
type Snapshots struct {
	dir string
}

func NewSnapshots(dir string) *Snapshots {
	return &Snapshots{dir: dir}
}

func (s *Snapshots) Dir() string {
	return s.dir
}

func (s *Snapshots) ArticlesPath() string {
	return filepath.Join(s.dir, ArticlesFile)
}

func (s *Snapshots) UsersPath() string {
	return filepath.Join(s.dir, UsersFile)
}

// LoadArticles returns the persisted aggregate. ok is false when no
// snapshot file exists; a file that cannot be decoded is an error.
func (s *Snapshots) LoadArticles() (articles []Article, ok bool, err error) {
	var doc articlesDocument
	ok, err = readJSON(s.ArticlesPath(), &doc)
	if !ok || err != nil {
		return nil, ok, err
	}
	return doc.Articles, true, nil
}

func (s *Snapshots) SaveArticles(articles []Article) error {
	if articles == nil {
		articles = []Article{}
	}
	return writeJSON(s.ArticlesPath(), articlesDocument{Articles: articles})
}

// LoadUsers returns the persisted member list. ok is false when no
// snapshot file exists.
func (s *Snapshots) LoadUsers() (users []Member, ok bool, err error) {
	var doc usersDocument
	ok, err = readJSON(s.UsersPath(), &doc)
	if !ok || err != nil {
		return nil, ok, err
	}
	return doc.Users, true, nil
}

func (s *Snapshots) SaveUsers(users []Member) error {
	if users == nil {
		users = []Member{}
	}
	return writeJSON(s.UsersPath(), usersDocument{Users: users})
}

func readJSON(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return true, fmt.Errorf("decoding %s: %w", path, err)
	}
	return true, nil
}

// writeJSON replaces path atomically so readers never observe a partial file.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
