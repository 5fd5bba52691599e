package db

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/shojbahmed330/oneclick-studio/models"
)

var ErrProjectNotFound = errors.New("project not found")

type DB struct {
	badgerDB *badger.DB
}

func New(dbPath string) (*DB, error) {
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = nil // Disable badger logging for cleaner output

	badgerDB, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &DB{badgerDB: badgerDB}, nil
}

func (d *DB) Close() error {
	return d.badgerDB.Close()
}

func projectKey(userID, projectID string) []byte {
	return []byte(fmt.Sprintf("project:%s:%s", userID, projectID))
}

func (d *DB) SaveProject(project *models.Project) error {
	data, err := json.Marshal(project)
	if err != nil {
		return fmt.Errorf("failed to marshal project: %w", err)
	}
	return d.badgerDB.Update(func(txn *badger.Txn) error {
		return txn.Set(projectKey(project.UserID, project.ID), data)
	})
}

func (d *DB) GetProject(userID, projectID string) (*models.Project, error) {
	var project models.Project

	err := d.badgerDB.View(func(txn *badger.Txn) error {
		item, err := txn.Get(projectKey(userID, projectID))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrProjectNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &project)
		})
	})
	if err != nil {
		return nil, err
	}
	return &project, nil
}

func (d *DB) ListProjects(userID string) ([]*models.Project, error) {
	var projects []*models.Project

	err := d.badgerDB.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(fmt.Sprintf("project:%s:", userID))
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var project models.Project
				if err := json.Unmarshal(val, &project); err != nil {
					return err
				}
				projects = append(projects, &project)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Newest first
	sort.Slice(projects, func(i, j int) bool {
		return projects[i].UpdatedAt > projects[j].UpdatedAt
	})
	return projects, nil
}

func (d *DB) DeleteProject(userID, projectID string) error {
	return d.badgerDB.Update(func(txn *badger.Txn) error {
		err := txn.Delete(projectKey(userID, projectID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrProjectNotFound
		}
		return err
	})
}

// ListProjectIDs returns the IDs of every stored project for the user, without
// unmarshaling full records.
func (d *DB) ListProjectIDs(userID string) ([]string, error) {
	var ids []string
	prefix := fmt.Sprintf("project:%s:", userID)

	err := d.badgerDB.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key())
			ids = append(ids, strings.TrimPrefix(key, prefix))
		}
		return nil
	})
	return ids, err
}
