// Package local keeps the offline copy of a viewer's session in an embedded
// badger database.
package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/LoadingLlama/relation/application/ports"
	"github.com/LoadingLlama/relation/domain/core/valueobjects"
	"github.com/LoadingLlama/relation/infrastructure/persistence/records"
	pkgerrors "github.com/LoadingLlama/relation/pkg/errors"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

// The three logical keys stored per viewer
const (
	keyIdentity      = "identity"
	keyRelationships = "relationships"
	keyRequests      = "requests"
)

// relationshipSet is the value under the relationships key. It carries the
// counterpart identities so the arena can be restored offline.
type relationshipSet struct {
	Relationships []records.RelationshipRecord `json:"relationships"`
	Identities    []records.IdentityRecord     `json:"identities"`
}

// Options configures the badger database
type Options struct {
	// Dir is the database directory. Empty opens an in-memory database.
	Dir        string
	SyncWrites bool
}

// BadgerStore implements ports.LocalStore
type BadgerStore struct {
	db     *badger.DB
	logger *zap.Logger
}

var _ ports.LocalStore = (*BadgerStore)(nil)

// badgerLogger routes badger's internal logging to zap
type badgerLogger struct {
	logger *zap.SugaredLogger
}

func (l badgerLogger) Errorf(format string, args ...interface{})   { l.logger.Errorf(format, args...) }
func (l badgerLogger) Warningf(format string, args ...interface{}) { l.logger.Warnf(format, args...) }
func (l badgerLogger) Infof(format string, args ...interface{})    { l.logger.Debugf(format, args...) }
func (l badgerLogger) Debugf(format string, args ...interface{})   { l.logger.Debugf(format, args...) }

// NewBadgerStore opens the offline store
func NewBadgerStore(opts Options, logger *zap.Logger) (*BadgerStore, error) {
	var bopts badger.Options
	if opts.Dir == "" {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(opts.Dir, 0o750); err != nil {
			return nil, fmt.Errorf("create offline directory %s: %w", opts.Dir, err)
		}
		bopts = badger.DefaultOptions(opts.Dir)
	}
	bopts = bopts.
		WithSyncWrites(opts.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(badgerLogger{logger: logger.Named("badger").Sugar()})

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &BadgerStore{db: db, logger: logger}, nil
}

// Close releases the database
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func key(viewerID valueobjects.IdentityID, name string) []byte {
	return []byte("offline/" + viewerID.String() + "/" + name)
}

// Save writes the three keys in one transaction
func (s *BadgerStore) Save(ctx context.Context, viewerID valueobjects.IdentityID, snapshot *ports.Snapshot) error {
	if snapshot == nil || snapshot.Identity == nil {
		return pkgerrors.NewValidationError("snapshot has no identity")
	}

	identity, err := json.Marshal(records.FromIdentity(snapshot.Identity))
	if err != nil {
		return fmt.Errorf("marshal identity: %w", err)
	}

	set := relationshipSet{
		Relationships: make([]records.RelationshipRecord, 0, len(snapshot.Relationships)),
		Identities:    make([]records.IdentityRecord, 0, len(snapshot.Identities)),
	}
	for _, rel := range snapshot.Relationships {
		set.Relationships = append(set.Relationships, records.FromRelationship(rel))
	}
	for _, known := range snapshot.Identities {
		set.Identities = append(set.Identities, records.FromIdentity(known))
	}
	relationships, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("marshal relationships: %w", err)
	}

	reqs := make([]records.RequestRecord, 0, len(snapshot.Requests))
	for _, req := range snapshot.Requests {
		reqs = append(reqs, records.FromRequest(req))
	}
	requests, err := json.Marshal(reqs)
	if err != nil {
		return fmt.Errorf("marshal requests: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key(viewerID, keyIdentity), identity); err != nil {
			return err
		}
		if err := txn.Set(key(viewerID, keyRelationships), relationships); err != nil {
			return err
		}
		return txn.Set(key(viewerID, keyRequests), requests)
	})
	if err != nil {
		return fmt.Errorf("write offline snapshot: %w", err)
	}

	s.logger.Debug("Offline snapshot saved",
		zap.String("viewer_id", viewerID.String()),
		zap.Int("relationships", len(set.Relationships)),
		zap.Int("requests", len(reqs)))
	return nil
}

// Load reads a snapshot, NOT_FOUND if the viewer has none
func (s *BadgerStore) Load(ctx context.Context, viewerID valueobjects.IdentityID) (*ports.Snapshot, error) {
	var (
		identity records.IdentityRecord
		set      relationshipSet
		reqs     []records.RequestRecord
	)

	err := s.db.View(func(txn *badger.Txn) error {
		if err := readJSON(txn, key(viewerID, keyIdentity), &identity); err != nil {
			return err
		}
		if err := readJSON(txn, key(viewerID, keyRelationships), &set); err != nil {
			return err
		}
		return readJSON(txn, key(viewerID, keyRequests), &reqs)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, pkgerrors.NewNotFoundError("offline snapshot")
	}
	if err != nil {
		return nil, fmt.Errorf("read offline snapshot: %w", err)
	}

	snapshot := &ports.Snapshot{}
	if snapshot.Identity, err = identity.ToIdentity(); err != nil {
		return nil, err
	}
	if snapshot.Identities, err = records.Identities(set.Identities); err != nil {
		return nil, err
	}
	if snapshot.Relationships, err = records.Relationships(set.Relationships); err != nil {
		return nil, err
	}
	if snapshot.Requests, err = records.Requests(reqs); err != nil {
		return nil, err
	}
	return snapshot, nil
}

// Delete removes the viewer's keys
func (s *BadgerStore) Delete(ctx context.Context, viewerID valueobjects.IdentityID) error {
	return s.db.Update(func(txn *badger.Txn) error {
		for _, name := range []string{keyIdentity, keyRelationships, keyRequests} {
			if err := txn.Delete(key(viewerID, name)); err != nil {
				return err
			}
		}
		return nil
	})
}

func readJSON(txn *badger.Txn, k []byte, target interface{}) error {
	item, err := txn.Get(k)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, target)
	})
}
