// Package codecache persists installed target methods in LevelDB.
package codecache

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/beehive-lab/Maxine-VM-sub091/compilation"
	"github.com/beehive-lab/Maxine-VM-sub091/log"
	"github.com/syndtr/goleveldb/leveldb"
	leveldbstorage "github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
	"golang.org/x/crypto/blake2b"
)

const keyPrefix = "tm/"

// Record is the stored form of one target method.
type Record struct {
	Method    string `json:"method"`
	Directive string `json:"directive"`
	Serial    int    `json:"serial"`
	Compiler  string `json:"compiler"`
	Tier      string `json:"tier"`
	Size      int    `json:"size"`
	Hash      string `json:"hash"`
	Code      []byte `json:"code"`
}

// Key is "tm/<method>/<directive>/<serial>", serial zero padded so keys sort
// in installation order.
func Key(method, directive string, serial int) []byte {
	return []byte(fmt.Sprintf("%s%s/%s/%08d", keyPrefix, method, directive, serial))
}

// Hash is the hex BLAKE2b-256 digest of code.
func Hash(code []byte) string {
	sum := blake2b.Sum256(code)
	return hex.EncodeToString(sum[:])
}

// Store wraps LevelDB. LevelDB handles its own synchronization.
type Store struct {
	db *leveldb.DB
}

// Open opens or creates a store at path; an empty path keeps it in memory.
func Open(path string) (*Store, error) {
	var (
		db  *leveldb.DB
		err error
	)
	if path == "" {
		db, err = leveldb.Open(leveldbstorage.NewMemStorage(), nil)
	} else {
		db, err = leveldb.OpenFile(path, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open code cache at %q: %w", path, err)
	}
	return &Store{db: db}, nil
}

// NewRecord describes tm.
func NewRecord(tm *compilation.TargetMethod) Record {
	return Record{
		Method:    tm.Method.Name,
		Directive: tm.Directive.String(),
		Serial:    tm.Serial,
		Compiler:  tm.Compiler,
		Tier:      tm.Tier.String(),
		Size:      len(tm.Code),
		Hash:      Hash(tm.Code),
		Code:      tm.Code,
	}
}

// Installed records tm. It satisfies compilation.InstallObserver.
func (s *Store) Installed(tm *compilation.TargetMethod) error {
	return s.Put(NewRecord(tm))
}

func (s *Store) Put(rec Record) error {
	value, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	key := Key(rec.Method, rec.Directive, rec.Serial)
	if err := s.db.Put(key, value, nil); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	log.Debug(log.CodeCache, "stored target method", "key", string(key), "hash", rec.Hash)
	return nil
}

// Get returns the record for one history entry. Returns (Record{}, false, nil)
// if not found.
func (s *Store) Get(method, directive string, serial int) (Record, bool, error) {
	key := Key(method, directive, serial)
	value, err := s.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("get %s: %w", key, err)
	}
	var rec Record
	if err := json.Unmarshal(value, &rec); err != nil {
		return Record{}, false, fmt.Errorf("decode %s: %w", key, err)
	}
	return rec, true, nil
}

// History returns every record of method, grouped by directive and in
// installation order within a directive.
func (s *Store) History(method string) ([]Record, error) {
	return s.scan(keyPrefix+method+"/", func(rec Record) bool { return rec.Method == method })
}

// All returns every stored record in key order.
func (s *Store) All() ([]Record, error) {
	return s.scan(keyPrefix, func(Record) bool { return true })
}

func (s *Store) scan(prefix string, keep func(Record) bool) ([]Record, error) {
	iter := s.db.NewIterator(util.BytesPrefix([]byte(prefix)), nil)
	defer iter.Release()

	var out []Record
	for iter.Next() {
		var rec Record
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			return nil, fmt.Errorf("decode %s: %w", iter.Key(), err)
		}
		if keep(rec) {
			out = append(out, rec)
		}
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", prefix, err)
	}
	return out, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
