package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"catalog-cache-go/logcolors"
	"catalog-cache-go/utils"

	log "github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

const bucketName = "cache"

// BoltClient is a disk-backed Client built on BoltDB with an in-memory
// mirror for fast reads. Entries carry their own expiry so TTLs survive
// process restarts.
type BoltClient struct {
	db                 *bolt.DB
	memCache           sync.Map
	dbPath             string
	compressionEnabled bool
}

// boltEntry is the stored envelope (value can be compressed)
type boltEntry struct {
	Value     string `json:"value"`
	ExpiresAt int64  `json:"expiresAt"` // unix seconds, 0 = no expiry
}

func (e boltEntry) expired(now time.Time) bool {
	return e.ExpiresAt > 0 && now.Unix() >= e.ExpiresAt
}

// NewBoltClient opens (or creates) the cache database at dbPath
func NewBoltClient(dbPath string, compressionEnabled bool) (*BoltClient, error) {
	// Create directory if it doesn't exist
	dir := filepath.Dir(dbPath)

	if info, err := os.Stat(dir); err == nil {
		log.Infof("%s Directory %s exists (IsDir: %v)", logcolors.LogCacheInit, dir, info.IsDir())
	} else {
		log.Infof("%s Directory %s does not exist, creating...", logcolors.LogCacheInit, dir)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %v", err)
	}

	// Check if database file already exists
	if info, err := os.Stat(dbPath); err == nil {
		log.Infof("%s Found existing database file at: %s (size: %d bytes)", logcolors.LogCacheInit, dbPath, info.Size())
	} else {
		log.Infof("%s Creating new database file at: %s", logcolors.LogCacheInit, dbPath)
	}

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %v", err)
	}

	// Create bucket if it doesn't exist
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache bucket: %v", err)
	}

	bc := &BoltClient{
		db:                 db,
		dbPath:             dbPath,
		compressionEnabled: compressionEnabled,
	}

	// Load all entries into memory cache
	if err := bc.loadToMemory(); err != nil {
		log.Warnf("%s Failed to preload cache to memory: %v", logcolors.LogCache, err)
	}

	log.Infof("%s Persistent cache initialized at %s (compression: %v)", logcolors.LogCache, dbPath, compressionEnabled)
	return bc, nil
}

// loadToMemory loads all live cache entries from disk to memory
func (bc *BoltClient) loadToMemory() error {
	count := 0
	skipped := 0
	now := time.Now()

	err := bc.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return nil
		}

		return b.ForEach(func(k, v []byte) error {
			var entry boltEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				log.Warnf("%s Failed to unmarshal cache entry for key %s: %v", logcolors.LogCache, string(k), err)
				return nil // Continue to next entry
			}
			if entry.expired(now) {
				skipped++
				return nil
			}
			bc.memCache.Store(string(k), entry)
			count++
			return nil
		})
	})

	if err != nil {
		return err
	}

	log.Infof("%s Loaded %d entries from disk to memory (%d expired, skipped)", logcolors.LogCache, count, skipped)
	return nil
}

// Get retrieves a value (checks memory first, then disk), expiring lazily.
// Returns the decompressed value if compression is enabled.
func (bc *BoltClient) Get(key string) (string, bool, error) {
	// Try memory cache first
	if v, ok := bc.memCache.Load(key); ok {
		entry := v.(boltEntry)
		if entry.expired(time.Now()) {
			bc.Del(key)
			return "", false, nil
		}
		return bc.decode(key, entry.Value)
	}

	// Try disk cache
	var entry boltEntry
	found := false
	err := bc.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket not found")
		}

		data := b.Get([]byte(key))
		if data == nil {
			return nil
		}

		if err := json.Unmarshal(data, &entry); err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return "", false, err
	}
	if !found {
		return "", false, nil
	}

	if entry.expired(time.Now()) {
		bc.Del(key)
		return "", false, nil
	}

	// Repopulate memory cache with the stored (possibly compressed) value
	bc.memCache.Store(key, entry)
	return bc.decode(key, entry.Value)
}

func (bc *BoltClient) decode(key, value string) (string, bool, error) {
	if !bc.compressionEnabled {
		return value, true, nil
	}
	decompressed, err := utils.DecompressString(value)
	if err != nil {
		log.Errorf("%s Error decompressing cache value for key %s: %v", logcolors.LogCache, key, err)
		return "", false, err
	}
	return decompressed, true, nil
}

// Set stores a value with a TTL in both memory and disk.
// Compresses the value if compression is enabled. ttl <= 0 means no expiry.
func (bc *BoltClient) Set(key, value string, ttl time.Duration) error {
	finalValue := value
	if bc.compressionEnabled {
		compressed, err := utils.CompressString(value)
		if err != nil {
			log.Errorf("%s Error compressing cache value for key %s: %v", logcolors.LogCache, key, err)
			return err
		}
		finalValue = compressed
	}

	entry := boltEntry{Value: finalValue}
	if ttl > 0 {
		entry.ExpiresAt = time.Now().Add(ttl).Unix()
	}

	// Store in memory (compressed)
	bc.memCache.Store(key, entry)

	// Store in disk (compressed)
	return bc.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket not found")
		}

		data, err := json.Marshal(entry)
		if err != nil {
			return err
		}

		return b.Put([]byte(key), data)
	})
}

// Del removes a key from both tiers
func (bc *BoltClient) Del(key string) error {
	bc.memCache.Delete(key)

	return bc.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket not found")
		}
		return b.Delete([]byte(key))
	})
}

// Reset removes all entries
func (bc *BoltClient) Reset() error {
	// Clear memory cache
	bc.memCache.Range(func(key, value interface{}) bool {
		bc.memCache.Delete(key)
		return true
	})

	// Clear disk cache
	return bc.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket([]byte(bucketName)); err != nil {
			return err
		}
		_, err := tx.CreateBucket([]byte(bucketName))
		return err
	})
}

// Keys returns all keys currently mirrored in memory
func (bc *BoltClient) Keys() []string {
	var keys []string
	bc.memCache.Range(func(k, v interface{}) bool {
		keys = append(keys, k.(string))
		return true
	})
	return keys
}

// Stats returns cache statistics
func (bc *BoltClient) Stats() (numKeys int, sizeInKB int) {
	bc.memCache.Range(func(k, v interface{}) bool {
		entry := v.(boltEntry)
		numKeys++
		sizeInKB += len(k.(string)) + len(entry.Value)
		return true
	})
	sizeInKB = sizeInKB / 1024
	return
}

// Close closes the database connection
func (bc *BoltClient) Close() error {
	if bc.db != nil {
		return bc.db.Close()
	}
	return nil
}
