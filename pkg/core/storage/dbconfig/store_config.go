/*
Package dbconfig is a micropackage that contains storage DB configuration options.
*/
package dbconfig

type (
	// DBConfiguration describes configuration for DB. Supported types:
	// [LevelDB], [BoltDB] or [InMemoryDB] (not recommended for production usage).
	// Any of them can be wrapped into an LRU read cache by setting CacheSize.
	DBConfiguration struct {
		Type           string         `yaml:"Type"`
		LevelDBOptions LevelDBOptions `yaml:"LevelDBOptions"`
		BoltDBOptions  BoltDBOptions  `yaml:"BoltDBOptions"`
		// CacheSize is the number of records kept in the read cache, zero
		// disables caching.
		CacheSize int `yaml:"CacheSize"`
	}
	// LevelDBOptions configuration for LevelDB.
	LevelDBOptions struct {
		DataDirectoryPath string `yaml:"DataDirectoryPath"`
		ReadOnly          bool   `yaml:"ReadOnly"`
		// WriteBufferSize overrides goleveldb default when positive.
		WriteBufferSize int `yaml:"WriteBufferSize"`
		// OpenFilesCacheCapacity overrides goleveldb default when positive.
		OpenFilesCacheCapacity int `yaml:"OpenFilesCacheCapacity"`
	}
	// BoltDBOptions configuration for BoltDB.
	BoltDBOptions struct {
		FilePath string `yaml:"FilePath"`
		ReadOnly bool   `yaml:"ReadOnly"`
	}
)

// Storage engine names accepted in DBConfiguration.Type.
const (
	// BoltDB is the name of bbolt-backed storage.
	BoltDB = "boltdb"
	// LevelDB is the name of goleveldb-backed storage.
	LevelDB = "leveldb"
	// InMemoryDB is the name of in-memory storage.
	InMemoryDB = "inmemory"
)
