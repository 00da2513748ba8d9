package localstore

import (
	"fmt"
	"sort"
)

// Collection names as stored in SQLite.
const (
	CollectionUsers = "users"
	CollectionTasks = "tasks"
	CollectionQueue = "offline_queue"
)

// Migration moves the schema to Version by running Statements in one
// transaction.
type Migration struct {
	Version     int
	Description string
	Statements  []string
}

// Schema is a named, versioned list of migrations.
type Schema struct {
	Name       string
	Migrations []Migration
}

// Latest returns the highest migration version of the schema.
func (s Schema) Latest() int {
	latest := 0
	for _, m := range s.Migrations {
		if m.Version > latest {
			latest = m.Version
		}
	}
	return latest
}

func (s Schema) sorted() ([]Migration, error) {
	migrations := append([]Migration(nil), s.Migrations...)
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })
	for i, m := range migrations {
		if m.Version <= 0 {
			return nil, fmt.Errorf("migration %q: version must be positive", m.Description)
		}
		if i > 0 && migrations[i-1].Version == m.Version {
			return nil, fmt.Errorf("duplicate migration version %d", m.Version)
		}
	}
	return migrations, nil
}

// DefaultSchema is the cache layout used by the client.
var DefaultSchema = Schema{
	Name: "officesync",
	Migrations: []Migration{
		{
			Version:     1,
			Description: "users, tasks and offline queue",
			Statements: []string{
				`CREATE TABLE IF NOT EXISTS users (
					uid TEXT PRIMARY KEY,
					role TEXT NOT NULL DEFAULT 'guest',
					email TEXT NOT NULL DEFAULT '',
					name TEXT NOT NULL DEFAULT '',
					user_id TEXT NOT NULL DEFAULT ''
				)`,
				`CREATE INDEX IF NOT EXISTS idx_users_role ON users(role)`,
				`CREATE INDEX IF NOT EXISTS idx_users_email ON users(email)`,
				`CREATE INDEX IF NOT EXISTS idx_users_name ON users(name)`,
				`CREATE INDEX IF NOT EXISTS idx_users_user_id ON users(user_id)`,
				`CREATE TABLE IF NOT EXISTS tasks (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					task_id TEXT UNIQUE,
					user_id TEXT NOT NULL DEFAULT '',
					title TEXT NOT NULL DEFAULT '',
					status TEXT NOT NULL DEFAULT 'pending',
					created_at TEXT NOT NULL DEFAULT '',
					updated_at TEXT NOT NULL DEFAULT ''
				)`,
				`CREATE INDEX IF NOT EXISTS idx_tasks_user_id ON tasks(user_id)`,
				`CREATE INDEX IF NOT EXISTS idx_tasks_created_at ON tasks(created_at)`,
				`CREATE INDEX IF NOT EXISTS idx_tasks_updated_at ON tasks(updated_at)`,
				`CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status)`,
				`CREATE INDEX IF NOT EXISTS idx_tasks_user_created ON tasks(user_id, created_at)`,
				`CREATE TABLE IF NOT EXISTS offline_queue (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					mutation_id TEXT NOT NULL,
					operation TEXT NOT NULL CHECK(operation IN ('add', 'update', 'delete')),
					entity TEXT NOT NULL,
					entity_id TEXT NOT NULL,
					data TEXT,
					timestamp TEXT NOT NULL
				)`,
				`CREATE INDEX IF NOT EXISTS idx_offline_queue_timestamp ON offline_queue(timestamp, id)`,
			},
		},
		{
			Version:     2,
			Description: "user timestamps",
			Statements: []string{
				`ALTER TABLE users ADD COLUMN created_at TEXT NOT NULL DEFAULT ''`,
				`ALTER TABLE users ADD COLUMN updated_at TEXT NOT NULL DEFAULT ''`,
				`CREATE INDEX IF NOT EXISTS idx_users_updated_at ON users(updated_at)`,
			},
		},
	},
}

// Queryable fields per collection, keyed by record field name.
var (
	userFields = map[string]string{
		"uid":       "uid",
		"role":      "role",
		"email":     "email",
		"name":      "name",
		"userID":    "user_id",
		"updatedAt": "updated_at",
	}
	taskFields = map[string]string{
		"id":        "id",
		"taskId":    "task_id",
		"userId":    "user_id",
		"status":    "status",
		"createdAt": "created_at",
		"updatedAt": "updated_at",
	}
)
