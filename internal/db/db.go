package db

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// ChangeChannel is the NOTIFY channel the change triggers publish on.
const ChangeChannel = "roomchat_changes"

// Connect opens the database and applies the schema.
func Connect(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

// room_members deliberately has no unique (room_id, user_id) constraint: joins are a
// check-then-insert done by the application.
var migrations = []string{
	`CREATE EXTENSION IF NOT EXISTS pgcrypto;`,
	`CREATE TABLE IF NOT EXISTS rooms (
            id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            name TEXT NOT NULL CHECK (name <> ''),
            description TEXT,
            created_by TEXT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp()
        );`,
	`CREATE TABLE IF NOT EXISTS room_members (
            id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            room_id UUID NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
            user_id TEXT NOT NULL,
            joined_at TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp()
        );`,
	`CREATE INDEX IF NOT EXISTS room_members_room_user_idx ON room_members (room_id, user_id);`,
	`CREATE TABLE IF NOT EXISTS messages (
            id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            room_id UUID NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
            user_id TEXT NOT NULL,
            user_name TEXT NOT NULL,
            user_avatar TEXT,
            content TEXT NOT NULL CHECK (content <> ''),
            created_at TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp()
        );`,
	`CREATE INDEX IF NOT EXISTS messages_room_created_idx ON messages (room_id, created_at);`,
	// Payloads drop the free text columns to stay under the NOTIFY size limit.
	`CREATE OR REPLACE FUNCTION roomchat_notify_change() RETURNS trigger AS $$
        DECLARE
            rec RECORD;
        BEGIN
            IF TG_OP = 'DELETE' THEN
                rec := OLD;
            ELSE
                rec := NEW;
            END IF;
            PERFORM pg_notify('` + ChangeChannel + `', json_build_object(
                'table', TG_TABLE_NAME,
                'op', TG_OP,
                'row', to_jsonb(rec) - 'content' - 'description' - 'name' - 'user_name' - 'user_avatar'
            )::text);
            RETURN rec;
        END;
        $$ LANGUAGE plpgsql;`,
	`DROP TRIGGER IF EXISTS rooms_notify_change ON rooms;`,
	`CREATE TRIGGER rooms_notify_change AFTER INSERT OR UPDATE OR DELETE ON rooms
        FOR EACH ROW EXECUTE FUNCTION roomchat_notify_change();`,
	`DROP TRIGGER IF EXISTS room_members_notify_change ON room_members;`,
	`CREATE TRIGGER room_members_notify_change AFTER INSERT OR UPDATE OR DELETE ON room_members
        FOR EACH ROW EXECUTE FUNCTION roomchat_notify_change();`,
	`DROP TRIGGER IF EXISTS messages_notify_change ON messages;`,
	`CREATE TRIGGER messages_notify_change AFTER INSERT OR UPDATE OR DELETE ON messages
        FOR EACH ROW EXECUTE FUNCTION roomchat_notify_change();`,
}

func runMigrations(db *sqlx.DB) error {
	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}
	log.Println("database migrations applied")
	return nil
}
