package store

import (
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

// Table and column names shared by the repositories.
const (
	credentialsTable = "credentials"
	levelEventsTable = "level_events"
	snapshotsTable   = "snapshots"
)

var (
	credentialsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "token", Type: field.TypeString, Size: 4096},
		{Name: "username", Type: field.TypeString, Nullable: true},
		{Name: "updated_at", Type: field.TypeTime},
	}
	credentialsSchema = &schema.Table{
		Name:       credentialsTable,
		Columns:    credentialsColumns,
		PrimaryKey: []*schema.Column{credentialsColumns[0]},
	}

	levelEventsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "sequence", Type: field.TypeInt64, Unique: true},
		{Name: "timestamp", Type: field.TypeTime},
		{Name: "session_id", Type: field.TypeString},
		{Name: "level_id", Type: field.TypeInt},
		{Name: "kind", Type: field.TypeString},
		{Name: "segment", Type: field.TypeInt, Default: -1},
		{Name: "correct", Type: field.TypeBool, Default: false},
		{Name: "detail", Type: field.TypeJSON, Nullable: true},
	}
	levelEventsSchema = &schema.Table{
		Name:       levelEventsTable,
		Columns:    levelEventsColumns,
		PrimaryKey: []*schema.Column{levelEventsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "levelevent_session_id", Columns: []*schema.Column{levelEventsColumns[3]}},
			{Name: "levelevent_level_id_timestamp", Columns: []*schema.Column{levelEventsColumns[4], levelEventsColumns[2]}},
		},
	}

	snapshotsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "sequence", Type: field.TypeInt64},
		{Name: "timestamp", Type: field.TypeTime},
		{Name: "data", Type: field.TypeJSON},
	}
	snapshotsSchema = &schema.Table{
		Name:       snapshotsTable,
		Columns:    snapshotsColumns,
		PrimaryKey: []*schema.Column{snapshotsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "snapshot_timestamp", Columns: []*schema.Column{snapshotsColumns[2]}},
		},
	}

	// tables is every table managed by auto-migration.
	tables = []*schema.Table{
		credentialsSchema,
		levelEventsSchema,
		snapshotsSchema,
	}
)
