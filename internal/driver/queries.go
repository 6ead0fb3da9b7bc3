package driver

// Units are (:Unit) nodes, links are [:LINK] relationships between them.
// Timestamps are RFC3339 strings; metadata and attributes are JSON strings.

var IndexQueries = []string{
	"CREATE INDEX ON :Unit(uuid);",
	"CREATE INDEX ON :Unit(title);",
}

const (
	CreateUnitQuery = `
		CREATE (u:Unit {uuid: $uuid})
		SET u.title = $title,
			u.content = $content,
			u.type = $type,
			u.metadata = $metadata,
			u.attributes = $attributes,
			u.created_at = $created_at
		RETURN u.uuid AS uuid
	`

	UpdateUnitQuery = `
		MATCH (u:Unit {uuid: $uuid})
		SET u.title = $title,
			u.content = $content,
			u.type = $type,
			u.metadata = $metadata,
			u.attributes = $attributes,
			u.updated_at = $updated_at
		RETURN u.uuid AS uuid
	`

	DeleteUnitQuery = `
		MATCH (u:Unit {uuid: $uuid})
		DETACH DELETE u
		RETURN count(*) AS deleted
	`

	ListUnitsQuery = `
		MATCH (u:Unit)
		RETURN u.uuid AS uuid, u.title AS title, u.content AS content, u.type AS type,
			u.metadata AS metadata, u.attributes AS attributes,
			u.created_at AS created_at, u.updated_at AS updated_at
		ORDER BY u.created_at, u.uuid
	`

	CreateLinkQuery = `
		MATCH (source:Unit {uuid: $source_uuid})
		MATCH (target:Unit {uuid: $target_uuid})
		CREATE (source)-[l:LINK {uuid: $uuid}]->(target)
		SET l.relation = $relation,
			l.description = $description,
			l.metadata = $metadata,
			l.created_at = $created_at
		RETURN l.uuid AS uuid
	`

	UpdateLinkQuery = `
		MATCH (:Unit {uuid: $source_uuid})-[l:LINK {uuid: $uuid}]->(:Unit {uuid: $target_uuid})
		SET l.relation = $relation,
			l.description = $description,
			l.metadata = $metadata,
			l.updated_at = $updated_at
		RETURN l.uuid AS uuid
	`

	DeleteLinkQuery = `
		MATCH ()-[l:LINK {uuid: $uuid}]->()
		DELETE l
		RETURN count(*) AS deleted
	`

	ListLinksQuery = `
		MATCH (source:Unit)-[l:LINK]->(target:Unit)
		RETURN l.uuid AS uuid, source.uuid AS source_uuid, target.uuid AS target_uuid,
			l.relation AS relation, l.description AS description, l.metadata AS metadata,
			l.created_at AS created_at, l.updated_at AS updated_at
		ORDER BY l.created_at, l.uuid
	`
)
