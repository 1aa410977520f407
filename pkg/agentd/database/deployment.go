package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/nais/agentdeploy/pkg/agentd/deployment"
)

var _ Store = &Database{}

func scanRecord(rows pgx.Rows) (deployment.Record, error) {
	var handle string
	var content []byte

	err := rows.Scan(&handle, &content)
	if err != nil {
		return deployment.Record{}, err
	}

	record := deployment.Record{}
	err = json.Unmarshal(content, &record)
	if err != nil {
		return deployment.Record{}, fmt.Errorf("decode deployment %s: %w", handle, err)
	}
	record.Handle = handle

	return record, nil
}

func (db *Database) Fetch(ctx context.Context, filter Filter) ([]deployment.Record, error) {
	query := `
SELECT d.handle::text, a.content
FROM deployment d
JOIN LATERAL (
    SELECT content
    FROM deployment_amendment
    WHERE ref = d.handle
    ORDER BY seq DESC
    LIMIT 1
) a ON true
WHERE (cardinality($1::text[]) = 0 OR d.id = ANY($1))
  AND (cardinality($2::text[]) = 0 OR d.owner = ANY($2))
ORDER BY d.created;
`
	ids := filter.IDs
	if ids == nil {
		ids = []string{}
	}
	owners := filter.Owners
	if owners == nil {
		owners = []string{}
	}

	rows, err := db.timedQuery(ctx, query, ids, owners)
	if err != nil {
		return nil, err
	}

	records := make([]deployment.Record, 0)
	defer rows.Close()
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

// Create writes the document and its initial content in one transaction.
func (db *Database) Create(ctx context.Context, record deployment.Record) (string, error) {
	content, err := json.Marshal(record)
	if err != nil {
		return "", err
	}

	handle := uuid.New().String()
	now := time.Now()

	tx, err := db.conn.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer tx.Rollback(ctx)

	query := `
INSERT INTO deployment (handle, id, owner, tags, created)
VALUES ($1, $2, $3, $4, $5);
`
	err = db.timedExec(ctx, tx, query, handle, record.ID, record.Owner, record.Tags, now)
	if IsErrUniqueViolation(err) {
		return "", fmt.Errorf("%w: %s", ErrDuplicate, record.ID)
	} else if err != nil {
		return "", err
	}

	err = db.insertAmendment(ctx, tx, handle, content, now)
	if err != nil {
		return "", err
	}

	return handle, tx.Commit(ctx)
}

func (db *Database) Amend(ctx context.Context, handle string, record deployment.Record) error {
	content, err := json.Marshal(record)
	if err != nil {
		return err
	}

	tx, err := db.conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = db.insertAmendment(ctx, tx, handle, content, time.Now())
	if IsErrForeignKeyViolation(err) {
		return fmt.Errorf("%w: handle %s", ErrNotFound, handle)
	} else if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (db *Database) insertAmendment(ctx context.Context, tx pgx.Tx, handle string, content []byte, created time.Time) error {
	query := `
INSERT INTO deployment_amendment (id, ref, content, created)
VALUES ($1, $2, $3, $4);
`
	return db.timedExec(ctx, tx, query, uuid.New().String(), handle, content, created)
}
