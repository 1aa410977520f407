package database

// Schema versions, applied in order. Never edit an existing entry; append a new one.
var migrations = []string{
	`
BEGIN;

CREATE TABLE migrations
(
    version int primary key not null,
    created timestamp with time zone not null
);

CREATE TABLE deployment
(
    handle  uuid primary key not null,
    id      text unique not null,
    owner   text not null,
    tags    text[] not null default '{}',
    created timestamp with time zone not null
);

CREATE INDEX deployment_owner_idx ON deployment (owner);

CREATE TABLE deployment_amendment
(
    id      uuid primary key not null,
    seq     bigserial not null,
    ref     uuid not null references deployment (handle) on delete cascade,
    content jsonb not null,
    created timestamp with time zone not null
);

CREATE INDEX deployment_amendment_ref_seq_idx ON deployment_amendment (ref, seq DESC);

INSERT INTO migrations (version, created)
VALUES (1, now());

COMMIT;
`,
}
