package database

import (
	"context"
	"fmt"

	"github.com/wso2/consent-ledger-api/internal/config"
)

// schemaStatements creates the consent ledger tables. Every statement is
// idempotent so the schema can be applied on each start.
var schemaStatements = []DBQuery{
	{
		ID: "CREATE_CONSENT_LEDGER",
		Query: `CREATE TABLE IF NOT EXISTS CONSENT_LEDGER (
	SEQ_ID BIGINT NOT NULL AUTO_INCREMENT,
	CONSENT_ID VARCHAR(64) NOT NULL,
	SUBJECT_ID VARCHAR(255) NOT NULL,
	CONSENT_TYPE VARCHAR(255) NOT NULL,
	PURPOSE VARCHAR(1024) NOT NULL,
	POLICY_VERSION VARCHAR(255) NOT NULL,
	STATUS VARCHAR(16) NOT NULL,
	CREATED_TIME BIGINT NOT NULL,
	REVOKED_TIME BIGINT NULL,
	PREVIOUS_CONSENT_ID VARCHAR(64) NULL,
	PRIMARY KEY (SEQ_ID),
	CONSTRAINT UQ_CONSENT_LEDGER_ID UNIQUE (CONSENT_ID),
	CONSTRAINT UQ_CONSENT_LEDGER_SUCCESSOR UNIQUE (PREVIOUS_CONSENT_ID),
	CONSTRAINT FK_CONSENT_LEDGER_PREVIOUS FOREIGN KEY (PREVIOUS_CONSENT_ID) REFERENCES CONSENT_LEDGER (CONSENT_ID),
	CONSTRAINT CK_CONSENT_LEDGER_STATUS CHECK (
		(STATUS = 'granted' AND REVOKED_TIME IS NULL) OR
		(STATUS = 'revoked' AND REVOKED_TIME IS NOT NULL)
	),
	INDEX IDX_CONSENT_LEDGER_SUBJECT (SUBJECT_ID, CREATED_TIME),
	INDEX IDX_CONSENT_LEDGER_CREATED (CREATED_TIME)
) ENGINE=InnoDB`,
		SQLiteQuery: `CREATE TABLE IF NOT EXISTS CONSENT_LEDGER (
	SEQ_ID INTEGER PRIMARY KEY AUTOINCREMENT,
	CONSENT_ID TEXT NOT NULL UNIQUE,
	SUBJECT_ID TEXT NOT NULL,
	CONSENT_TYPE TEXT NOT NULL,
	PURPOSE TEXT NOT NULL,
	POLICY_VERSION TEXT NOT NULL,
	STATUS TEXT NOT NULL,
	CREATED_TIME INTEGER NOT NULL,
	REVOKED_TIME INTEGER NULL,
	PREVIOUS_CONSENT_ID TEXT NULL UNIQUE REFERENCES CONSENT_LEDGER (CONSENT_ID),
	CHECK (
		(STATUS = 'granted' AND REVOKED_TIME IS NULL) OR
		(STATUS = 'revoked' AND REVOKED_TIME IS NOT NULL)
	)
)`,
	},
	{
		ID:          "CREATE_CONSENT_LEDGER_SUBJECT_INDEX",
		SQLiteQuery: `CREATE INDEX IF NOT EXISTS IDX_CONSENT_LEDGER_SUBJECT ON CONSENT_LEDGER (SUBJECT_ID, CREATED_TIME)`,
	},
	{
		ID:          "CREATE_CONSENT_LEDGER_CREATED_INDEX",
		SQLiteQuery: `CREATE INDEX IF NOT EXISTS IDX_CONSENT_LEDGER_CREATED ON CONSENT_LEDGER (CREATED_TIME)`,
	},
	{
		ID: "CREATE_CONSENT_LEDGER_UPDATE_TRIGGER",
		Query: `CREATE TRIGGER IF NOT EXISTS TRG_CONSENT_LEDGER_BEFORE_UPDATE
BEFORE UPDATE ON CONSENT_LEDGER FOR EACH ROW
BEGIN
	IF NEW.SEQ_ID <> OLD.SEQ_ID OR NEW.CONSENT_ID <> OLD.CONSENT_ID OR
	   NEW.SUBJECT_ID <> OLD.SUBJECT_ID OR NEW.CONSENT_TYPE <> OLD.CONSENT_TYPE OR
	   NEW.PURPOSE <> OLD.PURPOSE OR NEW.POLICY_VERSION <> OLD.POLICY_VERSION OR
	   NEW.CREATED_TIME <> OLD.CREATED_TIME OR
	   NOT (NEW.PREVIOUS_CONSENT_ID <=> OLD.PREVIOUS_CONSENT_ID) THEN
		SIGNAL SQLSTATE '45000' SET MESSAGE_TEXT = 'consent record fields are immutable';
	END IF;
	IF NOT (OLD.STATUS = 'granted' AND NEW.STATUS = 'revoked') THEN
		SIGNAL SQLSTATE '45000' SET MESSAGE_TEXT = 'only the granted to revoked transition is allowed';
	END IF;
END`,
		SQLiteQuery: `CREATE TRIGGER IF NOT EXISTS TRG_CONSENT_LEDGER_BEFORE_UPDATE
BEFORE UPDATE ON CONSENT_LEDGER FOR EACH ROW
WHEN NEW.SEQ_ID IS NOT OLD.SEQ_ID OR NEW.CONSENT_ID IS NOT OLD.CONSENT_ID OR
	NEW.SUBJECT_ID IS NOT OLD.SUBJECT_ID OR NEW.CONSENT_TYPE IS NOT OLD.CONSENT_TYPE OR
	NEW.PURPOSE IS NOT OLD.PURPOSE OR NEW.POLICY_VERSION IS NOT OLD.POLICY_VERSION OR
	NEW.CREATED_TIME IS NOT OLD.CREATED_TIME OR
	NEW.PREVIOUS_CONSENT_ID IS NOT OLD.PREVIOUS_CONSENT_ID OR
	NOT (OLD.STATUS = 'granted' AND NEW.STATUS = 'revoked')
BEGIN
	SELECT RAISE(ABORT, 'consent record is immutable except for the granted to revoked transition');
END`,
	},
	{
		ID: "CREATE_CONSENT_LEDGER_DELETE_TRIGGER",
		Query: `CREATE TRIGGER IF NOT EXISTS TRG_CONSENT_LEDGER_BEFORE_DELETE
BEFORE DELETE ON CONSENT_LEDGER FOR EACH ROW
BEGIN
	SIGNAL SQLSTATE '45000' SET MESSAGE_TEXT = 'consent records cannot be deleted';
END`,
		SQLiteQuery: `CREATE TRIGGER IF NOT EXISTS TRG_CONSENT_LEDGER_BEFORE_DELETE
BEFORE DELETE ON CONSENT_LEDGER FOR EACH ROW
BEGIN
	SELECT RAISE(ABORT, 'consent records cannot be deleted');
END`,
	},
	{
		ID: "CREATE_CONSENT_STATUS_AUDIT",
		Query: `CREATE TABLE IF NOT EXISTS CONSENT_STATUS_AUDIT (
	SEQ_ID BIGINT NOT NULL AUTO_INCREMENT,
	STATUS_AUDIT_ID VARCHAR(64) NOT NULL,
	CONSENT_ID VARCHAR(64) NOT NULL,
	CURRENT_STATUS VARCHAR(16) NOT NULL,
	PREVIOUS_STATUS VARCHAR(16) NULL,
	ACTION_TIME BIGINT NOT NULL,
	ACTION_BY VARCHAR(255) NULL,
	REASON VARCHAR(1024) NULL,
	PRIMARY KEY (SEQ_ID),
	CONSTRAINT UQ_CONSENT_STATUS_AUDIT_ID UNIQUE (STATUS_AUDIT_ID),
	CONSTRAINT FK_CONSENT_STATUS_AUDIT_CONSENT FOREIGN KEY (CONSENT_ID) REFERENCES CONSENT_LEDGER (CONSENT_ID),
	INDEX IDX_CONSENT_STATUS_AUDIT_CONSENT (CONSENT_ID, ACTION_TIME)
) ENGINE=InnoDB`,
		SQLiteQuery: `CREATE TABLE IF NOT EXISTS CONSENT_STATUS_AUDIT (
	SEQ_ID INTEGER PRIMARY KEY AUTOINCREMENT,
	STATUS_AUDIT_ID TEXT NOT NULL UNIQUE,
	CONSENT_ID TEXT NOT NULL REFERENCES CONSENT_LEDGER (CONSENT_ID),
	CURRENT_STATUS TEXT NOT NULL,
	PREVIOUS_STATUS TEXT NULL,
	ACTION_TIME INTEGER NOT NULL,
	ACTION_BY TEXT NULL,
	REASON TEXT NULL
)`,
	},
	{
		ID:          "CREATE_CONSENT_STATUS_AUDIT_INDEX",
		SQLiteQuery: `CREATE INDEX IF NOT EXISTS IDX_CONSENT_STATUS_AUDIT_CONSENT ON CONSENT_STATUS_AUDIT (CONSENT_ID, ACTION_TIME)`,
	},
}

// ApplySchema creates the ledger tables, indexes and guard triggers if they
// do not exist yet.
func (db *DB) ApplySchema(ctx context.Context) error {
	applied := 0
	for _, stmt := range schemaStatements {
		query := stmt.GetQuery(db.dialect)
		if db.dialect != config.DatabaseTypeSQLite && stmt.Query == "" {
			// sqlite-only statement; the mysql table definition carries its indexes
			continue
		}
		if _, err := db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to apply schema statement %s: %w", stmt.ID, err)
		}
		applied++
	}

	db.logger.WithField("statements", applied).Info("Database schema applied")
	return nil
}
