package store

import "database/sql"

const metaAppID = "app_id"

// SetMetadata upserts a key-value pair in the app_metadata table.
func (s *Store) SetMetadata(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO app_metadata (key, value) VALUES ($1, $2)
		 ON CONFLICT(key) DO UPDATE SET value = $2`,
		key, value,
	)
	return err
}

// GetMetadata returns the value for a metadata key.
// Returns empty string and nil error if the key is missing.
func (s *Store) GetMetadata(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM app_metadata WHERE key = $1`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// SetAppID records the deployment/application identifier this database
// serves. Results exported later carry it.
func (s *Store) SetAppID(appID string) error {
	return s.SetMetadata(metaAppID, appID)
}

// AppID reads the recorded deployment identifier.
func (s *Store) AppID() (string, error) {
	return s.GetMetadata(metaAppID)
}
