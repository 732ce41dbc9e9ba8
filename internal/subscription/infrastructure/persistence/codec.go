package persistence

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	sqlitedb "github.com/sohel7709/pathlab/internal/shared/infrastructure/database/sqlite"
	"github.com/sohel7709/pathlab/internal/subscription/domain"
)

func formatSQLiteTime(t time.Time) string {
	return sqlitedb.FormatTime(t)
}

func parseSQLiteTime(s string) (time.Time, error) {
	return sqlitedb.ParseTime(s)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullUUIDString(id *uuid.UUID) sql.NullString {
	if id == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: id.String(), Valid: true}
}

func parseNullUUID(s sql.NullString) (*uuid.UUID, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	id, err := uuid.Parse(s.String)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func encodeFeatures(features map[string]domain.FeatureValue) ([]byte, error) {
	if features == nil {
		features = map[string]domain.FeatureValue{}
	}
	return json.Marshal(features)
}

func decodeFeatures(raw []byte) (map[string]domain.FeatureValue, error) {
	features := map[string]domain.FeatureValue{}
	if len(raw) == 0 {
		return features, nil
	}
	if err := json.Unmarshal(raw, &features); err != nil {
		return nil, fmt.Errorf("decode plan features: %w", err)
	}
	return features, nil
}

func parsePrice(s string) (decimal.Decimal, error) {
	price, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse plan price %q: %w", s, err)
	}
	return price, nil
}

// expirableStatuses are the statuses the expiry sweep acts on.
var expirableStatuses = []string{string(domain.StatusTrial), string(domain.StatusActive)}
