// Package configuration manages per-user vendor configurations. Each
// configuration carries vendor-specific settings that reference secrets by
// ID; plaintext credentials never touch this table.
package configuration

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vnmchuo/vendor-spend/internal/costs"
	"github.com/vnmchuo/vendor-spend/internal/vendors"
	"github.com/vnmchuo/vendor-spend/internal/vendors/aws"
	"github.com/vnmchuo/vendor-spend/internal/vendors/datadog"
)

// Settings is implemented by DatadogSettings and AWSSettings only.
type Settings interface {
	Vendor() string
	// CredentialRefs maps credential names to secret IDs.
	CredentialRefs() map[string]string
}

type DatadogSettings struct {
	APIKeySecretID string `json:"api_key_secret_id"`
	AppKeySecretID string `json:"app_key_secret_id"`
}

func (DatadogSettings) Vendor() string { return vendor.Datadog }

func (s DatadogSettings) CredentialRefs() map[string]string {
	return map[string]string{
		datadog.CredAPIKey: s.APIKeySecretID,
		datadog.CredAppKey: s.AppKeySecretID,
	}
}

type AWSSettings struct {
	AccessKeyIDSecretID     string `json:"access_key_id_secret_id"`
	SecretAccessKeySecretID string `json:"secret_access_key_secret_id"`
}

func (AWSSettings) Vendor() string { return vendor.AWS }

func (s AWSSettings) CredentialRefs() map[string]string {
	return map[string]string{
		aws.CredAccessKeyID:     s.AccessKeyIDSecretID,
		aws.CredSecretAccessKey: s.SecretAccessKeySecretID,
	}
}

type Configuration struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"-"`
	Identifier string    `json:"identifier"`
	Settings   Settings  `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (c Configuration) Vendor() string {
	return c.Settings.Vendor()
}

func (c Configuration) Key() costs.Key {
	return costs.Key{UserID: c.UserID, Vendor: c.Vendor(), Identifier: c.Identifier}
}

// MarshalJSON exposes the vendor tag as "type" and omits secret references.
func (c Configuration) MarshalJSON() ([]byte, error) {
	type view Configuration
	return json.Marshal(struct {
		view
		Type string `json:"type"`
	}{view: view(c), Type: c.Vendor()})
}

func encodeSettings(s Settings) ([]byte, error) {
	return json.Marshal(s)
}

func decodeSettings(vendorTag string, raw []byte) (Settings, error) {
	switch vendorTag {
	case vendor.Datadog:
		var s DatadogSettings
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("decode datadog settings: %w", err)
		}
		return s, nil
	case vendor.AWS:
		var s AWSSettings
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("decode aws settings: %w", err)
		}
		return s, nil
	}
	return nil, vendor.UnsupportedVendor(vendorTag)
}

type Store interface {
	// Get returns vendor.ErrConfigurationNotFound when no row matches.
	Get(ctx context.Context, key costs.Key) (*Configuration, error)
	// Upsert inserts or replaces the settings for c's key and reports
	// whether a new row was created.
	Upsert(ctx context.Context, c *Configuration) (bool, error)
	ListByUser(ctx context.Context, userID int64) ([]Configuration, error)
	Delete(ctx context.Context, key costs.Key) error
}
