package configuration

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/rs/zerolog"

	"github.com/vnmchuo/vendor-spend/internal/costs"
	"github.com/vnmchuo/vendor-spend/internal/secrets"
	"github.com/vnmchuo/vendor-spend/internal/vendors"
	"github.com/vnmchuo/vendor-spend/internal/vendors/aws"
	"github.com/vnmchuo/vendor-spend/internal/vendors/datadog"
)

// Service ties configuration rows to the secrets they reference and to the
// cost records cached under them.
type Service struct {
	store  Store
	vault  secrets.Vault
	costs  costs.Store
	logger zerolog.Logger
}

func NewService(store Store, vault secrets.Vault, costStore costs.Store, logger zerolog.Logger) *Service {
	return &Service{
		store:  store,
		vault:  vault,
		costs:  costStore,
		logger: logger.With().Str("component", "configuration").Logger(),
	}
}

// ConfigureDatadog stores the keys as secrets and creates or replaces the
// configuration for identifier. The returned message says which happened.
func (s *Service) ConfigureDatadog(ctx context.Context, userID int64, identifier, apiKey, appKey string) (*Configuration, string, error) {
	return s.configure(ctx, userID, vendor.Datadog, identifier, map[string]string{
		datadog.CredAPIKey: apiKey,
		datadog.CredAppKey: appKey,
	})
}

func (s *Service) ConfigureAWS(ctx context.Context, userID int64, identifier, accessKeyID, secretAccessKey string) (*Configuration, string, error) {
	return s.configure(ctx, userID, vendor.AWS, identifier, map[string]string{
		aws.CredAccessKeyID:     accessKeyID,
		aws.CredSecretAccessKey: secretAccessKey,
	})
}

func (s *Service) configure(ctx context.Context, userID int64, vendorTag, identifier string, creds map[string]string) (*Configuration, string, error) {
	if identifier == "" {
		identifier = costs.DefaultIdentifier
	}
	key := costs.Key{UserID: userID, Vendor: vendorTag, Identifier: identifier}

	previous, err := s.store.Get(ctx, key)
	if err != nil && !errors.Is(err, vendor.ErrConfigurationNotFound) {
		return nil, "", err
	}

	ids := make(map[string]string, len(creds))
	for _, name := range slices.Sorted(maps.Keys(creds)) {
		secretName := fmt.Sprintf("user_%d_%s_%s", userID, vendorTag, name)
		id, err := s.vault.Put(ctx, userID, secretName, creds[name])
		if err != nil {
			s.discard(ctx, slices.Collect(maps.Values(ids)))
			return nil, "", fmt.Errorf("failed to store %s: %w", name, err)
		}
		ids[name] = id
	}

	c := &Configuration{UserID: userID, Identifier: identifier}
	switch vendorTag {
	case vendor.Datadog:
		c.Settings = DatadogSettings{APIKeySecretID: ids[datadog.CredAPIKey], AppKeySecretID: ids[datadog.CredAppKey]}
	case vendor.AWS:
		c.Settings = AWSSettings{AccessKeyIDSecretID: ids[aws.CredAccessKeyID], SecretAccessKeySecretID: ids[aws.CredSecretAccessKey]}
	}

	created, err := s.store.Upsert(ctx, c)
	if err != nil {
		s.discard(ctx, slices.Collect(maps.Values(ids)))
		return nil, "", err
	}

	if previous != nil {
		s.discard(ctx, slices.Collect(maps.Values(previous.Settings.CredentialRefs())))
	}

	verb := "updated"
	if created {
		verb = "created"
	}
	s.logger.Info().Int64("user_id", userID).Str("vendor", vendorTag).Str("identifier", identifier).Msgf("configuration %s", verb)
	return c, fmt.Sprintf("%s configuration %s successfully", vendor.DisplayName(vendorTag), verb), nil
}

func (s *Service) List(ctx context.Context, userID int64) ([]Configuration, error) {
	return s.store.ListByUser(ctx, userID)
}

// Keys lists the cost series keys a user has configured, ordered by vendor
// then identifier.
func (s *Service) Keys(ctx context.Context, userID int64) ([]costs.Key, error) {
	configs, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	keys := make([]costs.Key, 0, len(configs))
	for _, c := range configs {
		keys = append(keys, c.Key())
	}
	return keys, nil
}

// Remove deletes the configuration, its secrets and every cost record cached
// under it.
func (s *Service) Remove(ctx context.Context, key costs.Key) error {
	c, err := s.store.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, key); err != nil {
		return err
	}
	if err := s.costs.Delete(ctx, key); err != nil {
		return err
	}
	s.discard(ctx, slices.Collect(maps.Values(c.Settings.CredentialRefs())))
	return nil
}

// Resolve implements vendor.CredentialResolver.
func (s *Service) Resolve(ctx context.Context, key costs.Key) (vendor.Credentials, error) {
	c, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	creds := make(vendor.Credentials)
	for name, id := range c.Settings.CredentialRefs() {
		value, err := s.vault.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("resolve %s for %s: %w", name, key, err)
		}
		creds[name] = value
	}
	return creds, nil
}

func (s *Service) discard(ctx context.Context, ids []string) {
	if len(ids) == 0 {
		return
	}
	if err := s.vault.Delete(ctx, ids...); err != nil {
		s.logger.Warn().Err(err).Strs("secret_ids", ids).Msg("failed to delete orphaned secrets")
	}
}
