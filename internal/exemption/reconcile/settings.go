package reconcile

import "context"

// Settings are the merchant's exemption settings, read on every pass.
type Settings struct {
	FeatureEnabled       bool
	IdentifierRequired   bool
	RegistryCheckEnabled bool
	// OverrideCompetingExtensions re-asserts the verdict at the start of every
	// request, ahead of other extensions that toggle the same flag.
	OverrideCompetingExtensions bool
	HomeCountry                 string
	PickupMethods               []string
}

// SettingsSource supplies current settings.
type SettingsSource interface {
	Settings(ctx context.Context) Settings
}

// StaticSettings serves fixed settings.
type StaticSettings Settings

// Settings implements SettingsSource.
func (s StaticSettings) Settings(context.Context) Settings {
	return Settings(s)
}
