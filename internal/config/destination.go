package config

import (
	"net/url"
	"strings"

	"spo-preflight/internal/models"
	"spo-preflight/internal/rules"
)

// default library per destination type
var defaultLibraries = map[models.DestinationType]string{
	models.DestinationSharePoint: "Shared Documents",
	models.DestinationTeams:      "General",
	models.DestinationOneDrive:   "Documents",
}

func (d DestinationConfig) configured() bool {
	return strings.TrimSpace(d.SiteURL) != "" || strings.TrimSpace(d.Type) != ""
}

// Resolve validates the destination and computes its base URL
func (d DestinationConfig) Resolve() (*models.Destination, error) {
	typ := models.DestinationType(strings.ToLower(strings.TrimSpace(d.Type)))
	if typ == "" {
		typ = models.DestinationSharePoint
	}
	if _, ok := defaultLibraries[typ]; !ok {
		return nil, models.ConfigError("invalid destination type %q, must be one of: sharepoint, teams, onedrive", d.Type)
	}

	site := strings.TrimSpace(d.SiteURL)
	if err := ValidateSiteURL(site, typ); err != nil {
		return nil, err
	}

	library := strings.TrimSpace(d.Library)
	// OneDrive always uses its single library
	if typ == models.DestinationOneDrive || library == "" {
		library = defaultLibraries[typ]
	}

	return &models.Destination{
		Type:    typ,
		SiteURL: strings.TrimRight(site, "/"),
		Library: library,
		Base:    rules.LibraryBase(site, library),
	}, nil
}

// ValidateSiteURL checks that site is a plausible SharePoint Online URL for
// the destination type
func ValidateSiteURL(site string, typ models.DestinationType) error {
	if site == "" {
		return models.ConfigError("destination site URL is required")
	}
	if !strings.HasPrefix(site, "https://") {
		return models.ConfigError("destination URL must start with 'https://': %s", site)
	}
	u, err := url.Parse(site)
	if err != nil || u.Host == "" {
		return models.ConfigError("destination URL is not a valid URL: %s", site)
	}

	lower := strings.ToLower(site)
	if !strings.Contains(lower, ".sharepoint.com") {
		return models.ConfigError("destination URL must contain '.sharepoint.com': %s", site)
	}

	isPersonal := strings.Contains(lower, "-my.sharepoint.com")
	if typ == models.DestinationOneDrive {
		if !isPersonal {
			return models.ConfigError("OneDrive URL must contain '-my.sharepoint.com': %s", site)
		}
		return nil
	}
	if isPersonal {
		return models.ConfigError("%s is a OneDrive URL, use destination type onedrive", site)
	}
	if !strings.Contains(lower, "/sites/") && !strings.Contains(lower, "/teams/") {
		if typ == models.DestinationTeams {
			return models.ConfigError("Teams URL must include '/teams/<name>' path: %s", site)
		}
		return models.ConfigError("SharePoint URL must include '/sites/<name>' or '/teams/<name>' path: %s", site)
	}
	return nil
}
