package domain

import (
	"errors"
	"strings"
)

// ErrUnknownPlatform is returned when a platform name is not supported.
var ErrUnknownPlatform = errors.New("unknown platform")

// Platform identifies an external service that produces metrics or revenue.
type Platform string

const (
	PlatformFacebook        Platform = "facebook"
	PlatformInstagram       Platform = "instagram"
	PlatformYouTube         Platform = "youtube"
	PlatformTikTok          Platform = "tiktok"
	PlatformAdSense         Platform = "adsense"
	PlatformTwitter         Platform = "twitter"
	PlatformLinkedIn        Platform = "linkedin"
	PlatformGoogleAnalytics Platform = "google_analytics"
)

// AllPlatforms lists every supported platform in display order.
var AllPlatforms = []Platform{
	PlatformFacebook,
	PlatformInstagram,
	PlatformYouTube,
	PlatformTikTok,
	PlatformAdSense,
	PlatformTwitter,
	PlatformLinkedIn,
	PlatformGoogleAnalytics,
}

// IsValid reports whether p is one of the supported platforms.
func (p Platform) IsValid() bool {
	for _, known := range AllPlatforms {
		if p == known {
			return true
		}
	}
	return false
}

// ParsePlatform normalizes a user supplied platform name.
// Returns false if the name is not a supported platform.
func ParsePlatform(s string) (Platform, bool) {
	p := Platform(strings.ToLower(strings.TrimSpace(s)))
	return p, p.IsValid()
}

// ParsePlatforms splits a comma separated list, skipping blanks.
// Unknown names are returned in the second slice.
func ParsePlatforms(csv string) ([]Platform, []string) {
	var out []Platform
	var unknown []string
	for _, part := range strings.Split(csv, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		p, ok := ParsePlatform(part)
		if !ok {
			unknown = append(unknown, part)
			continue
		}
		out = append(out, p)
	}
	return out, unknown
}
