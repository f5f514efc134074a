package config

// SiteConfig holds site-specific configuration for a single host.
type SiteConfig struct {
	// Cookie is an HTTP cookie to send when fetching this site.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are custom HTTP headers to include in requests to this site.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Safelist holds selector names that always survive the purge.
	Safelist []string `yaml:"safelist,omitempty"`

	// SafelistPatterns holds regular expressions for selector names that
	// always survive the purge.
	SafelistPatterns []string `yaml:"safelistPatterns,omitempty"`

	// WordPressSafelist overrides the global WordPress safelist switch.
	WordPressSafelist *bool `yaml:"wordpressSafelist,omitempty"`

	// FailOnNoStylesheets overrides the global zero-stylesheet policy.
	FailOnNoStylesheets *bool `yaml:"failOnNoStylesheets,omitempty"`
}

// File represents the structure of the .csstrim configuration file.
type File struct {
	// Sites maps hosts (e.g. "example.com") to their configuration.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults applies to all sites unless overridden by a site entry.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the configuration for host, merging the site entry
// over the defaults. Safelists are concatenated; scalar values and headers
// from the site entry win.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	result := cf.Defaults
	result.Headers = copyHeaders(cf.Defaults.Headers)
	result.Safelist = append([]string(nil), cf.Defaults.Safelist...)
	result.SafelistPatterns = append([]string(nil), cf.Defaults.SafelistPatterns...)

	siteConfig, ok := cf.Sites[host]
	if !ok {
		return result
	}

	if siteConfig.Cookie != "" {
		result.Cookie = siteConfig.Cookie
	}
	if len(siteConfig.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string)
		}
		for k, v := range siteConfig.Headers {
			result.Headers[k] = v
		}
	}
	result.Safelist = append(result.Safelist, siteConfig.Safelist...)
	result.SafelistPatterns = append(result.SafelistPatterns, siteConfig.SafelistPatterns...)
	if siteConfig.WordPressSafelist != nil {
		result.WordPressSafelist = siteConfig.WordPressSafelist
	}
	if siteConfig.FailOnNoStylesheets != nil {
		result.FailOnNoStylesheets = siteConfig.FailOnNoStylesheets
	}

	return result
}

func copyHeaders(h map[string]string) map[string]string {
	if h == nil {
		return nil
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}
