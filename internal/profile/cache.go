package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/muurk/r1ctl/internal/apierr"
	"github.com/muurk/r1ctl/internal/config"
	"github.com/muurk/r1ctl/internal/wire"
)

// Cache loads and stores profile documents in a local directory. Each
// profile lives in its own JSON file named <id>.json.
type Cache struct {
	Dir string
}

// DefaultDir returns the profile directory under the user config dir.
func DefaultDir() (string, error) {
	configDir, err := config.GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "profiles"), nil
}

// NewCache creates a cache over the default profile directory.
func NewCache() (*Cache, error) {
	dir, err := DefaultDir()
	if err != nil {
		return nil, err
	}
	return &Cache{Dir: dir}, nil
}

// List returns all valid profiles in the directory, sorted by title.
// Files that fail to parse are skipped rather than failing the listing.
func (c *Cache) List() ([]wire.Profile, error) {
	entries, err := os.ReadDir(c.Dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, apierr.Wrap(apierr.CategoryProfile, "list_failed", "failed to read profile directory", err)
	}

	var profiles []wire.Profile
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		profile, err := c.Load(idFromFilename(entry.Name()))
		if err != nil {
			continue
		}
		profiles = append(profiles, profile)
	}

	sort.Slice(profiles, func(i, j int) bool { return profiles[i].Title < profiles[j].Title })
	return profiles, nil
}

// Load reads a single profile by id.
func (c *Cache) Load(id string) (wire.Profile, error) {
	data, err := os.ReadFile(c.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return wire.Profile{}, apierr.New(apierr.CategoryProfile, "not_found", fmt.Sprintf("no stored profile with id %q", id))
		}
		return wire.Profile{}, apierr.Wrap(apierr.CategoryProfile, "load_failed", "failed to read profile file", err)
	}

	profile, err := wire.ParseProfile(data)
	if err != nil {
		return wire.Profile{}, err
	}
	if profile.ID == "" {
		profile.ID = id
	}
	return profile, nil
}

// Store writes a profile to the directory, creating it if needed. The
// write is atomic: a temp file is renamed over the target.
func (c *Cache) Store(profile wire.Profile) error {
	if profile.ID == "" {
		return apierr.New(apierr.CategoryProfile, "store_failed", "profile has no id")
	}

	data, err := wire.EncodeProfile(profile)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(c.Dir, 0700); err != nil {
		return apierr.Wrap(apierr.CategoryProfile, "store_failed", "failed to create profile directory", err)
	}

	target := c.path(profile.ID)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return apierr.Wrap(apierr.CategoryProfile, "store_failed", "failed to write profile file", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return apierr.Wrap(apierr.CategoryProfile, "store_failed", "failed to save profile file", err)
	}
	return nil
}

// Delete removes a stored profile. Deleting a missing profile is not an
// error.
func (c *Cache) Delete(id string) error {
	err := os.Remove(c.path(id))
	if err != nil && !os.IsNotExist(err) {
		return apierr.Wrap(apierr.CategoryProfile, "delete_failed", "failed to delete profile file", err)
	}
	return nil
}

func (c *Cache) path(id string) string {
	return filepath.Join(c.Dir, id+".json")
}

func idFromFilename(name string) string {
	return strings.TrimSuffix(name, ".json")
}
