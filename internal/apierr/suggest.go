package apierr

import "math/rand"

// Per-category remediation suggestions. One is picked at random per error so
// repeated failures don't show the same advice over and over. Callers must
// not depend on which suggestion they get, only that it belongs to the
// category's list.
var suggestions = map[Category][]string{
	CategoryConnection: {
		"Check that the controller is powered on and on the same network",
		"Verify the hostname and port in the connection settings",
		"Try toggling the secure-protocol setting if the controller uses plain HTTP",
		"Move the controller closer to your access point to improve signal strength",
	},
	CategoryDevice: {
		"Run a device scan and retry",
		"Check that the device is powered on and in pairing range",
	},
	CategoryMachine: {
		"Wake the machine from sleep and retry",
		"Check the controller logs for a machine fault",
	},
	CategoryScale: {
		"Check that the scale is powered on and within Bluetooth range",
		"Run a device scan to rediscover the scale",
		"Replace or recharge the scale battery",
	},
	CategoryProfile: {
		"Validate the profile document before uploading",
		"Re-select the profile on the machine and retry",
	},
	CategoryAuth: {
		"Check the configured username and password",
		"Reset the controller credentials to factory defaults",
	},
	CategoryGeneral: {
		"Retry the operation",
		"Restart the controller if the problem persists",
	},
}

// Suggest returns a remediation suggestion for the category, or an empty
// string when the category has none.
func Suggest(category Category) string {
	list := suggestions[category]
	if len(list) == 0 {
		return ""
	}
	return list[rand.Intn(len(list))]
}

// SuggestionsFor returns the full suggestion list for a category. Tests use
// this to assert membership rather than exact text.
func SuggestionsFor(category Category) []string {
	return suggestions[category]
}
