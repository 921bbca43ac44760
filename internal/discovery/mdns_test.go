package discovery

import (
	"net"
	"testing"
	"time"

	"github.com/grandcat/zeroconf"
)

func TestScanner_parseServiceEntry(t *testing.T) {
	scanner := NewScanner()

	tests := []struct {
		name       string
		entry      *zeroconf.ServiceEntry
		wantNil    bool
		wantSerial string
		wantIP     string
		wantPort   int
	}{
		{
			name: "valid controller with IPv4",
			entry: &zeroconf.ServiceEntry{
				HostName: "r1-315260240.local.",
				Port:     8080,
				AddrIPv4: []net.IP{net.ParseIP("192.168.4.16")},
				Text:     []string{"path=/", "version=1.4.2"},
			},
			wantNil:    false,
			wantSerial: "315260240",
			wantIP:     "192.168.4.16",
			wantPort:   8080,
		},
		{
			name: "valid controller without trailing dot",
			entry: &zeroconf.ServiceEntry{
				HostName: "r1-123456789.local",
				Port:     8080,
				AddrIPv4: []net.IP{net.ParseIP("10.0.0.5")},
				Text:     []string{},
			},
			wantNil:    false,
			wantSerial: "123456789",
			wantIP:     "10.0.0.5",
			wantPort:   8080,
		},
		{
			name: "valid controller with custom port",
			entry: &zeroconf.ServiceEntry{
				HostName: "r1-999999999.local",
				Port:     80,
				AddrIPv4: []net.IP{net.ParseIP("192.168.1.100")},
			},
			wantNil:    false,
			wantSerial: "999999999",
			wantIP:     "192.168.1.100",
			wantPort:   80,
		},
		{
			name: "no port specified (should default to 8080)",
			entry: &zeroconf.ServiceEntry{
				HostName: "r1-111111111.local",
				Port:     0,
				AddrIPv4: []net.IP{net.ParseIP("172.16.0.1")},
			},
			wantNil:    false,
			wantSerial: "111111111",
			wantIP:     "172.16.0.1",
			wantPort:   8080,
		},
		{
			name: "other appliance (wrong hostname pattern)",
			entry: &zeroconf.ServiceEntry{
				HostName: "someotherdevice.local",
				Port:     80,
				AddrIPv4: []net.IP{net.ParseIP("192.168.1.1")},
			},
			wantNil: true,
		},
		{
			name: "empty hostname",
			entry: &zeroconf.ServiceEntry{
				HostName: "",
				Port:     80,
				AddrIPv4: []net.IP{net.ParseIP("192.168.1.1")},
			},
			wantNil: true,
		},
		{
			name: "no IP address",
			entry: &zeroconf.ServiceEntry{
				HostName: "r1-315260240.local",
				Port:     8080,
				AddrIPv4: []net.IP{},
				AddrIPv6: []net.IP{},
			},
			wantNil: true,
		},
		{
			name: "IPv6 only controller",
			entry: &zeroconf.ServiceEntry{
				HostName: "r1-222222222.local",
				Port:     8080,
				AddrIPv6: []net.IP{net.ParseIP("fe80::1")},
			},
			wantNil:    false,
			wantSerial: "222222222",
			wantIP:     "fe80::1",
			wantPort:   8080,
		},
		{
			name: "both IPv4 and IPv6 (should prefer IPv4)",
			entry: &zeroconf.ServiceEntry{
				HostName: "r1-333333333.local",
				Port:     8080,
				AddrIPv4: []net.IP{net.ParseIP("192.168.1.50")},
				AddrIPv6: []net.IP{net.ParseIP("fe80::2")},
			},
			wantNil:    false,
			wantSerial: "333333333",
			wantIP:     "192.168.1.50",
			wantPort:   8080,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			controller := scanner.parseServiceEntry(tt.entry)

			if tt.wantNil {
				if controller != nil {
					t.Errorf("parseServiceEntry() = %v, want nil", controller)
				}
				return
			}

			if controller == nil {
				t.Fatal("parseServiceEntry() = nil, want non-nil controller")
			}

			if controller.Serial != tt.wantSerial {
				t.Errorf("controller.Serial = %v, want %v", controller.Serial, tt.wantSerial)
			}

			if controller.IP != tt.wantIP {
				t.Errorf("controller.IP = %v, want %v", controller.IP, tt.wantIP)
			}

			if controller.Port != tt.wantPort {
				t.Errorf("controller.Port = %v, want %v", controller.Port, tt.wantPort)
			}

			if controller.Hostname != tt.entry.HostName {
				t.Errorf("controller.Hostname = %v, want %v", controller.Hostname, tt.entry.HostName)
			}

			// DiscoveredAt should be recent (within last second)
			if time.Since(controller.DiscoveredAt) > time.Second {
				t.Errorf("controller.DiscoveredAt is not recent: %v", controller.DiscoveredAt)
			}
		})
	}
}

func TestScanner_parseServiceEntry_Metadata(t *testing.T) {
	scanner := NewScanner()

	entry := &zeroconf.ServiceEntry{
		HostName: "r1-315260240.local",
		Port:     8080,
		AddrIPv4: []net.IP{net.ParseIP("192.168.4.16")},
		Text:     []string{"path=/", "version=1.4.2", "flag", "model=R1"},
	}

	controller := scanner.parseServiceEntry(entry)
	if controller == nil {
		t.Fatal("parseServiceEntry() = nil, want controller")
	}

	expectedMetadata := map[string]string{
		"path":    "/",
		"version": "1.4.2",
		"flag":    "", // Key without value
		"model":   "R1",
	}

	if len(controller.Metadata) != len(expectedMetadata) {
		t.Errorf("controller.Metadata has %d entries, want %d", len(controller.Metadata), len(expectedMetadata))
	}

	for key, expectedValue := range expectedMetadata {
		if actualValue, ok := controller.Metadata[key]; !ok {
			t.Errorf("controller.Metadata missing key %q", key)
		} else if actualValue != expectedValue {
			t.Errorf("controller.Metadata[%q] = %q, want %q", key, actualValue, expectedValue)
		}
	}
}

func TestNewScanner(t *testing.T) {
	scanner := NewScanner()

	if scanner == nil {
		t.Fatal("NewScanner() = nil, want scanner")
	}

	if scanner.Timeout != DefaultScanTimeout {
		t.Errorf("scanner.Timeout = %v, want %v", scanner.Timeout, DefaultScanTimeout)
	}
}

func TestSerialPattern(t *testing.T) {
	tests := []struct {
		hostname    string
		shouldMatch bool
		serial      string
	}{
		{"r1-315260240.local", true, "315260240"},
		{"r1-315260240.local.", true, "315260240"},
		{"r1-123456789.local", true, "123456789"},
		{"r1-1.local", true, "1"},
		{"r1-999999999999.local", true, "999999999999"},
		{"R1-315260240.local", false, ""}, // uppercase prefix
		{"r1-.local", false, ""},          // no serial
		{"r1-ABC.local", false, ""},       // non-numeric serial
		{"somedevice.local", false, ""},   // wrong prefix
		{"r1-315260240", false, ""},       // missing .local
		{"", false, ""},                   // empty
	}

	for _, tt := range tests {
		t.Run(tt.hostname, func(t *testing.T) {
			matches := serialPattern.FindStringSubmatch(tt.hostname)

			if tt.shouldMatch {
				if matches == nil || len(matches) < 2 {
					t.Errorf("serialPattern did not match %q", tt.hostname)
				} else if matches[1] != tt.serial {
					t.Errorf("serialPattern matched %q with serial %q, want %q", tt.hostname, matches[1], tt.serial)
				}
			} else {
				if matches != nil {
					t.Errorf("serialPattern matched %q, want no match", tt.hostname)
				}
			}
		})
	}
}

// Note: Integration tests with live mDNS discovery require network access
// and should be run manually.
