package discovery

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
)

const (
	// ServiceType is the mDNS service type R1 controllers advertise
	ServiceType = "_r1._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultScanTimeout is the default timeout for controller discovery
	DefaultScanTimeout = 10 * time.Second

	// DefaultPort is the default HTTP port for R1 controllers
	DefaultPort = 8080
)

// serialPattern matches R1 controller hostnames (e.g., "r1-315260240.local")
var serialPattern = regexp.MustCompile(`^r1-(\d+)\.local\.?$`)

// Scanner handles mDNS controller discovery
type Scanner struct {
	// Timeout is the maximum time to wait for controller discovery
	Timeout time.Duration
}

// NewScanner creates a new mDNS scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
	}
}

// ScanForControllers discovers all R1 controllers on the local network
// Returns a list of discovered controllers or an error
func (s *Scanner) ScanForControllers() ([]*Controller, error) {
	return s.ScanForControllersWithContext(context.Background())
}

// ScanForControllersWithContext discovers controllers with a custom context
func (s *Scanner) ScanForControllersWithContext(ctx context.Context) ([]*Controller, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	controllers := make([]*Controller, 0)

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	// Collect entries in a goroutine while the browse runs
	go func() {
		for entry := range entries {
			controller := s.parseServiceEntry(entry)
			if controller != nil {
				controllers = append(controllers, controller)
			}
		}
	}()

	err = resolver.Browse(ctx, ServiceType, ServiceDomain, entries)
	if err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	// Wait for context to complete (timeout or cancellation)
	<-ctx.Done()

	return controllers, nil
}

// WaitForController waits for a specific controller by serial number
// Returns the controller or an error if not found within timeout
func (s *Scanner) WaitForController(serial string) (*Controller, error) {
	return s.WaitForControllerWithContext(context.Background(), serial)
}

// WaitForControllerWithContext waits for a specific controller with a custom context
func (s *Scanner) WaitForControllerWithContext(ctx context.Context, serial string) (*Controller, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	controllerChan := make(chan *Controller, 1)

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	go func() {
		for entry := range entries {
			controller := s.parseServiceEntry(entry)
			if controller != nil && controller.Serial == serial {
				controllerChan <- controller
				cancel() // Found it, stop browsing
				return
			}
		}
	}()

	err = resolver.Browse(ctx, ServiceType, ServiceDomain, entries)
	if err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	select {
	case controller := <-controllerChan:
		return controller, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("controller with serial %s not found within timeout", serial)
	}
}

// parseServiceEntry converts a zeroconf service entry to a Controller
// Returns nil if the entry is not an R1 controller
func (s *Scanner) parseServiceEntry(entry *zeroconf.ServiceEntry) *Controller {
	hostname := entry.HostName
	if hostname == "" {
		return nil
	}

	matches := serialPattern.FindStringSubmatch(hostname)
	if len(matches) < 2 {
		return nil
	}

	serial := matches[1]

	// Get IP address (prefer IPv4)
	var ip string
	for _, addr := range entry.AddrIPv4 {
		ip = addr.String()
		break
	}
	if ip == "" && len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		return nil
	}

	port := entry.Port
	if port == 0 {
		port = DefaultPort
	}

	// TXT records are in "key=value" format
	metadata := make(map[string]string)
	for _, txt := range entry.Text {
		parts := strings.SplitN(txt, "=", 2)
		if len(parts) == 2 {
			metadata[parts[0]] = parts[1]
		} else {
			metadata[parts[0]] = ""
		}
	}

	return &Controller{
		Serial:       serial,
		Hostname:     hostname,
		IP:           ip,
		Port:         port,
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}

// ScanForControllers is a convenience function to scan with a custom timeout
func ScanForControllers(timeout time.Duration) ([]*Controller, error) {
	scanner := NewScanner()
	scanner.Timeout = timeout
	return scanner.ScanForControllers()
}

// QuickScan performs a fast scan with a 3-second timeout
func QuickScan() ([]*Controller, error) {
	scanner := NewScanner()
	scanner.Timeout = 3 * time.Second
	return scanner.ScanForControllers()
}

// FindController searches for a specific controller by serial number with default timeout
func FindController(serial string) (*Controller, error) {
	scanner := NewScanner()
	return scanner.WaitForController(serial)
}
