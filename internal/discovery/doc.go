// Package discovery provides mDNS-based discovery of R1 controllers.
//
// This package implements multicast DNS (mDNS) service discovery to
// automatically locate R1 controllers on the local network. Controllers
// advertise themselves using the "_r1._tcp" service type with hostnames
// of the form "r1-<serial>.local".
//
// # Discovery Process
//
// The discovery process works as follows:
//  1. Broadcasts mDNS queries on the local network
//  2. Listens for service advertisements from R1 controllers
//  3. Filters responses by the controller hostname pattern
//  4. Collects controller information (hostname, IP, serial number, TXT metadata)
//  5. Returns a list of discovered controllers after the timeout period
//
// # Usage Example
//
//	// Discover controllers with 10-second timeout
//	controllers, err := discovery.ScanForControllers(10 * time.Second)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for _, c := range controllers {
//	    fmt.Printf("Found: %s at %s (Serial: %s)\n", c.Hostname, c.IP, c.Serial)
//	}
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Controllers must be on the same local network segment
// - Firewall must allow mDNS (UDP port 5353)
//
// # Thread Safety
//
// This package is safe for concurrent use. Multiple discovery sessions can
// run simultaneously without interference.
package discovery
