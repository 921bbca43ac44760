package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/muurk/r1ctl/internal/apierr"
	"github.com/muurk/r1ctl/internal/config"
	"github.com/muurk/r1ctl/internal/discovery"
	"github.com/muurk/r1ctl/internal/profile"
	"github.com/muurk/r1ctl/internal/store"
	"github.com/muurk/r1ctl/internal/wire"
)

// Connection command flags
var (
	hostFlag     string
	portFlag     int
	secureFlag   bool
	userFlag     string
	askAuth      bool
	outputFormat string
	scanTimeout  int
	mdnsScan     bool

	// settings command flags
	shotVolumeFlag   float64
	steamSettingFlag int
	groupTempFlag    float64
)

func init() {
	// Common flags for controller commands (persistent on root)
	rootCmd.PersistentFlags().StringVar(&hostFlag, "host", "", "Controller hostname or IP (defaults to last used)")
	rootCmd.PersistentFlags().IntVar(&portFlag, "port", 8080, "Controller HTTP port")
	rootCmd.PersistentFlags().BoolVar(&secureFlag, "secure", false, "Use https/wss")
	rootCmd.PersistentFlags().StringVar(&userFlag, "user", "", "Basic auth username")
	rootCmd.PersistentFlags().BoolVar(&askAuth, "ask-auth", false, "Prompt for a password (never stored)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "detailed", "Output format (detailed, json)")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(scaleCmd)
	rootCmd.AddCommand(usbCmd)
	rootCmd.AddCommand(monitorCmd)
}

// buildSettings resolves the connection settings from flags and the saved
// registry, prompting for a password when asked.
func buildSettings() (store.Settings, error) {
	settings := store.Settings{
		Hostname: hostFlag,
		Port:     portFlag,
		Secure:   secureFlag,
		Username: userFlag,
	}

	registry, err := config.LoadRegistry()
	if err != nil {
		return settings, err
	}

	if settings.Hostname == "" {
		last := registry.LastUsedController()
		if last == nil {
			return settings, fmt.Errorf("no controller specified. Use --host, or 'r1ctl scan --mdns' to find one")
		}
		settings.Hostname = last.Hostname
		settings.Port = last.Port
		settings.Secure = last.Secure
		if settings.Username == "" {
			settings.Username = last.Username
		}
	}

	if askAuth {
		fmt.Fprintf(os.Stderr, "Password for %s: ", settings.Hostname)
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return settings, fmt.Errorf("failed to read password: %w", err)
		}
		settings.Password = string(password)
	}

	return settings, nil
}

// connectStore connects a store using the resolved settings and remembers
// the controller on success. The caller must Disconnect.
func connectStore() (*store.Store, error) {
	settings, err := buildSettings()
	if err != nil {
		return nil, err
	}

	st := store.New(store.Config{Settings: settings})
	if err := st.Connect(); err != nil {
		return nil, describeConnectError(settings, err)
	}

	// Best-effort persistence of the working address.
	if registry, regErr := config.LoadRegistry(); regErr == nil {
		registry.RememberController(settings.Hostname, settings.Hostname, settings.Port, settings.Secure)
		if settings.Username != "" {
			registry.SetControllerUsername(settings.Hostname, settings.Username)
		}
		_ = registry.Save()
	}

	return st, nil
}

func describeConnectError(settings store.Settings, err error) error {
	if e, ok := err.(*apierr.Error); ok && e.Suggestion != "" {
		return fmt.Errorf("failed to connect to %s: %s\n  hint: %s", settings.BaseURL(), e.Message, e.Suggestion)
	}
	return fmt.Errorf("failed to connect to %s: %w", settings.BaseURL(), err)
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// scanCmd discovers controllers (mDNS) or peripherals (via the controller)
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for controllers or scales",
	Long: `Scan for R1 controllers on the network, or for Bluetooth scales
via a connected controller.

With --mdns this listens for mDNS broadcasts from controllers and displays
each one with its IP address and serial number. Without --mdns it asks the
controller to scan for nearby Bluetooth scales and prints the refreshed
device listing.`,
	Example: `  # Ask the controller to scan for scales
  r1ctl scan --host r1.local

  # Find controllers on the LAN
  r1ctl scan --mdns

  # Longer mDNS scan for slow networks
  r1ctl scan --mdns --timeout 30`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().BoolVar(&mdnsScan, "mdns", false, "Scan the LAN for controllers instead of asking one for scales")
	scanCmd.Flags().IntVar(&scanTimeout, "timeout", 10, "Scan timeout in seconds")
}

func runScan(cmd *cobra.Command, args []string) error {
	if mdnsScan {
		return runMDNSScan()
	}

	st, err := connectStore()
	if err != nil {
		return err
	}
	defer st.Disconnect()

	fmt.Println("Scanning for scales...")
	devices := st.ScanForDevices()
	if devices == nil {
		devices = st.Devices()
	}

	if outputFormat == "json" {
		return printJSON(devices)
	}

	fmt.Printf("\n%d device(s) known to the controller:\n\n", len(devices))
	for i, device := range devices {
		fmt.Printf("%d. %s\n", i+1, device.Name)
		fmt.Printf("   ID:    %s\n", device.ID)
		fmt.Printf("   Type:  %s\n", device.Type)
		fmt.Printf("   State: %s\n", device.ConnectionState)
		fmt.Println()
	}
	return nil
}

func runMDNSScan() error {
	fmt.Printf("Scanning for R1 controllers (timeout: %ds)...\n\n", scanTimeout)

	controllers, err := discovery.ScanForControllers(time.Duration(scanTimeout) * time.Second)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if len(controllers) == 0 {
		fmt.Println("No controllers found.")
		fmt.Println("\nTroubleshooting:")
		fmt.Println("  - Ensure the controller is powered on")
		fmt.Println("  - Verify your computer is on the same network")
		fmt.Println("  - Try increasing --timeout for slower networks")
		fmt.Println("  - Use --host to specify the address manually")
		return nil
	}

	fmt.Printf("Found %d controller(s):\n\n", len(controllers))
	for i, controller := range controllers {
		fmt.Printf("%d. %s\n", i+1, controller.Hostname)
		fmt.Printf("   Serial: %s\n", controller.Serial)
		fmt.Printf("   IP:     %s:%d\n", controller.IP, controller.Port)
		if len(controller.Metadata) > 0 {
			fmt.Printf("   Metadata: %v\n", controller.Metadata)
		}
		fmt.Println()
	}

	fmt.Println("Use 'r1ctl status --host <ip>' to connect")
	return nil
}

// statusCmd shows the machine state and device listing
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show controller status",
	Long: `Connect to a controller and display the machine state, shot
settings, water level and known devices.`,
	Example: `  # Status of the last used controller
  r1ctl status

  # Status of a specific controller
  r1ctl status --host 192.168.4.16

  # JSON output for scripting
  r1ctl status --format json`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	st, err := connectStore()
	if err != nil {
		return err
	}
	defer st.Disconnect()

	machine := st.Machine()
	settings := st.ShotSettings()
	water := st.WaterLevels()
	devices := st.Devices()

	if outputFormat == "json" {
		return printJSON(map[string]interface{}{
			"machine":      machine,
			"shotSettings": settings,
			"waterLevels":  water,
			"devices":      devices,
		})
	}

	fmt.Printf("Machine state:   %s\n", machine.StateKey())
	fmt.Printf("Group temp:      %.1f°C (target %.1f°C)\n", machine.GroupTemperature, machine.TargetGroupTemp)
	fmt.Printf("Mix temp:        %.1f°C (target %.1f°C)\n", machine.MixTemperature, machine.TargetMixTemp)
	fmt.Printf("Steam temp:      %.1f°C\n", machine.SteamTemperature)
	fmt.Printf("USB charger:     %v\n", machine.USBChargerEnabled)
	fmt.Printf("Water level:     %.0f%%\n", water.CurrentPercentage)
	fmt.Printf("Shot volume:     %.0f g\n", settings.TargetShotVolume)
	fmt.Println()

	fmt.Printf("Devices (%d):\n", len(devices))
	for _, device := range devices {
		fmt.Printf("  %-12s %-20s %s\n", device.Type, device.Name, device.ConnectionState)
	}
	if selected, ok := st.SelectedScale(); ok {
		fmt.Printf("Selected scale: %s\n", selected.Name)
	}
	return nil
}

// stateCmd requests a machine state transition
var stateCmd = &cobra.Command{
	Use:   "state <sleep|idle|espresso|steam|hotwater|flush>",
	Short: "Set the machine state",
	Long: `Request a machine state transition. The controller accepts the
request and reports the actual transition through telemetry; this command
prints the state as reported after the change.`,
	Example: `  # Wake the machine
  r1ctl state idle

  # Put the machine to sleep
  r1ctl state sleep`,
	Args: cobra.ExactArgs(1),
	RunE: runState,
}

func runState(cmd *cobra.Command, args []string) error {
	target := wire.MachineState(strings.ToLower(args[0]))
	if !target.IsValid() {
		return fmt.Errorf("invalid state %q (valid: sleep, idle, espresso, steam, hotwater, flush)", args[0])
	}

	st, err := connectStore()
	if err != nil {
		return err
	}
	defer st.Disconnect()

	st.SetMachineState(target)
	fmt.Printf("Machine state: %s\n", st.Machine().StateKey())
	return nil
}

// settingsCmd shows or updates shot settings
var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or update shot settings",
	Long: `Display the controller's shot settings, or update individual
values with flags. Updated values are applied immediately and confirmed by
the controller's telemetry.`,
	Example: `  # Show current settings
  r1ctl settings

  # Set the target shot volume
  r1ctl settings --shot-volume 36

  # Set group temperature and steam setting together
  r1ctl settings --group-temp 92.5 --steam-setting 1`,
	RunE: runSettings,
}

func init() {
	settingsCmd.Flags().Float64Var(&shotVolumeFlag, "shot-volume", 0, "Target shot volume in grams")
	settingsCmd.Flags().IntVar(&steamSettingFlag, "steam-setting", -1, "Steam setting")
	settingsCmd.Flags().Float64Var(&groupTempFlag, "group-temp", 0, "Group temperature in °C")
}

func runSettings(cmd *cobra.Command, args []string) error {
	st, err := connectStore()
	if err != nil {
		return err
	}
	defer st.Disconnect()

	settings := st.ShotSettings()

	changed := false
	if cmd.Flags().Changed("shot-volume") {
		settings.TargetShotVolume = shotVolumeFlag
		changed = true
	}
	if cmd.Flags().Changed("steam-setting") {
		settings.SteamSetting = steamSettingFlag
		changed = true
	}
	if cmd.Flags().Changed("group-temp") {
		settings.GroupTemp = groupTempFlag
		changed = true
	}

	if changed {
		st.UpdateShotSettings(settings)
		settings = st.ShotSettings()
		fmt.Println("Settings updated.")
		fmt.Println()
	}

	if outputFormat == "json" {
		return printJSON(settings)
	}

	fmt.Printf("Shot volume:        %.0f g\n", settings.TargetShotVolume)
	fmt.Printf("Group temp:         %.1f°C\n", settings.GroupTemp)
	fmt.Printf("Steam setting:      %d\n", settings.SteamSetting)
	fmt.Printf("Steam temp:         %.1f°C for %.0fs\n", settings.TargetSteamTemp, settings.TargetSteamDuration)
	fmt.Printf("Hot water:          %.1f°C, %.0f ml, %.0fs\n",
		settings.TargetHotWaterTemp, settings.TargetHotWaterVol, settings.TargetHotWaterDur)
	return nil
}

// profileCmd groups profile management subcommands
var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage brew profiles",
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List locally stored profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		cache, err := profile.NewCache()
		if err != nil {
			return err
		}
		profiles, err := cache.List()
		if err != nil {
			return err
		}

		if outputFormat == "json" {
			return printJSON(profiles)
		}

		if len(profiles) == 0 {
			fmt.Println("No stored profiles. Use 'r1ctl profile upload <file>' to add one.")
			return nil
		}
		for _, p := range profiles {
			fmt.Printf("%-20s %s (%d steps, %.0fg target)\n", p.ID, p.Title, len(p.Steps), p.TargetWeight)
		}
		return nil
	},
}

var profileSelectCmd = &cobra.Command{
	Use:   "select <id>",
	Short: "Activate a profile stored on the controller",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := connectStore()
		if err != nil {
			return err
		}
		defer st.Disconnect()

		st.SelectProfile(args[0])
		if st.ActiveProfileID() != args[0] {
			return fmt.Errorf("controller did not accept profile %q", args[0])
		}

		if registry, regErr := config.LoadRegistry(); regErr == nil {
			registry.SetLastProfile(st.Settings().Hostname, args[0])
			_ = registry.Save()
		}
		fmt.Printf("Profile %s selected.\n", args[0])
		return nil
	},
}

var profileUploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload a profile JSON document to the machine",
	Long: `Parse a profile JSON document, store it in the local profile
cache, and upload it to the connected machine.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read profile file: %w", err)
		}
		p, err := wire.ParseProfile(data)
		if err != nil {
			return err
		}

		st, err := connectStore()
		if err != nil {
			return err
		}
		defer st.Disconnect()

		st.UploadProfile(p)
		if st.ActiveProfileID() != p.ID {
			return fmt.Errorf("upload of profile %q was not accepted", p.Title)
		}

		if cache, cacheErr := profile.NewCache(); cacheErr == nil && p.ID != "" {
			_ = cache.Store(p)
		}
		fmt.Printf("Profile %q uploaded.\n", p.Title)
		return nil
	},
}

func init() {
	profileCmd.AddCommand(profileListCmd)
	profileCmd.AddCommand(profileSelectCmd)
	profileCmd.AddCommand(profileUploadCmd)
}

// scaleCmd groups scale subcommands
var scaleCmd = &cobra.Command{
	Use:   "scale",
	Short: "Scale commands",
}

var scaleSelectCmd = &cobra.Command{
	Use:   "select <id>",
	Short: "Select which scale to use",
	Long: `Select a scale from the controller's device listing. The
selection is client-side bookkeeping; it fails if the id is not a scale the
controller knows about.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := connectStore()
		if err != nil {
			return err
		}
		defer st.Disconnect()

		if err := st.SelectScale(args[0]); err != nil {
			return err
		}
		fmt.Printf("Scale %s selected.\n", args[0])
		return nil
	},
}

var scaleTareCmd = &cobra.Command{
	Use:   "tare",
	Short: "Zero the scale",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := connectStore()
		if err != nil {
			return err
		}
		defer st.Disconnect()

		st.TareScale()
		fmt.Println("Tare requested.")
		return nil
	},
}

func init() {
	scaleCmd.AddCommand(scaleSelectCmd)
	scaleCmd.AddCommand(scaleTareCmd)
}

// usbCmd toggles the group-head USB charger
var usbCmd = &cobra.Command{
	Use:   "usb <enable|disable>",
	Short: "Toggle the group-head USB charger",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var enable bool
		switch strings.ToLower(args[0]) {
		case "enable", "on":
			enable = true
		case "disable", "off":
			enable = false
		default:
			return fmt.Errorf("invalid argument %q (use enable or disable)", args[0])
		}

		st, err := connectStore()
		if err != nil {
			return err
		}
		defer st.Disconnect()

		st.SetUSBCharging(enable)
		fmt.Printf("USB charger: %v\n", st.Machine().USBChargerEnabled)
		return nil
	},
}

// monitorCmd streams live telemetry to the terminal
var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Watch live telemetry",
	Long: `Connect to a controller and print a telemetry line every second
until interrupted. Reconnects automatically if the connection drops.`,
	Example: `  r1ctl monitor --host r1.local`,
	RunE:    runMonitor,
}

func runMonitor(cmd *cobra.Command, args []string) error {
	settings, err := buildSettings()
	if err != nil {
		return err
	}

	st := store.New(store.Config{Settings: settings, AutoReconnect: true})
	if err := st.Connect(); err != nil {
		return describeConnectError(settings, err)
	}
	defer st.Disconnect()

	fmt.Printf("Monitoring %s (Ctrl-C to stop)\n", settings.BaseURL())

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-interrupt:
			fmt.Println()
			return nil
		case <-ticker.C:
			printTelemetryLine(st)
		}
	}
}

func printTelemetryLine(st *store.Store) {
	state := st.State()
	if state != store.Connected {
		line := fmt.Sprintf("%s  [%s]", time.Now().Format("15:04:05"), state)
		if e := st.LastError(); e != nil {
			line += "  " + e.Code
		}
		fmt.Println(line)
		return
	}

	machine := st.Machine()
	scale := st.Scale()
	shot := st.ShotTimer()

	line := fmt.Sprintf("%s  %-22s flow=%.1f pressure=%.1f group=%.1f°C weight=%.1fg water=%.0f%%",
		time.Now().Format("15:04:05"),
		machine.StateKey(),
		machine.Flow,
		machine.Pressure,
		machine.GroupTemperature,
		scale.Weight,
		st.FilteredWaterLevel(),
	)
	if shot.Running {
		line += fmt.Sprintf(" shot=%.1fs", shot.Elapsed)
	} else if recent := st.RecentShotTime(); recent > 0 {
		line += fmt.Sprintf(" last-shot=%.1fs", recent)
	}
	fmt.Println(line)
}
