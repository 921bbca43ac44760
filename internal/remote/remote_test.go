package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/muurk/r1ctl/internal/apierr"
	"github.com/muurk/r1ctl/internal/rest"
	"github.com/muurk/r1ctl/internal/wire"
)

func newTestAPI(handler http.HandlerFunc) (*API, *httptest.Server) {
	server := httptest.NewServer(handler)
	client := rest.NewClient(server.URL)
	client.MaxRetries = 0
	return New(client), server
}

func TestDeviceAdapter_ListDevices(t *testing.T) {
	api, server := newTestAPI(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/devices" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`[{"id":"scale-7","name":"Lunar","type":"scale","connectionState":"connected"}]`))
	})
	defer server.Close()

	devices, err := api.Devices.ListDevices(context.Background())
	if err != nil {
		t.Fatalf("ListDevices() error = %v", err)
	}
	if len(devices) != 1 || devices[0].ID != "scale-7" {
		t.Errorf("devices = %+v", devices)
	}
}

func TestDeviceAdapter_ScanErrorCodes(t *testing.T) {
	api, server := newTestAPI(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	defer server.Close()

	_, err := api.Devices.ScanForDevices(context.Background())
	if err == nil {
		t.Fatal("scan should fail")
	}
	e := apierr.Classify(err)
	if e.Category != apierr.CategoryDevice {
		t.Errorf("category = %v, want device", e.Category)
	}
	if e.Code != "device.scan_failed" {
		t.Errorf("code = %s, want device.scan_failed", e.Code)
	}
}

func TestMachineAdapter_GetStateRunsTransformer(t *testing.T) {
	api, server := newTestAPI(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/de1/state" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"state":"espresso","substate":"preinfuse","flow":1.2}`))
	})
	defer server.Close()

	snap, err := api.Machine.GetState(context.Background())
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if snap.State != wire.StateEspresso {
		t.Errorf("State = %v", snap.State)
	}
	if snap.Substate != wire.SubstatePreinfusion {
		t.Errorf("Substate = %v, want normalized preinfusion", snap.Substate)
	}
}

func TestMachineAdapter_SetState(t *testing.T) {
	var gotPath, gotMethod string
	api, server := newTestAPI(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotMethod = r.URL.Path, r.Method
		w.WriteHeader(http.StatusNoContent)
	})
	defer server.Close()

	if err := api.Machine.SetState(context.Background(), wire.StateEspresso); err != nil {
		t.Fatalf("SetState() error = %v", err)
	}
	if gotPath != "/api/v1/de1/state/espresso" || gotMethod != http.MethodPut {
		t.Errorf("request = %s %s", gotMethod, gotPath)
	}

	if err := api.Machine.SetState(context.Background(), wire.MachineState("descale")); err == nil {
		t.Error("invalid state must be rejected without a request")
	}
}

func TestMachineAdapter_SetUSBCharging(t *testing.T) {
	var paths []string
	api, server := newTestAPI(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})
	defer server.Close()

	_ = api.Machine.SetUSBCharging(context.Background(), true)
	_ = api.Machine.SetUSBCharging(context.Background(), false)

	want := []string{"/api/v1/de1/usb/enable", "/api/v1/de1/usb/disable"}
	for i, p := range want {
		if paths[i] != p {
			t.Errorf("paths[%d] = %s, want %s", i, paths[i], p)
		}
	}
}

func TestMachineAdapter_UploadProfileErrorCategory(t *testing.T) {
	api, server := newTestAPI(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"unsupported profile version"}`))
	})
	defer server.Close()

	err := api.Machine.UploadProfile(context.Background(), wire.Profile{Title: "x"})
	e := apierr.Classify(err)
	if e.Category != apierr.CategoryProfile {
		t.Errorf("category = %v, want profile", e.Category)
	}
	if e.Code != "profile.upload_failed" {
		t.Errorf("code = %s", e.Code)
	}
}

func TestScaleAdapter_SelectValidatesAgainstListing(t *testing.T) {
	adapter := NewScaleAdapter(nil)
	known := []wire.Device{
		{ID: "scale-01", Type: "scale"},
		{ID: "de1-01", Type: "machine"},
	}

	if err := adapter.Select("scale-01", known); err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if got, ok := adapter.Selected(known); !ok || got.ID != "scale-01" {
		t.Errorf("Selected() = %+v, %v", got, ok)
	}

	// A machine id is not a scale.
	if err := adapter.Select("de1-01", known); err == nil {
		t.Error("selecting a non-scale device must fail")
	}

	// An unknown id must not disturb the existing selection.
	err := adapter.Select("scale-x", known)
	if err == nil {
		t.Fatal("selecting an unknown scale must fail")
	}
	if apierr.CategoryOf(err) != apierr.CategoryScale {
		t.Errorf("category = %v, want scale", apierr.CategoryOf(err))
	}
	if got, ok := adapter.Selected(known); !ok || got.ID != "scale-01" {
		t.Errorf("selection disturbed by failed Select: %+v, %v", got, ok)
	}
}

func TestScaleAdapter_SelectionResetsWhenScaleDisappears(t *testing.T) {
	adapter := NewScaleAdapter(nil)
	known := []wire.Device{{ID: "scale-01", Type: "scale"}}

	if err := adapter.Select("scale-01", known); err != nil {
		t.Fatalf("Select() error = %v", err)
	}

	// Fresh listing without the scale: selection silently resets.
	if _, ok := adapter.Selected([]wire.Device{}); ok {
		t.Error("vanished scale must reset the selection")
	}
	if _, ok := adapter.Selected(known); ok {
		t.Error("selection must stay reset even when the scale reappears")
	}
}

func TestScaleAdapter_TareWithoutClient(t *testing.T) {
	adapter := NewScaleAdapter(nil)
	err := adapter.Tare(context.Background())
	if err == nil {
		t.Fatal("Tare without a client must fail")
	}
	if apierr.CategoryOf(err) != apierr.CategoryScale {
		t.Errorf("category = %v, want scale", apierr.CategoryOf(err))
	}
}

func TestFake_ImplementsAllAPIs(t *testing.T) {
	fake := NewFake()
	api := fake.APIs()
	ctx := context.Background()

	devices, err := api.Devices.ListDevices(ctx)
	if err != nil || len(devices) != 2 {
		t.Fatalf("ListDevices() = %v, %v", devices, err)
	}

	if err := api.Machine.SetState(ctx, wire.StateEspresso); err != nil {
		t.Fatalf("SetState() error = %v", err)
	}
	snap, _ := api.Machine.GetState(ctx)
	if snap.State != wire.StateEspresso {
		t.Errorf("State = %v", snap.State)
	}

	if err := api.Scale.Select("scale-01", devices); err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if err := api.Scale.Tare(ctx); err != nil {
		t.Fatalf("Tare() error = %v", err)
	}
	if fake.Tared != 1 {
		t.Errorf("Tared = %d, want 1", fake.Tared)
	}
}
