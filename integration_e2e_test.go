package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stevehiehn/greenscreen/internal/api"
	"github.com/stevehiehn/greenscreen/internal/screen"
	"github.com/stevehiehn/greenscreen/internal/session"
	"github.com/stevehiehn/greenscreen/internal/session/sessiontest"
	"github.com/stevehiehn/greenscreen/internal/store"
)

const (
	fieldsCSV = "\ufeffFIELD_NAME,MAX_LENGTH,REQUIRED,TYPE,VALID_VALUES,TABS_NEEDED,DESCRIPTION\n" +
		"company_name,30,true,text,,1,Company name\n" +
		"country,2,false,text,\"US,CA\",1,Country code\n" +
		"phone,10,false,digits,,1,Phone\n"
	navigationCSV = "STEP_ORDER,SCREEN_TITLE_CONTAINS,ACTION_TYPE,ACTION_VALUE,WAIT_TIME,DESCRIPTION\n" +
		"1,Sign On,credentials,\"{USERNAME},{PASSWORD}\",1,Sign on\n" +
		"2,Main Menu,option_with_id,\"{OPERATION},{COMPANY_ID}\",1,Open company maintenance\n" +
		"3,Company Maintenance,form_fill,,1,Fill the form\n"
	dataCSV = "FIELD_NAME,VALUE\ncompany_name,ACME WIDGETS\ncountry,US\nphone,5551234567\n"
)

// startCatalogAPI imports the CSV screen into a fresh catalog and serves it.
func startCatalogAPI(t *testing.T, term *sessiontest.Fake) (*httptest.Server, map[string]string) {
	t.Helper()
	dir := t.TempDir()
	files := screen.CSVFiles{
		Fields:     writeScreen(t, dir, "fields.csv", fieldsCSV),
		Navigation: writeScreen(t, dir, "navigation.csv", navigationCSV),
		Data:       writeScreen(t, dir, "data.csv", dataCSV),
	}
	sc, values, err := screen.LoadCSV("company_maintenance", files)
	if err != nil {
		t.Fatal(err)
	}
	sc.Params = map[string]string{"operation": "A"}

	st, err := store.Open(filepath.Join(dir, "catalog.db"), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	if err := st.CreateScreen(context.Background(), sc); err != nil {
		t.Fatal(err)
	}

	handler, err := api.NewServer(api.Config{
		Catalog: st,
		Open:    func(context.Context) (session.Session, error) { return term, nil },
		Params:  map[string]string{"username": "QUSER", "password": "QPASS"},
		Sleep:   func(time.Duration) {},
	})
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, values
}

func postJSON(t *testing.T, url string, body any) (int, map[string]any) {
	t.Helper()
	b, _ := json.Marshal(body)
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	return resp.StatusCode, out
}

func getJSON(t *testing.T, url string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	return resp.StatusCode, out
}

func TestCSVCatalogProcessE2E(t *testing.T) {
	term := sessiontest.New(
		"Sign On\nUser . . .",
		"Main Menu\n===>",
		"Company Maintenance\nCompany name . . .\nF3=Exit  F12=Cancel",
		"Company Maintenance\n694 added",
	)
	srv, values := startCatalogAPI(t, term)

	status, body := postJSON(t, srv.URL+"/api/process", map[string]any{
		"screen_name":   "company_maintenance",
		"screen_inputs": map[string]string{"company_id": "694"},
		"screen_data":   values,
	})
	if status != http.StatusOK || body["success"] != true {
		t.Fatalf("expected success, got %d %v", status, body)
	}
	if body["message"] != "SUCCESS: 694 was added successfully" {
		t.Errorf("unexpected message %v", body["message"])
	}
	// company_name is short, country and phone fill their fields.
	want := `home text("QUSER") tab text("QPASS") enter text("A") text("694") enter home text("ACME WIDGETS") tab text("US") text("5551234567") enter`
	if got := term.Transcript(); got != want {
		t.Errorf("transcript mismatch\nwant %s\ngot  %s", want, got)
	}

	status, history := getJSON(t, srv.URL+"/api/submissions?screen_name=company_maintenance")
	if status != http.StatusOK {
		t.Fatalf("history: status %d", status)
	}
	subs := history["submissions"].([]any)
	if len(subs) != 1 || subs[0].(map[string]any)["status"] != store.StatusSucceeded {
		t.Errorf("unexpected history %v", subs)
	}
}

func TestCSVCatalogRejectsBadEnumE2E(t *testing.T) {
	term := sessiontest.New("Sign On")
	srv, values := startCatalogAPI(t, term)
	values["country"] = "MX"

	status, body := postJSON(t, srv.URL+"/api/process", map[string]any{
		"screen_name":   "company_maintenance",
		"screen_inputs": map[string]string{"company_id": "694"},
		"screen_data":   values,
	})
	if status != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", status)
	}
	errs := body["errors"].([]any)
	if len(errs) != 1 || errs[0].(map[string]any)["type"] != "INVALID_ENUM_VALUE" {
		t.Errorf("unexpected errors %v", errs)
	}
	if len(term.Events()) != 0 {
		t.Error("no keystrokes may be sent for invalid data")
	}
}

func TestCatalogMissingIdentifierE2E(t *testing.T) {
	srv, values := startCatalogAPI(t, sessiontest.New("Sign On"))
	status, body := postJSON(t, srv.URL+"/api/validate", map[string]any{
		"screen_name": "company_maintenance",
		"screen_data": values,
	})
	if status != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", status)
	}
	errs := body["errors"].([]any)
	if len(errs) != 1 || errs[0].(map[string]any)["type"] != "MISSING_PARAMETER" {
		t.Errorf("unexpected errors %v", errs)
	}
}
