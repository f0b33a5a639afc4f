package action

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/stevehiehn/greenscreen/internal/form"
	"github.com/stevehiehn/greenscreen/internal/session"
	"github.com/stevehiehn/greenscreen/internal/session/sessiontest"
	"github.com/stevehiehn/greenscreen/internal/template"
)

func TestCredentialsFromPayload(t *testing.T) {
	keys, err := Credentials{}.Keys("QSECOFR,secret", template.Params{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []form.Keystroke{
		{Key: session.KeyHome},
		{Text: "QSECOFR"},
		{Key: session.KeyTab},
		{Text: "secret", Secret: true},
		{Key: session.KeyEnter},
	}
	if diff := cmp.Diff(want, keys); diff != "" {
		t.Errorf("keystrokes mismatch (-want +got):\n%s", diff)
	}
}

func TestCredentialsParamsOverridePayload(t *testing.T) {
	keys, err := Credentials{}.Keys("{USERNAME},{PASSWORD}", template.Params{"username": "alice", "password": "pw"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if keys[1].Text != "alice" || keys[3].Text != "pw" {
		t.Errorf("expected alice/pw, got %q/%q", keys[1].Text, keys[3].Text)
	}

	keys, err = Credentials{}.Keys("bob,fallback", template.Params{"username": "alice"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if keys[1].Text != "alice" || keys[3].Text != "fallback" {
		t.Errorf("expected alice/fallback, got %q/%q", keys[1].Text, keys[3].Text)
	}
}

func TestCredentialsRejectsMalformedPayload(t *testing.T) {
	if _, err := (Credentials{}).Keys("justuser", template.Params{}); err == nil {
		t.Fatal("expected error for payload without password")
	}
}

func TestEnter(t *testing.T) {
	keys, _ := Enter{}.Keys("", nil)
	if len(keys) != 1 || keys[0].Key != session.KeyEnter {
		t.Errorf("expected single enter, got %v", keys)
	}
}

func TestTextResolvesPlaceholders(t *testing.T) {
	a := Text{Label: "Executed command"}
	keys, err := a.Keys("CALL PGM({COMPANY_ID})", template.Params{"company_id": "694"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if keys[0].Text != "CALL PGM(694)" {
		t.Errorf("expected resolved command, got %q", keys[0].Text)
	}
	if got := a.Summary("WRKCMP", nil); got != "Executed command: WRKCMP" {
		t.Errorf("unexpected summary %q", got)
	}
}

func TestOptionWithIDSendsEachPart(t *testing.T) {
	keys, err := OptionWithID{}.Keys("{OPERATION},{COMPANY_ID}", template.Params{"operation": "A", "company_id": "694"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	term := sessiontest.New("Main Menu", "Company Maintenance")
	if err := form.Send(term, keys); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := term.Transcript(); got != `text("A") text("694") enter` {
		t.Errorf("unexpected transcript %s", got)
	}
	if got := (OptionWithID{}).Summary("{OPERATION},{COMPANY_ID}", template.Params{"operation": "A", "company_id": "694"}); got != "Selected option with values: A, 694" {
		t.Errorf("unexpected summary %q", got)
	}
}

func TestOptionWithIDMissingParam(t *testing.T) {
	if _, err := (OptionWithID{}).Keys("{OPERATION},{COMPANY_ID}", template.Params{"operation": "A"}); err == nil {
		t.Fatal("expected error for missing company id")
	}
}

func TestRegistry(t *testing.T) {
	for _, name := range []string{"credentials", "enter", "command", "option", "option_with_id"} {
		if !Known(name) {
			t.Errorf("expected %q to be registered", name)
		}
	}
	if Known("form_fill") {
		t.Error("form_fill is handled by the engine, not the registry")
	}
	if _, err := Get("teleport"); err == nil {
		t.Error("expected error for unknown action")
	}
	if len(Names()) != 5 {
		t.Errorf("expected 5 names, got %v", Names())
	}
}

func TestRedactMasksSecrets(t *testing.T) {
	keys, _ := Credentials{}.Keys("u,hunter2", nil)
	red := form.Redact(keys)
	if red[3].Text != "****" {
		t.Errorf("expected masked password, got %q", red[3].Text)
	}
	if keys[3].Text != "hunter2" {
		t.Error("Redact must not modify its input")
	}
}
