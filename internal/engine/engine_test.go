package engine

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	dagerrors "github.com/stevehiehn/greenscreen/internal/errors"
	"github.com/stevehiehn/greenscreen/internal/field"
	"github.com/stevehiehn/greenscreen/internal/form"
	"github.com/stevehiehn/greenscreen/internal/outcome"
	"github.com/stevehiehn/greenscreen/internal/screen"
	"github.com/stevehiehn/greenscreen/internal/session/sessiontest"
)

const (
	signOn   = "Sign On\nUser . . . . . .\nPassword . . . ."
	mainMenu = "Main Menu\nSelection or command\n===>"
	company  = "Company Maintenance\nCompany name . . .\nF3=Exit  F12=Cancel"
)

func testScreen() *screen.Screen {
	return &screen.Screen{
		Name:   "company_maintenance",
		Params: map[string]string{"operation": "A"},
		Fields: []field.Rule{
			{Name: "company_name", MaxLength: 10, Required: true, Kind: field.KindText, TabsNeeded: 1},
			{Name: "phone", MaxLength: 4, Kind: field.KindDigits, TabsNeeded: 2},
		},
		Steps: []screen.Step{
			{Order: 1, Gate: "Sign On", Action: screen.ActionCredentials, Value: "QUSER,QPASS", WaitSeconds: 3},
			{Order: 2, Gate: "Main Menu", Action: screen.ActionOptionWithID, Value: "{OPERATION},{COMPANY_ID}", WaitSeconds: 2},
			{Order: 3, Gate: "Company Maintenance", Action: screen.ActionFormFill},
		},
	}
}

func makeCtx(t *testing.T, term *sessiontest.Fake) (*RunContext, *[]time.Duration) {
	t.Helper()
	var slept []time.Duration
	sleep := func(d time.Duration) { slept = append(slept, d) }
	ctx := NewRunContext(term, t.TempDir(), nil)
	ctx.RunID = "test-run"
	ctx.Sleep = sleep
	ctx.Filler = &form.Filler{SettleDelay: form.DefaultSettleDelay, Sleep: sleep}
	return ctx, &slept
}

func submission(values map[string]string) Submission {
	return Submission{
		Screen: "company_maintenance",
		Values: values,
		Params: map[string]string{"company_id": "694"},
	}
}

func TestRunEndToEndSuccess(t *testing.T) {
	term := sessiontest.New(signOn, mainMenu, company, "Company Maintenance\n694 added")
	ctx, slept := makeCtx(t, term)

	result, err := Execute(testScreen(), submission(map[string]string{"company_name": "ACME", "phone": "5551"}), ctx, ModeRun)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, errors: %v", result.Errors)
	}
	if result.Outcome != outcome.Success {
		t.Errorf("expected outcome success, got %q", result.Outcome)
	}
	if result.Message != "SUCCESS: 694 was added successfully" {
		t.Errorf("unexpected message %q", result.Message)
	}

	want := `home text("QUSER") tab text("QPASS") enter text("A") text("694") enter home text("ACME") tab text("5551") tab enter`
	if got := term.Transcript(); got != want {
		t.Errorf("transcript mismatch\nwant %s\ngot  %s", want, got)
	}

	if len(*slept) != 3 || (*slept)[0] != 3*time.Second || (*slept)[1] != 2*time.Second || (*slept)[2] != time.Second {
		t.Errorf("unexpected sleeps %v", *slept)
	}
	for _, sr := range result.Steps {
		if sr.Status != "success" {
			t.Errorf("step %d: expected success, got %q", sr.Order, sr.Status)
		}
	}
	if result.Steps[0].Keys[3].Text != "****" {
		t.Errorf("expected password to be redacted, got %q", result.Steps[0].Keys[3].Text)
	}
}

func TestRunWritesArtifacts(t *testing.T) {
	term := sessiontest.New(signOn, mainMenu, company, "694 added")
	ctx, _ := makeCtx(t, term)

	result, err := Execute(testScreen(), submission(map[string]string{"company_name": "ACME"}), ctx, ModeRun)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	base := filepath.Join(ctx.WorkDir, ".greenscreen", "runs", "test-run")
	if result.Artifacts[0] != base {
		t.Errorf("expected first artifact %q, got %q", base, result.Artifacts[0])
	}
	for _, name := range []string{"step_01_credentials", "step_02_option_with_id", "step_03_form_fill", "before_submission", "after_submission"} {
		if _, err := os.Stat(filepath.Join(base, "screens", name+".html")); err != nil {
			t.Errorf("missing snapshot %s: %v", name, err)
		}
	}

	data, err := os.ReadFile(filepath.Join(base, "result.json"))
	if err != nil {
		t.Fatalf("result.json not written: %v", err)
	}
	var stored Result
	if err := json.Unmarshal(data, &stored); err != nil {
		t.Fatalf("invalid result.json: %v", err)
	}
	if stored.RunID != "test-run" || !stored.Success {
		t.Errorf("unexpected stored result %+v", stored)
	}
}

func TestRunSkipsStepWhenGateDoesNotMatch(t *testing.T) {
	// Already signed on: the credentials step is skipped, not failed.
	term := sessiontest.New(mainMenu, company, "694 added")
	ctx, _ := makeCtx(t, term)

	result, err := Execute(testScreen(), submission(map[string]string{"company_name": "ACME"}), ctx, ModeRun)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, errors: %v", result.Errors)
	}
	if result.Steps[0].Status != "skipped" {
		t.Errorf("expected step 1 skipped, got %q", result.Steps[0].Status)
	}
	if result.Messages[1] != "Not on expected screen (looking for 'Sign On'), skipping step..." {
		t.Errorf("unexpected skip message %q", result.Messages[1])
	}
}

func TestRunSkipsMiddleStepAndClassifiesFormFill(t *testing.T) {
	// The host lands directly on the form after sign on; the menu never shows.
	term := sessiontest.New(signOn, company, "Company Maintenance\n694 added")
	ctx, _ := makeCtx(t, term)

	result, err := Execute(testScreen(), submission(map[string]string{"company_name": "ACME"}), ctx, ModeRun)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Steps) != 3 {
		t.Fatalf("expected 3 step results, got %d", len(result.Steps))
	}
	if result.Steps[0].Status != "success" || result.Steps[1].Status != "skipped" || result.Steps[2].Status != "success" {
		t.Errorf("unexpected step statuses %q %q %q", result.Steps[0].Status, result.Steps[1].Status, result.Steps[2].Status)
	}
	if !result.Success || result.Outcome != outcome.Success {
		t.Fatalf("expected success from the form fill, got %q: %v", result.Message, result.Errors)
	}
	if result.Message != "SUCCESS: 694 was added successfully" {
		t.Errorf("unexpected message %q", result.Message)
	}
	want := `home text("QUSER") tab text("QPASS") enter home text("ACME") tab tab tab enter`
	if got := term.Transcript(); got != want {
		t.Errorf("transcript mismatch\nwant %s\ngot  %s", want, got)
	}
}

func TestRunStopsOnScreenError(t *testing.T) {
	term := sessiontest.New(signOn, "Sign On\nPassword not correct for user profile. Access denied.")
	ctx, _ := makeCtx(t, term)

	result, err := Execute(testScreen(), submission(map[string]string{"company_name": "ACME"}), ctx, ModeRun)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success {
		t.Fatal("expected failure")
	}
	if result.FailedStep != 1 {
		t.Errorf("expected failed step 1, got %d", result.FailedStep)
	}
	if result.Outcome != outcome.Error {
		t.Errorf("expected outcome error, got %q", result.Outcome)
	}
	if result.Errors[0].Type != dagerrors.ClassifiedError {
		t.Errorf("expected ClassifiedError, got %s", result.Errors[0].Type)
	}
	if result.Message != "Error detected: Password not correct for user profile. Access denied." {
		t.Errorf("unexpected message %q", result.Message)
	}
	if result.Steps[1].Status != "skipped" || result.Steps[2].Status != "skipped" {
		t.Errorf("expected remaining steps skipped, got %+v", result.Steps)
	}
}

func TestRunSessionFailureIsStepExecutionError(t *testing.T) {
	term := sessiontest.New(signOn, mainMenu)
	term.FailOn = "text"
	term.FailErr = errors.New("connection reset")
	ctx, _ := makeCtx(t, term)

	result, err := Execute(testScreen(), submission(map[string]string{"company_name": "ACME"}), ctx, ModeRun)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success {
		t.Fatal("expected failure")
	}
	re := result.Errors[0]
	if re.Type != dagerrors.StepExecutionError || re.Step != 1 {
		t.Errorf("expected StepExecutionError at step 1, got %+v", re)
	}
}

func TestRunFormFillFailure(t *testing.T) {
	term := sessiontest.New(company)
	term.FailOn = "tab"
	ctx, _ := makeCtx(t, term)

	result, err := Execute(testScreen(), submission(map[string]string{"company_name": "ACME"}), ctx, ModeRun)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success {
		t.Fatal("expected failure")
	}
	re := result.Errors[0]
	if re.Type != dagerrors.FormFillError || re.Field != "company_name" || re.Step != 3 {
		t.Errorf("expected FormFillError on company_name at step 3, got %+v", re)
	}
}

func TestRunClassifiesValidationScreen(t *testing.T) {
	term := sessiontest.New(company, "Company Maintenance\nInvalid phone number\nF3=Exit")
	ctx, _ := makeCtx(t, term)

	result, err := Execute(testScreen(), submission(map[string]string{"company_name": "ACME"}), ctx, ModeRun)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success {
		t.Fatal("expected failure")
	}
	if result.Message != "VALIDATION ERROR: Invalid phone number" {
		t.Errorf("unexpected message %q", result.Message)
	}
	if result.FailedStep != 3 {
		t.Errorf("expected failed step 3, got %d", result.FailedStep)
	}
}

func TestRunWithoutFormFillIsUnknownOutcome(t *testing.T) {
	sc := testScreen()
	sc.Steps = sc.Steps[:2]
	term := sessiontest.New(signOn, mainMenu, company)
	ctx, _ := makeCtx(t, term)

	result, err := Execute(sc, submission(map[string]string{"company_name": "ACME"}), ctx, ModeRun)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success {
		t.Fatal("expected failure")
	}
	if result.Outcome != outcome.Unknown {
		t.Errorf("expected unknown outcome, got %q", result.Outcome)
	}
	if !dagerrors.IsType(&result.Errors[0], dagerrors.UnknownOutcome) {
		t.Errorf("expected UnknownOutcome, got %v", result.Errors)
	}
}

func TestValidationFailureSendsNoKeystrokes(t *testing.T) {
	term := sessiontest.New(signOn)
	ctx, _ := makeCtx(t, term)

	values := map[string]string{"company_name": "THIS NAME IS TOO LONG", "phone": "55x", "fax": "1"}
	result, err := Execute(testScreen(), submission(values), ctx, ModeRun)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success {
		t.Fatal("expected failure")
	}
	if len(term.Events()) != 0 {
		t.Errorf("expected no keystrokes, got %s", term.Transcript())
	}
	if len(result.Errors) != 3 {
		t.Fatalf("expected 3 errors, got %v", result.Errors)
	}
	wantTypes := []string{dagerrors.FieldTooLong, dagerrors.InvalidDigits, dagerrors.UnknownField}
	for i, want := range wantTypes {
		if result.Errors[i].Type != want {
			t.Errorf("error %d: expected %s, got %s", i, want, result.Errors[i].Type)
		}
	}
	if len(result.Steps) != 0 {
		t.Errorf("expected no step results, got %d", len(result.Steps))
	}
}

func TestMissingRequiredAndParamsFailBeforeRun(t *testing.T) {
	term := sessiontest.New(signOn)
	ctx, _ := makeCtx(t, term)

	sub := Submission{Screen: "company_maintenance", Values: map[string]string{"phone": "1234"}}
	result, err := Execute(testScreen(), sub, ctx, ModeRun)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success {
		t.Fatal("expected failure")
	}
	var sawRequired, sawParam bool
	for _, re := range result.Errors {
		switch re.Type {
		case dagerrors.RequiredFieldEmpty:
			sawRequired = re.Field == "company_name"
		case dagerrors.MissingParameter:
			sawParam = true
		}
	}
	if !sawRequired || !sawParam {
		t.Errorf("expected RequiredFieldEmpty and MissingParameter, got %v", result.Errors)
	}
	if len(term.Events()) != 0 {
		t.Errorf("expected no keystrokes, got %s", term.Transcript())
	}
}

func TestEffectiveParamsPrecedence(t *testing.T) {
	sc := testScreen()

	p := EffectiveParams(sc, Submission{Values: map[string]string{"company_id": "100", "operation": "C"}})
	if p["company_id"] != "100" || p["operation"] != "C" {
		t.Errorf("expected data to override defaults, got %v", p)
	}

	p = EffectiveParams(sc, Submission{
		Values: map[string]string{"company_id": "100"},
		Params: map[string]string{"COMPANY_ID": "200"},
	})
	if p["company_id"] != "200" {
		t.Errorf("expected request param to win, got %v", p)
	}
	if p["operation"] != "A" {
		t.Errorf("expected screen default operation, got %v", p)
	}

	p = EffectiveParams(sc, Submission{Values: map[string]string{"company_name": "ACME"}})
	if _, ok := p["company_name"]; ok {
		t.Error("unreferenced data fields must not become params")
	}
}

func TestExplainModeNeedsNoSession(t *testing.T) {
	ctx := NewRunContext(nil, "", nil)
	result, err := Execute(testScreen(), submission(map[string]string{"company_name": "ACME", "phone": "5551"}), ctx, ModeExplain)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, errors: %v", result.Errors)
	}
	if len(result.Steps) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(result.Steps))
	}
	for _, sr := range result.Steps {
		if sr.Status != "explain" {
			t.Errorf("expected status 'explain', got %q", sr.Status)
		}
	}
	if len(result.Steps[1].Keys) != 3 || result.Steps[1].Keys[1].Text != "694" {
		t.Errorf("unexpected option keys %v", result.Steps[1].Keys)
	}
	// ACME tab 5551 tab enter: phone fills its field so one of its two tabs is skipped.
	if len(result.Plan) != 5 {
		t.Errorf("expected 5 plan keystrokes, got %v", result.Plan)
	}
	if len(result.Artifacts) != 0 {
		t.Errorf("explain must not write artifacts, got %v", result.Artifacts)
	}
}

func TestExecuteRejectsInvalidScreen(t *testing.T) {
	sc := testScreen()
	sc.Steps[0].Action = "teleport"
	_, err := Execute(sc, submission(nil), NewRunContext(nil, "", nil), ModeExplain)
	if err == nil {
		t.Fatal("expected error for invalid screen")
	}
}
