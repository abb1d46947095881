package telegram

import (
	"errors"
	"strings"
	"testing"
)

func TestCommandDataRoundTrip(t *testing.T) {
	cmds := []Command{
		{Kind: CmdMainMenu},
		{Kind: CmdSubjectsMenu},
		{Kind: CmdRunSubject, Subject: "networks/tcp"},
		{Kind: CmdRandomMenu},
		{Kind: CmdRunRandom, Count: 15},
		{Kind: CmdFullExamMenu},
		{Kind: CmdRunFullExam, Count: 85},
		{Kind: CmdResultsMenu},
		{Kind: CmdResultSubjectsMenu},
		{Kind: CmdResultSubject, Subject: "math"},
		{Kind: CmdResultRandom},
		{Kind: CmdResultFull},
		{Kind: CmdLeaderboard},
		{Kind: CmdSettingsMenu},
		{Kind: CmdToggleNegative},
		{Kind: CmdCycleSummaryDelay},
	}
	if len(cmds) != len(commandTags) {
		t.Fatalf("expected every kind covered, have %d of %d", len(cmds), len(commandTags))
	}
	for _, in := range cmds {
		want := in
		if in.Kind.takesSubject() {
			want = Command{Kind: in.Kind, SubjectKey: SubjectKey(in.Subject)}
		}
		data := in.Data()
		got, err := ParseCommand(data)
		if err != nil {
			t.Fatalf("parse %q: %v", data, err)
		}
		if got != want {
			t.Fatalf("round trip %q: expected %+v, got %+v", data, want, got)
		}
		if again := got.Data(); again != data {
			t.Fatalf("expected parsed command to re-encode to %q, got %q", data, again)
		}
	}
}

func TestSubjectCallbackFitsTelegramLimit(t *testing.T) {
	subject := strings.Repeat("deeply/nested/folder/", 10) + "final exam: part 1"
	for _, kind := range []CommandKind{CmdRunSubject, CmdResultSubject} {
		data := Command{Kind: kind, Subject: subject}.Data()
		if len(data) > 64 {
			t.Fatalf("callback data %q exceeds 64 bytes", data)
		}
		cmd, err := ParseCommand(data)
		if err != nil {
			t.Fatalf("parse %q: %v", data, err)
		}
		if cmd.SubjectKey != SubjectKey(subject) {
			t.Fatalf("expected key of the long subject, got %q", cmd.SubjectKey)
		}
	}
	if SubjectKey("math") == SubjectKey("physics") {
		t.Fatalf("expected distinct subjects to get distinct keys")
	}
}

func TestParseCommandRejectsUnknownData(t *testing.T) {
	for _, data := range []string{
		"",
		"nope",
		"subject_run",
		"subject_run:",
		"subject_run:math",
		"result_subject:zzzzzzzzzzzz",
		"random:abc",
		"random:0",
		"full:-5",
		"menu_results:extra",
	} {
		if _, err := ParseCommand(data); !errors.Is(err, ErrUnknownCommand) {
			t.Fatalf("%q: expected ErrUnknownCommand, got %v", data, err)
		}
	}
}
